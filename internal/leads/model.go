package leads

import "fluxior-backend/internal/models"

// WizardRequest is the payload of the multi-step project wizard.
type WizardRequest struct {
	Name              string   `json:"name" validate:"required,min=2,max=100"`
	Email             string   `json:"email" validate:"required,email"`
	Company           string   `json:"company" validate:"max=200"`
	Phone             string   `json:"phone" validate:"omitempty,phone"`
	ProjectType       string   `json:"project_type" validate:"required,max=100"`
	Budget            string   `json:"budget" validate:"max=50"`
	Goals             []string `json:"goals" validate:"max=20,dive,max=200"`
	Features          []string `json:"features" validate:"max=30,dive,max=200"`
	DesignStyle       string   `json:"designStyle" validate:"max=100"`
	Deadline          string   `json:"deadline" validate:"max=100"`
	AdditionalDetails string   `json:"additional_details" validate:"max=2000"`
}

// ContactRequest is the payload of the short contact form.
type ContactRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"omitempty,phone"`
	Company     string `json:"company" validate:"max=200"`
	ProjectType string `json:"project_type" validate:"max=100"`
	Budget      string `json:"budget" validate:"max=50"`
	Message     string `json:"message" validate:"required,max=2000"`
}

// CreateRequest is an admin-entered lead.
type CreateRequest struct {
	Name        string              `json:"name" validate:"required,min=2,max=100"`
	Email       string              `json:"email" validate:"required,email"`
	Phone       string              `json:"phone" validate:"omitempty,max=30"`
	Company     string              `json:"company" validate:"max=200"`
	ProjectType string              `json:"project_type" validate:"max=100"`
	Budget      string              `json:"budget" validate:"max=50"`
	Message     string              `json:"message" validate:"max=2000"`
	Status      models.LeadStatus   `json:"status" validate:"omitempty,leadstatus"`
	PartnerID   string              `json:"partner_id"`
	DealAmount  *float64            `json:"deal_amount" validate:"omitempty,gte=0"`
	Details     *models.LeadDetails `json:"details"`
}

// Lead converts the request into an unsaved manual lead.
func (r CreateRequest) Lead() models.Lead {
	lead := models.Lead{
		Name:        r.Name,
		Email:       r.Email,
		Phone:       models.StringOrNil(r.Phone),
		Company:     models.StringOrNil(r.Company),
		ProjectType: models.StringOrNil(r.ProjectType),
		Budget:      models.StringOrNil(r.Budget),
		Message:     models.StringOrNil(r.Message),
		Source:      models.SourceContactForm,
		Status:      r.Status,
		PartnerID:   models.StringOrNil(r.PartnerID),
		DealAmount:  r.DealAmount,
	}
	if r.Details != nil {
		lead.Details = r.Details.Clone()
	}
	return lead
}

// ListFilter narrows a lead listing. A zero Limit returns every match.
type ListFilter struct {
	Status    models.LeadStatus
	PartnerID string
	Limit     int64
	Offset    int64
}

package models

// LeadPatch is a partial change set. Nil fields are left untouched.
// For the optional text fields and PartnerID, a pointer to "" clears the value.
type LeadPatch struct {
	Name        *string      `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Email       *string      `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string      `json:"phone,omitempty" validate:"omitempty,max=30"`
	Company     *string      `json:"company,omitempty" validate:"omitempty,max=200"`
	ProjectType *string      `json:"project_type,omitempty" validate:"omitempty,max=100"`
	Budget      *string      `json:"budget,omitempty" validate:"omitempty,max=50"`
	Message     *string      `json:"message,omitempty" validate:"omitempty,max=2000"`
	Status      *LeadStatus  `json:"status,omitempty" validate:"omitempty,leadstatus"`
	PartnerID   *string      `json:"partner_id,omitempty"`
	DealAmount  *float64     `json:"deal_amount,omitempty" validate:"omitempty,gte=0"`
	Details     *LeadDetails `json:"details,omitempty"`
}

func (p LeadPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Company == nil &&
		p.ProjectType == nil && p.Budget == nil && p.Message == nil && p.Status == nil &&
		p.PartnerID == nil && p.DealAmount == nil && p.Details == nil
}

// Normalized returns a copy where blank optional strings are explicit clears.
func (p LeadPatch) Normalized() LeadPatch {
	out := p
	out.Phone = clearable(p.Phone)
	out.Company = clearable(p.Company)
	out.ProjectType = clearable(p.ProjectType)
	out.Budget = clearable(p.Budget)
	out.Message = clearable(p.Message)
	out.PartnerID = clearable(p.PartnerID)
	if p.DealAmount != nil {
		out.DealAmount = clonePtr(p.DealAmount)
	}
	if p.Details != nil {
		d := p.Details.Clone()
		out.Details = &d
	}
	return out
}

// ApplyTo writes the patch onto lead. Details are replaced as a whole.
func (p LeadPatch) ApplyTo(lead *Lead) {
	if p.Name != nil {
		lead.Name = *p.Name
	}
	if p.Email != nil {
		lead.Email = *p.Email
	}
	if p.Phone != nil {
		lead.Phone = NormalizeOptional(p.Phone)
	}
	if p.Company != nil {
		lead.Company = NormalizeOptional(p.Company)
	}
	if p.ProjectType != nil {
		lead.ProjectType = NormalizeOptional(p.ProjectType)
	}
	if p.Budget != nil {
		lead.Budget = NormalizeOptional(p.Budget)
	}
	if p.Message != nil {
		lead.Message = NormalizeOptional(p.Message)
	}
	if p.Status != nil {
		lead.Status = *p.Status
	}
	if p.PartnerID != nil {
		lead.PartnerID = NormalizeOptional(p.PartnerID)
	}
	if p.DealAmount != nil {
		v := *p.DealAmount
		lead.DealAmount = &v
	}
	if p.Details != nil {
		lead.Details = p.Details.Clone()
	}
}

func clearable(value *string) *string {
	if value == nil {
		return nil
	}
	if v := NormalizeOptional(value); v != nil {
		return v
	}
	empty := ""
	return &empty
}

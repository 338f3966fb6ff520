package models

import (
	"strings"
	"time"
)

type LeadStatus string

type LeadSource string

const (
	StatusNew         LeadStatus = "new"
	StatusContacted   LeadStatus = "contacted"
	StatusNegotiation LeadStatus = "negotiation"
	StatusSigned      LeadStatus = "signed"
	StatusLost        LeadStatus = "lost"

	SourceContactForm LeadSource = "contact_form"
	SourceWizard      LeadSource = "wizard"
)

// Statuses lists the pipeline in board order, terminal "lost" last.
var Statuses = []LeadStatus{StatusNew, StatusContacted, StatusNegotiation, StatusSigned, StatusLost}

var statusLabels = map[LeadStatus]string{
	StatusNew:         "Nouveau",
	StatusContacted:   "Contacté",
	StatusNegotiation: "En Nego",
	StatusSigned:      "Signé",
	StatusLost:        "Perdu",
}

var validSources = map[LeadSource]struct{}{
	SourceContactForm: {},
	SourceWizard:      {},
}

func IsValidStatus(value LeadStatus) bool {
	_, ok := statusLabels[value]
	return ok
}

func IsValidSource(value LeadSource) bool {
	_, ok := validSources[value]
	return ok
}

// Label returns the display label, or the raw value for unknown statuses.
func (s LeadStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsOpen reports whether the lead still counts toward the pipeline value.
func (s LeadStatus) IsOpen() bool {
	return s == StatusNew || s == StatusContacted || s == StatusNegotiation
}

type Lead struct {
	ID          string      `bson:"_id,omitempty" json:"id"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	Name        string      `bson:"name" json:"name"`
	Email       string      `bson:"email" json:"email"`
	Phone       *string     `bson:"phone" json:"phone"`
	Company     *string     `bson:"company" json:"company"`
	ProjectType *string     `bson:"project_type" json:"project_type"`
	Budget      *string     `bson:"budget" json:"budget"`
	Message     *string     `bson:"message" json:"message"`
	Source      LeadSource  `bson:"source" json:"source"`
	Status      LeadStatus  `bson:"status" json:"status"`
	PartnerID   *string     `bson:"partner_id" json:"partner_id"`
	DealAmount  *float64    `bson:"deal_amount,omitempty" json:"deal_amount,omitempty"`
	Details     LeadDetails `bson:"details" json:"details"`
}

// Clone returns a deep copy, safe to keep as a rollback snapshot.
func (l Lead) Clone() Lead {
	out := l
	out.Phone = clonePtr(l.Phone)
	out.Company = clonePtr(l.Company)
	out.ProjectType = clonePtr(l.ProjectType)
	out.Budget = clonePtr(l.Budget)
	out.Message = clonePtr(l.Message)
	out.PartnerID = clonePtr(l.PartnerID)
	out.DealAmount = clonePtr(l.DealAmount)
	out.Details = l.Details.Clone()
	return out
}

// AssignedTo reports whether the lead references the given partner.
func (l Lead) AssignedTo(partnerID string) bool {
	return l.PartnerID != nil && *l.PartnerID == partnerID
}

func CloneLeads(leads []Lead) []Lead {
	if leads == nil {
		return nil
	}
	out := make([]Lead, len(leads))
	for i, l := range leads {
		out[i] = l.Clone()
	}
	return out
}

type Partner struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	Name           string    `bson:"name" json:"name"`
	Email          string    `bson:"email" json:"email"`
	CommissionRate float64   `bson:"commission_rate" json:"commission_rate"`
	Role           string    `bson:"role,omitempty" json:"role,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

var directorRoles = []string{"directeur", "ceo", "gérant"}

// IsDirector reports whether the free-text role label grants full admin access.
func (p Partner) IsDirector() bool {
	role := strings.ToLower(p.Role)
	for _, synonym := range directorRoles {
		if strings.Contains(role, synonym) {
			return true
		}
	}
	return false
}

func ClonePartners(partners []Partner) []Partner {
	if partners == nil {
		return nil
	}
	out := make([]Partner, len(partners))
	copy(out, partners)
	return out
}

type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name,omitempty" json:"name,omitempty"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// StringOrNil maps blank strings to a null reference.
func StringOrNil(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// NormalizeOptional maps a pointer to a blank string to nil.
func NormalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	return StringOrNil(*value)
}

func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

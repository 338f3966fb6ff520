package dashboard

import (
	"strings"

	"fluxior-backend/internal/models"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RolePartner Role = "partner"
)

const houseUserName = "Admin"

// Identity is who the session acts as. The zero value sees no leads.
type Identity struct {
	Role      Role   `json:"role"`
	PartnerID string `json:"partner_id,omitempty"`
	UserName  string `json:"user_name"`
}

// Sees reports whether the lead is visible to id. A session may only act on
// leads it sees.
func (id Identity) Sees(l models.Lead) bool {
	if id.Role == RoleAdmin {
		return true
	}
	return id.PartnerID != "" && l.AssignedTo(id.PartnerID)
}

// ResolveRole matches the session email against the partner list.
// Unknown emails are the house account. Directors keep their partner id
// but are not scoped by it.
func ResolveRole(email string, partners []models.Partner) Identity {
	email = strings.TrimSpace(email)
	if email != "" {
		for _, p := range partners {
			if !strings.EqualFold(p.Email, email) {
				continue
			}
			if p.IsDirector() {
				return Identity{Role: RoleAdmin, PartnerID: p.ID, UserName: p.Name}
			}
			return Identity{Role: RolePartner, PartnerID: p.ID, UserName: p.Name}
		}
	}
	return Identity{Role: RoleAdmin, UserName: houseUserName}
}

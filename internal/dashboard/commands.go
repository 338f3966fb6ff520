package dashboard

import (
	"strconv"
	"time"

	"fluxior-backend/internal/models"
)

// command is an optimistic mutation of the mirror. apply records the
// pre-image it needs; undo restores it when the store rejects the write.
type command interface {
	apply(s *state) bool
	undo(s *state)
}

type updateLeadCmd struct {
	id    string
	patch models.LeadPatch
	now   time.Time
	newID func() string

	before  models.Lead
	sent    models.LeadPatch
	message string
	denied  bool
}

func (c *updateLeadCmd) apply(s *state) bool {
	i := s.leadIndex(c.id)
	if i < 0 {
		return false
	}
	current := s.leads[i]
	c.sent = c.patch.Normalized()

	// The lead must be visible before and after, so a partner cannot hand it away.
	after := current.Clone()
	c.sent.ApplyTo(&after)
	if !s.identity.Sees(current) || !s.identity.Sees(after) {
		c.denied = true
		return false
	}
	c.before = current.Clone()

	if activity, ok := c.activity(s, current); ok {
		base := current.Details
		if c.sent.Details != nil {
			base = *c.sent.Details
		}
		details := base.Clone()
		details.History = append([]models.Activity{activity}, details.History...)
		c.sent.Details = &details
		c.message = activity.Description
	}

	c.sent.ApplyTo(&s.leads[i])
	return true
}

func (c *updateLeadCmd) undo(s *state) {
	if i := s.leadIndex(c.id); i >= 0 {
		s.leads[i] = c.before
	}
}

// activity logs at most one change: status, then partner, then amount.
func (c *updateLeadCmd) activity(s *state, current models.Lead) (models.Activity, bool) {
	p := c.sent
	var (
		kind models.ActivityType
		desc string
	)
	switch {
	case p.Status != nil && *p.Status != current.Status:
		kind = models.ActivityStatusChange
		desc = "Statut changé de \"" + current.Status.Label() + "\" à \"" + p.Status.Label() + "\""
	case p.PartnerID != nil && *p.PartnerID != models.Deref(current.PartnerID):
		name, ok := s.partnerName(*p.PartnerID)
		if !ok {
			name = msgUnassigned
		}
		kind = models.ActivityPartnerAssigned
		desc = "Assigné à " + name
	case p.DealAmount != nil && (current.DealAmount == nil || *current.DealAmount != *p.DealAmount):
		kind = models.ActivityInfoUpdate
		desc = "Montant mis à jour : " + strconv.FormatFloat(*p.DealAmount, 'f', -1, 64) + "€"
	default:
		return models.Activity{}, false
	}
	return models.Activity{
		ID:          c.newID(),
		Type:        kind,
		Description: desc,
		Date:        c.now,
		User:        s.identity.UserName,
	}, true
}

type deleteLeadCmd struct {
	id     string
	before []models.Lead
	denied bool
}

func (c *deleteLeadCmd) apply(s *state) bool {
	if s.identity.Role != RoleAdmin {
		if i := s.leadIndex(c.id); i < 0 || !s.identity.Sees(s.leads[i]) {
			c.denied = true
			return false
		}
	}
	c.before = models.CloneLeads(s.leads)
	s.removeLead(c.id)
	return true
}

// undo puts back the whole list as it was, not just the one lead.
func (c *deleteLeadCmd) undo(s *state) {
	s.leads = c.before
}

type partnerRateCmd struct {
	id     string
	rate   float64
	before models.Partner
}

func (c *partnerRateCmd) apply(s *state) bool {
	i := s.partnerIndex(c.id)
	if i < 0 {
		return false
	}
	c.before = s.partners[i]
	s.partners[i].CommissionRate = c.rate
	return true
}

func (c *partnerRateCmd) undo(s *state) {
	if i := s.partnerIndex(c.id); i >= 0 {
		s.partners[i] = c.before
	}
}

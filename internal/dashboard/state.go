package dashboard

import (
	"fluxior-backend/internal/models"
	"fluxior-backend/internal/realtime"
)

// state is the mirror of one session. Only the controller loop touches it.
type state struct {
	leads         []models.Lead
	partners      []models.Partner
	identity      Identity
	sort          SortConfig
	notifications []Notification
	loaded        bool

	// Creates in flight and the insert notices held back until they settle,
	// since any of those inserts may be the echo of this session's own create.
	creating    int
	heldInserts []heldInsert
}

type heldInsert struct {
	id   string
	name string
}

func newState() *state {
	return &state{sort: DefaultSort()}
}

func (s *state) leadIndex(id string) int {
	for i := range s.leads {
		if s.leads[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *state) prependLead(lead models.Lead) {
	s.leads = append([]models.Lead{lead}, s.leads...)
}

func (s *state) removeLead(id string) bool {
	i := s.leadIndex(id)
	if i < 0 {
		return false
	}
	out := make([]models.Lead, 0, len(s.leads)-1)
	out = append(out, s.leads[:i]...)
	s.leads = append(out, s.leads[i+1:]...)
	return true
}

func (s *state) partnerIndex(id string) int {
	for i := range s.partners {
		if s.partners[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *state) partnerName(id string) (string, bool) {
	if i := s.partnerIndex(id); i >= 0 {
		return s.partners[i].Name, true
	}
	return "", false
}

func (s *state) removePartner(id string) {
	i := s.partnerIndex(id)
	if i < 0 {
		return
	}
	out := make([]models.Partner, 0, len(s.partners)-1)
	out = append(out, s.partners[:i]...)
	s.partners = append(out, s.partners[i+1:]...)
}

func (s *state) dismiss(id string) {
	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i:i], s.notifications[i+1:]...)
			return
		}
	}
}

// applyEvent merges one feed event, last write wins. It returns the name of
// a newly inserted lead so the caller can announce it.
func (s *state) applyEvent(ev realtime.Event) (string, bool) {
	if ev.Table != "" && ev.Table != realtime.TableLeads {
		return "", false
	}
	switch ev.Type {
	case realtime.EventInsert:
		if ev.Lead == nil || s.leadIndex(ev.Lead.ID) >= 0 {
			return "", false
		}
		s.prependLead(ev.Lead.Clone())
		return ev.Lead.Name, true
	case realtime.EventUpdate:
		if ev.Lead == nil {
			return "", false
		}
		if i := s.leadIndex(ev.Lead.ID); i >= 0 {
			s.leads[i] = ev.Lead.Clone()
		}
	case realtime.EventDelete:
		s.removeLead(ev.ID)
	}
	return "", false
}

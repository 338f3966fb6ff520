package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fluxior-backend/internal/models"
	"fluxior-backend/internal/partners"
	"fluxior-backend/internal/realtime"
	"github.com/google/uuid"
)

var (
	ErrNotConfirmed = errors.New("action not confirmed")
	ErrClosed       = errors.New("dashboard session closed")
	ErrEmptyContent = errors.New("content is empty")
	ErrOutOfScope   = errors.New("lead not visible to this session")
)

const DefaultNotifyTTL = 4 * time.Second

type Options struct {
	Store Store
	Feed  Feed
	Log   *slog.Logger
	Now   func() time.Time
	// NotifyTTL is how long notifications stay up. Zero means DefaultNotifyTTL,
	// negative keeps them until dismissed.
	NotifyTTL time.Duration
	NewID     func() string
}

// Controller owns the mirror of one dashboard session. All reads and writes
// of the mirror run on the Run loop; store calls run in the caller's goroutine.
type Controller struct {
	store     Store
	feed      Feed
	log       *slog.Logger
	now       func() time.Time
	notifyTTL time.Duration
	newID     func() string

	st       *state
	ops      chan func(*state)
	changes  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func New(opts Options) *Controller {
	c := &Controller{
		store:     opts.Store,
		feed:      opts.Feed,
		log:       opts.Log,
		now:       opts.Now,
		notifyTTL: opts.NotifyTTL,
		newID:     opts.NewID,
		st:        newState(),
		ops:       make(chan func(*state)),
		changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.notifyTTL == 0 {
		c.notifyTTL = DefaultNotifyTTL
	}
	if c.newID == nil {
		c.newID = func() string { return uuid.New().String() }
	}
	return c
}

// Run subscribes to the feed and serves the mirror until ctx ends.
// The subscription is closed on return.
func (c *Controller) Run(ctx context.Context) error {
	defer c.stop()

	var events <-chan realtime.Event
	if c.feed != nil {
		sub, err := c.feed.Subscribe(ctx)
		if err != nil {
			c.log.Error("dashboard run: subscribe failed", slog.String("error", err.Error()))
			return fmt.Errorf("subscribe: %w", err)
		}
		defer sub.Close()
		events = sub.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-c.ops:
			op(c.st)
		case ev, ok := <-events:
			if !ok {
				c.log.Warn("dashboard run: feed closed")
				events = nil
				continue
			}
			if name, inserted := c.st.applyEvent(ev); inserted {
				c.announceInsert(c.st, ev.Lead.ID, name)
			}
			c.changed()
		}
	}
}

func (c *Controller) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Changes signals that the mirror changed. Signals coalesce.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

func (c *Controller) changed() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(ctx context.Context, fn func(*state)) error {
	finished := make(chan struct{})
	op := func(s *state) {
		defer close(finished)
		fn(s)
	}
	select {
	case c.ops <- op:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

func (c *Controller) mutate(ctx context.Context, fn func(*state)) error {
	return c.do(ctx, func(s *state) {
		fn(s)
		c.changed()
	})
}

// post queues fn without waiting. Used from timers.
func (c *Controller) post(fn func(*state)) {
	select {
	case c.ops <- func(s *state) { fn(s); c.changed() }:
	case <-c.done:
	}
}

// notify must run on the loop.
func (c *Controller) notify(s *state, kind NotificationType, message string) {
	n := Notification{ID: c.newID(), Type: kind, Message: message}
	s.notifications = append(s.notifications, n)
	if c.notifyTTL > 0 {
		time.AfterFunc(c.notifyTTL, func() {
			c.post(func(s *state) { s.dismiss(n.ID) })
		})
	}
}

// announceInsert holds the notice back while a create of this session is in
// flight. Must run on the loop.
func (c *Controller) announceInsert(s *state, id, name string) {
	if s.creating > 0 {
		s.heldInserts = append(s.heldInserts, heldInsert{id: id, name: name})
		return
	}
	c.notify(s, NotifyInfo, msgNewLead+name)
}

// settleCreate ends one in-flight create. ownID is the stored id of the
// session's lead, empty when the insert failed. Held notices for other
// sessions' leads go out once no create is pending.
func (c *Controller) settleCreate(s *state, ownID string) {
	s.creating--
	kept := s.heldInserts[:0]
	for _, h := range s.heldInserts {
		if ownID == "" || h.id != ownID {
			kept = append(kept, h)
		}
	}
	s.heldInserts = kept
	if s.creating > 0 {
		return
	}
	for _, h := range s.heldInserts {
		c.notify(s, NotifyInfo, msgNewLead+h.name)
	}
	s.heldInserts = nil
}

func (c *Controller) notifyAsync(ctx context.Context, kind NotificationType, message string) {
	_ = c.mutate(context.WithoutCancel(ctx), func(s *state) { c.notify(s, kind, message) })
}

// Load fetches leads and partners and resolves the session role.
// On failure the mirror is emptied and an error notification raised.
func (c *Controller) Load(ctx context.Context, email string) error {
	leadList, partnerList, err := fetch(ctx, c.store)
	if err != nil {
		c.log.Error("dashboard load: store error", slog.String("error", err.Error()))
		if derr := c.mutate(context.WithoutCancel(ctx), func(s *state) {
			s.leads = nil
			s.partners = nil
			s.loaded = false
			c.notify(s, NotifyError, msgLoadFailed)
		}); derr != nil {
			return derr
		}
		return fmt.Errorf("load dashboard: %w", err)
	}

	identity := ResolveRole(email, partnerList)
	err = c.mutate(ctx, func(s *state) {
		s.leads = leadList
		s.partners = partnerList
		s.identity = identity
		s.loaded = true
	})
	if err != nil {
		return err
	}
	c.log.Info("dashboard load: ok",
		slog.Int("leads", len(leadList)),
		slog.Int("partners", len(partnerList)),
		slog.String("role", string(identity.Role)),
	)
	return nil
}

// execute applies cmd on the loop, performs write outside it, then keeps the
// change or undoes it. It reports whether cmd applied at all.
func (c *Controller) execute(ctx context.Context, cmd command, write func(context.Context) error, success func() string, failure func(error) string) (bool, error) {
	var applied bool
	if err := c.mutate(ctx, func(s *state) { applied = cmd.apply(s) }); err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	werr := write(ctx)
	err := c.mutate(context.WithoutCancel(ctx), func(s *state) {
		if werr != nil {
			cmd.undo(s)
			c.notify(s, NotifyError, failure(werr))
			return
		}
		c.notify(s, NotifySuccess, success())
	})
	if err != nil {
		return true, err
	}
	return true, werr
}

// UpdateLead applies patch optimistically and logs the most significant change
// in the lead history. An unknown id is a no-op.
func (c *Controller) UpdateLead(ctx context.Context, id string, patch models.LeadPatch) error {
	cmd := &updateLeadCmd{id: id, patch: patch, now: c.now(), newID: c.newID}
	_, err := c.execute(ctx, cmd,
		func(ctx context.Context) error { return c.store.UpdateLead(ctx, id, cmd.sent) },
		func() string {
			if cmd.message != "" {
				return cmd.message
			}
			return msgSaved
		},
		func(err error) string { return msgSaveFailed + err.Error() },
	)
	if err != nil {
		c.log.Warn("dashboard update: rolled back", slog.String("lead_id", id), slog.String("error", err.Error()))
		return fmt.Errorf("update lead %s: %w", id, err)
	}
	if cmd.denied {
		c.log.Warn("dashboard update: out of scope", slog.String("lead_id", id))
		return fmt.Errorf("update lead %s: %w", id, ErrOutOfScope)
	}
	return nil
}

// MoveLead is the board drop: the lead takes the column's status.
func (c *Controller) MoveLead(ctx context.Context, id string, status models.LeadStatus) error {
	return c.UpdateLead(ctx, id, models.LeadPatch{Status: &status})
}

// DeleteLead asks confirm first. A declined confirmation returns ErrNotConfirmed.
func (c *Controller) DeleteLead(ctx context.Context, id string, confirm func(string) bool) error {
	if confirm == nil || !confirm(msgConfirmDelete) {
		return ErrNotConfirmed
	}
	cmd := &deleteLeadCmd{id: id}
	_, err := c.execute(ctx, cmd,
		func(ctx context.Context) error { return c.store.DeleteLead(ctx, id) },
		func() string { return msgLeadDeleted },
		func(error) string { return msgDeleteFailed },
	)
	if err != nil {
		c.log.Warn("dashboard delete: rolled back", slog.String("lead_id", id), slog.String("error", err.Error()))
		return fmt.Errorf("delete lead %s: %w", id, err)
	}
	if cmd.denied {
		c.log.Warn("dashboard delete: out of scope", slog.String("lead_id", id))
		return fmt.Errorf("delete lead %s: %w", id, ErrOutOfScope)
	}
	return nil
}

// CreateLead inserts a manual lead and puts the stored record first in the
// mirror. Failures are reported as notifications. A partner's lead is always
// assigned to that partner.
func (c *Controller) CreateLead(ctx context.Context, lead models.Lead) bool {
	var identity Identity
	err := c.do(ctx, func(s *state) {
		identity = s.identity
		s.creating++
	})
	if err != nil {
		return false
	}
	user := identity.UserName
	if identity.Role == RolePartner {
		partnerID := identity.PartnerID
		lead.PartnerID = &partnerID
	}

	lead = prepareNewLead(lead, models.Activity{
		ID:          c.newID(),
		Type:        models.ActivityCreated,
		Description: msgLeadCreated,
		Date:        c.now(),
		User:        user,
	})

	created, err := c.insertLead(ctx, lead)
	if err != nil {
		c.log.Warn("dashboard create: store error", slog.String("error", err.Error()))
		_ = c.mutate(context.WithoutCancel(ctx), func(s *state) {
			c.settleCreate(s, "")
			c.notify(s, NotifyError, msgCreateFailed+err.Error())
		})
		return false
	}

	err = c.mutate(context.WithoutCancel(ctx), func(s *state) {
		s.removeLead(created.ID)
		s.prependLead(created.Clone())
		c.settleCreate(s, created.ID)
	})
	return err == nil
}

func (c *Controller) insertLead(ctx context.Context, lead models.Lead) (created models.Lead, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("insert lead: %v", r)
		}
	}()
	return c.store.InsertLead(ctx, lead)
}

func prepareNewLead(lead models.Lead, created models.Activity) models.Lead {
	lead = lead.Clone()
	lead.Phone = models.NormalizeOptional(lead.Phone)
	lead.Company = models.NormalizeOptional(lead.Company)
	lead.ProjectType = models.NormalizeOptional(lead.ProjectType)
	lead.Budget = models.NormalizeOptional(lead.Budget)
	lead.Message = models.NormalizeOptional(lead.Message)
	lead.PartnerID = models.NormalizeOptional(lead.PartnerID)
	if lead.Status == "" {
		lead.Status = models.StatusNew
	}
	if lead.Source == "" {
		lead.Source = models.SourceContactForm
	}
	lead.Details.History = []models.Activity{created}
	return lead
}

// editDetails reads the lead's details on the loop, lets edit change a copy,
// and sends the result through UpdateLead.
func (c *Controller) editDetails(ctx context.Context, id string, edit func(user string, d *models.LeadDetails) bool) error {
	var (
		details models.LeadDetails
		found   bool
		hidden  bool
	)
	err := c.do(ctx, func(s *state) {
		i := s.leadIndex(id)
		if i < 0 {
			return
		}
		if !s.identity.Sees(s.leads[i]) {
			hidden = true
			return
		}
		details = s.leads[i].Details.Clone()
		found = edit(s.identity.UserName, &details)
	})
	if err != nil {
		return err
	}
	if hidden {
		return fmt.Errorf("edit lead %s: %w", id, ErrOutOfScope)
	}
	if !found {
		return nil
	}
	return c.UpdateLead(ctx, id, models.LeadPatch{Details: &details})
}

func (c *Controller) AddNote(ctx context.Context, id, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	now := c.now()
	return c.editDetails(ctx, id, func(user string, d *models.LeadDetails) bool {
		note := models.Note{ID: c.newID(), Content: content, Date: now, Author: user}
		activity := models.Activity{ID: c.newID(), Type: models.ActivityNoteAdded, Description: msgNoteAdded, Date: now, User: user}
		d.Notes = append([]models.Note{note}, d.Notes...)
		d.History = append([]models.Activity{activity}, d.History...)
		return true
	})
}

// AddTask appends a task. A zero due date means today.
func (c *Controller) AddTask(ctx context.Context, id, content string, due time.Time) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	now := c.now()
	if due.IsZero() {
		due = now
	}
	return c.editDetails(ctx, id, func(user string, d *models.LeadDetails) bool {
		task := models.Task{ID: c.newID(), Content: content, DueDate: due, CreatedAt: now}
		activity := models.Activity{ID: c.newID(), Type: models.ActivityTaskAdded, Description: msgTaskAdded, Date: now, User: user}
		d.Tasks = append(d.Tasks, task)
		d.History = append([]models.Activity{activity}, d.History...)
		return true
	})
}

func (c *Controller) ToggleTask(ctx context.Context, id, taskID string) error {
	return c.editDetails(ctx, id, func(_ string, d *models.LeadDetails) bool {
		for i := range d.Tasks {
			if d.Tasks[i].ID == taskID {
				d.Tasks[i].Completed = !d.Tasks[i].Completed
				return true
			}
		}
		return false
	})
}

func (c *Controller) DeleteTask(ctx context.Context, id, taskID string) error {
	return c.editDetails(ctx, id, func(_ string, d *models.LeadDetails) bool {
		for i := range d.Tasks {
			if d.Tasks[i].ID == taskID {
				d.Tasks = append(d.Tasks[:i:i], d.Tasks[i+1:]...)
				return true
			}
		}
		return false
	})
}

// CreatePartner inserts then reloads the partner list.
func (c *Controller) CreatePartner(ctx context.Context, req partners.CreateRequest) error {
	if !partners.ValidRate(req.CommissionRate) {
		c.notifyAsync(ctx, NotifyError, msgPartnerFailed)
		return partners.ErrInvalidRate
	}
	if err := c.store.InsertPartner(ctx, req); err != nil {
		c.log.Warn("dashboard partner create: store error", slog.String("error", err.Error()))
		c.notifyAsync(ctx, NotifyError, msgPartnerFailed)
		return fmt.Errorf("create partner: %w", err)
	}

	list, err := c.store.ListPartners(ctx)
	if err != nil {
		c.log.Warn("dashboard partner create: reload failed", slog.String("error", err.Error()))
	}
	return c.mutate(context.WithoutCancel(ctx), func(s *state) {
		if err == nil {
			s.partners = list
		}
		c.notify(s, NotifySuccess, msgPartnerAdded)
	})
}

// DeletePartner removes the partner from the mirror once the store confirms.
// Leads keep their now dangling reference.
func (c *Controller) DeletePartner(ctx context.Context, id string, confirm func(string) bool) error {
	if confirm == nil || !confirm(msgConfirmPartner) {
		return ErrNotConfirmed
	}
	werr := c.store.DeletePartner(ctx, id)
	err := c.mutate(context.WithoutCancel(ctx), func(s *state) {
		if werr != nil {
			c.notify(s, NotifyError, msgDeleteFailed)
			return
		}
		s.removePartner(id)
		c.notify(s, NotifySuccess, msgPartnerDeleted)
	})
	if werr != nil {
		return fmt.Errorf("delete partner %s: %w", id, werr)
	}
	return err
}

func (c *Controller) UpdatePartnerRate(ctx context.Context, id string, rate float64) error {
	if !partners.ValidRate(rate) {
		c.notifyAsync(ctx, NotifyError, msgRateFailed)
		return partners.ErrInvalidRate
	}
	cmd := &partnerRateCmd{id: id, rate: rate}
	_, err := c.execute(ctx, cmd,
		func(ctx context.Context) error { return c.store.UpdatePartnerRate(ctx, id, rate) },
		func() string { return msgRateUpdated },
		func(error) string { return msgRateFailed },
	)
	if err != nil {
		return fmt.Errorf("update partner rate %s: %w", id, err)
	}
	return nil
}

func (c *Controller) ToggleSort(ctx context.Context, key SortKey) error {
	return c.mutate(ctx, func(s *state) { s.sort = s.sort.Toggle(key) })
}

func (c *Controller) Dismiss(ctx context.Context, notificationID string) error {
	return c.mutate(ctx, func(s *state) { s.dismiss(notificationID) })
}

func (c *Controller) Identity(ctx context.Context) (Identity, error) {
	var id Identity
	err := c.do(ctx, func(s *state) { id = s.identity })
	return id, err
}

// View derives a snapshot from the mirror. The snapshot shares nothing with it.
func (c *Controller) View(ctx context.Context) (View, error) {
	var v View
	err := c.do(ctx, func(s *state) {
		v = BuildView(models.CloneLeads(s.leads), models.ClonePartners(s.partners), s.identity, s.sort, c.now())
		v.Loaded = s.loaded
		v.Notifications = append([]Notification{}, s.notifications...)
	})
	return v, err
}

// ExportCSV renders the visible leads as CSV and returns the download name.
func (c *Controller) ExportCSV(ctx context.Context, loc *time.Location) (string, string, error) {
	v, err := c.View(ctx)
	if err != nil {
		return "", "", err
	}
	content, err := EncodeCSV(ExportColumns, ExportRows(v.Leads, v.Partners, loc))
	if err != nil {
		return "", "", err
	}
	c.notifyAsync(ctx, NotifyInfo, msgExported)
	return ExportFilename(c.now(), "csv"), content, nil
}

package leads

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fluxior-backend/internal/models"
	"fluxior-backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

type memoryRepo struct {
	mu    sync.Mutex
	items map[string]models.Lead
	fail  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]models.Lead)}
}

func (m *memoryRepo) Create(ctx context.Context, lead models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.items[lead.ID] = lead.Clone()
	return nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Lead, 0, len(m.items))
	for _, l := range m.items {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.PartnerID != "" && !l.AssignedTo(filter.PartnerID) {
			continue
		}
		out = append(out, l.Clone())
	}
	return out, nil
}

func (m *memoryRepo) GetByID(ctx context.Context, id string) (models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.items[id]
	if !ok {
		return models.Lead{}, mongo.ErrNoDocuments
	}
	return l.Clone(), nil
}

func (m *memoryRepo) Update(ctx context.Context, id string, patch models.LeadPatch, now time.Time) (models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return models.Lead{}, m.fail
	}
	l, ok := m.items[id]
	if !ok {
		return models.Lead{}, mongo.ErrNoDocuments
	}
	patch.ApplyTo(&l)
	l.UpdatedAt = now
	m.items[id] = l
	return l.Clone(), nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return mongo.ErrNoDocuments
	}
	delete(m.items, id)
	return nil
}

type recordingPublisher struct {
	events []realtime.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event realtime.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newTestService() (*Service, *memoryRepo, *recordingPublisher) {
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	return NewService(repo, time.UTC, pub, nil, nil), repo, pub
}

func strPtr(s string) *string { return &s }

func TestSubmitWizardBuildsWizardLead(t *testing.T) {
	svc, repo, pub := newTestService()

	lead, err := svc.SubmitWizard(context.Background(), WizardRequest{
		Name:        " Alice <b>Martin</b> ",
		Email:       "Alice@Example.FR",
		ProjectType: "E-commerce",
		Budget:      "5000€",
		Goals:       []string{"Vendre en ligne", ""},
		DesignStyle: "Minimaliste",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, "Alice Martin", lead.Name)
	assert.Equal(t, "alice@example.fr", lead.Email)
	assert.Equal(t, models.SourceWizard, lead.Source)
	assert.Equal(t, models.StatusNew, lead.Status)
	assert.Nil(t, lead.Company)
	require.NotNil(t, lead.Details.Wizard)
	assert.Equal(t, []string{"Vendre en ligne"}, lead.Details.Wizard.Goals)

	stored, err := repo.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead, stored)

	require.Len(t, pub.events, 1)
	assert.Equal(t, realtime.EventInsert, pub.events[0].Type)
}

func TestSubmitContactKeepsMessage(t *testing.T) {
	svc, _, _ := newTestService()

	lead, err := svc.SubmitContact(context.Background(), ContactRequest{
		Name:    "Bob",
		Email:   "bob@example.fr",
		Message: "Refonte de notre site vitrine",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceContactForm, lead.Source)
	require.NotNil(t, lead.Message)
	assert.Equal(t, "Refonte de notre site vitrine", *lead.Message)
	require.NotNil(t, lead.Details.Manual)
}

func TestCreateRejectsInvalidValues(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, models.Lead{Name: "X", Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.Create(ctx, models.Lead{Name: "X", Source: "fax"})
	assert.ErrorIs(t, err, ErrInvalidSource)

	neg := -1.0
	_, err = svc.Create(ctx, models.Lead{Name: "X", DealAmount: &neg})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestUpdateUnassignsPartner(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	lead, err := svc.Create(ctx, models.Lead{Name: "Carla", Email: "c@x.fr", PartnerID: strPtr("p1")})
	require.NoError(t, err)

	status := models.StatusContacted
	updated, err := svc.Update(ctx, lead.ID, models.LeadPatch{PartnerID: strPtr(""), Status: &status})
	require.NoError(t, err)
	assert.Nil(t, updated.PartnerID)
	assert.Equal(t, models.StatusContacted, updated.Status)

	require.Len(t, pub.events, 2)
	assert.Equal(t, realtime.EventUpdate, pub.events[1].Type)
}

func TestUpdateErrors(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Update(ctx, "missing", models.LeadPatch{Name: strPtr("Name")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, "missing", models.LeadPatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)

	bogus := models.LeadStatus("archived")
	_, err = svc.Update(ctx, "missing", models.LeadPatch{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	lead, err := svc.Create(ctx, models.Lead{Name: "Dan", Email: "d@x.fr"})
	require.NoError(t, err)
	repo.fail = errors.New("write conflict")
	_, err = svc.Update(ctx, lead.ID, models.LeadPatch{Name: strPtr("Daniel")})
	assert.EqualError(t, err, "write conflict")
}

func TestDeletePublishes(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	lead, err := svc.Create(ctx, models.Lead{Name: "Eve", Email: "e@x.fr"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, lead.ID))
	assert.ErrorIs(t, svc.Delete(ctx, lead.ID), ErrNotFound)

	last := pub.events[len(pub.events)-1]
	assert.Equal(t, realtime.DeleteEvent(lead.ID), last)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.List(context.Background(), ListFilter{Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

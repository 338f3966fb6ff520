package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fluxior-backend/internal/models"
	"fluxior-backend/internal/partners"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("store unavailable")

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeStore records writes. When hold is set, every write signals entered
// and then blocks until hold is closed.
type fakeStore struct {
	mu       sync.Mutex
	leads    []models.Lead
	partners []models.Partner
	listErr  error
	writeErr error

	entered chan struct{}
	hold    chan struct{}

	updates  []models.LeadPatch
	inserted []models.Lead
	deleted  []string
	rates    map[string]float64
	nextID   int
}

func (f *fakeStore) gate() {
	if f.hold == nil {
		return
	}
	f.entered <- struct{}{}
	<-f.hold
}

func (f *fakeStore) holdWrites() {
	f.entered = make(chan struct{}, 1)
	f.hold = make(chan struct{})
}

func (f *fakeStore) ListLeads(ctx context.Context) ([]models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return models.CloneLeads(f.leads), nil
}

func (f *fakeStore) ListPartners(ctx context.Context) ([]models.Partner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return models.ClonePartners(f.partners), nil
}

func (f *fakeStore) InsertLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	f.gate()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return models.Lead{}, f.writeErr
	}
	f.nextID++
	lead.ID = "srv-" + strconv.Itoa(f.nextID)
	lead.CreatedAt = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	f.inserted = append(f.inserted, lead.Clone())
	return lead, nil
}

func (f *fakeStore) UpdateLead(ctx context.Context, id string, patch models.LeadPatch) error {
	f.gate()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, patch)
	return f.writeErr
}

func (f *fakeStore) DeleteLead(ctx context.Context, id string) error {
	f.gate()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) InsertPartner(ctx context.Context, req partners.CreateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.nextID++
	f.partners = append(f.partners, models.Partner{
		ID:             "p-" + strconv.Itoa(f.nextID),
		Name:           req.Name,
		Email:          req.Email,
		CommissionRate: req.CommissionRate,
		Role:           req.Role,
	})
	return nil
}

func (f *fakeStore) UpdatePartnerRate(ctx context.Context, id string, rate float64) error {
	f.gate()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.rates == nil {
		f.rates = make(map[string]float64)
	}
	f.rates[id] = rate
	return nil
}

func (f *fakeStore) DeletePartner(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.partners {
		if f.partners[i].ID == id {
			f.partners = append(f.partners[:i], f.partners[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeStore) lastUpdate() models.LeadPatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[len(f.updates)-1]
}

var testNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return "id-" + strconv.FormatInt(n.Add(1), 10) }
}

// startController runs a controller until the test ends. Notifications never expire.
func startController(t *testing.T, store Store, feed Feed) *Controller {
	t.Helper()
	c := New(Options{
		Store:     store,
		Feed:      feed,
		Log:       slogDiscard(),
		Now:       func() time.Time { return testNow },
		NotifyTTL: -1,
		NewID:     sequentialIDs(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errc)
	})
	return c
}

func loadedController(t *testing.T, store *fakeStore, email string) *Controller {
	t.Helper()
	c := startController(t, store, nil)
	require.NoError(t, c.Load(context.Background(), email))
	return c
}

func mustView(t *testing.T, c *Controller) View {
	t.Helper()
	v, err := c.View(context.Background())
	require.NoError(t, err)
	return v
}

func findLead(t *testing.T, v View, id string) models.Lead {
	t.Helper()
	for _, l := range v.Leads {
		if l.ID == id {
			return l
		}
	}
	t.Fatalf("lead %s not in view", id)
	return models.Lead{}
}

func lastNotification(t *testing.T, v View) Notification {
	t.Helper()
	require.NotEmpty(t, v.Notifications)
	return v.Notifications[len(v.Notifications)-1]
}

func strPtr(s string) *string { return &s }

func amountPtr(v float64) *float64 { return &v }

func statusPtr(s models.LeadStatus) *models.LeadStatus { return &s }

func sampleStore() *fakeStore {
	return &fakeStore{
		leads: []models.Lead{
			{
				ID:        "l1",
				Name:      "Alice Martin",
				Email:     "alice@example.fr",
				Status:    models.StatusNew,
				Source:    models.SourceWizard,
				CreatedAt: testNow.Add(-time.Hour),
				Budget:    strPtr("1 200€"),
				Details: models.LeadDetails{
					History: []models.Activity{{ID: "h0", Type: models.ActivityCreated, Description: "Lead créé", Date: testNow.Add(-time.Hour)}},
				},
			},
			{
				ID:         "l2",
				Name:       "Bruno Petit",
				Email:      "bruno@example.fr",
				Status:     models.StatusNegotiation,
				Source:     models.SourceContactForm,
				CreatedAt:  testNow.Add(-2 * time.Hour),
				PartnerID:  strPtr("p1"),
				DealAmount: amountPtr(500),
			},
			{
				ID:        "l3",
				Name:      "Chloé Durand",
				Email:     "chloe@example.fr",
				Status:    models.StatusContacted,
				Source:    models.SourceContactForm,
				CreatedAt: testNow.Add(-3 * time.Hour),
			},
		},
		partners: []models.Partner{
			{ID: "p1", Name: "Sophie", Email: "sophie@agence.fr", CommissionRate: 10, Role: "Apporteur"},
			{ID: "p2", Name: "Marc", Email: "marc@agence.fr", CommissionRate: 20, Role: "Directeur commercial"},
		},
	}
}

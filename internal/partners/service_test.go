package partners

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fluxior-backend/internal/cache"
	"fluxior-backend/internal/models"
	"fluxior-backend/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

type memoryRepo struct {
	items     []models.Partner
	listCalls int
}

func (m *memoryRepo) Create(ctx context.Context, p models.Partner) error {
	m.items = append(m.items, p)
	return nil
}

func (m *memoryRepo) List(ctx context.Context) ([]models.Partner, error) {
	m.listCalls++
	return models.ClonePartners(m.items), nil
}

func (m *memoryRepo) UpdateRate(ctx context.Context, id string, rate float64) (models.Partner, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].CommissionRate = rate
			return m.items[i], nil
		}
	}
	return models.Partner{}, mongo.ErrNoDocuments
}

func (m *memoryRepo) Delete(ctx context.Context, id string) error {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func newTestService() (*Service, *memoryRepo) {
	repo := &memoryRepo{}
	return NewService(repo, cache.NewMemory(), time.Minute, time.UTC, nil), repo
}

func TestListIsCachedUntilWrite(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	_, err := svc.Create(ctx, CreateRequest{Name: "Sophie", Email: "Sophie@Agence.fr", CommissionRate: 10, Role: "Apporteur"})
	require.NoError(t, err)

	first, err := svc.List(ctx)
	require.NoError(t, err)
	second, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
	require.Len(t, second, 1)
	assert.Equal(t, "sophie@agence.fr", first[0].Email)

	_, err = svc.UpdateRate(ctx, first[0].ID, 15)
	require.NoError(t, err)

	third, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
	assert.Equal(t, 15.0, third[0].CommissionRate)
}

func TestRateBounds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.Create(ctx, CreateRequest{Name: "Max", Email: "max@x.fr", CommissionRate: 120})
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = svc.UpdateRate(ctx, "p1", -1)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = svc.UpdateRate(ctx, "missing", 50)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), ErrNotFound)
}

func TestHandlerCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc, validation.New(), slogDiscard())

	body := `{"name":"L","email":"not-an-email","commission_rate":150}`
	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/partners", strings.NewReader(body)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation error", resp.Error)
	assert.Equal(t, map[string]string{"Name": "min", "Email": "email", "CommissionRate": "lte"}, resp.Details)
}

func TestHandlerUpdateRate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	p, err := svc.Create(ctx, CreateRequest{Name: "Nina", Email: "nina@x.fr", CommissionRate: 5})
	require.NoError(t, err)

	r := chi.NewRouter()
	h := NewHandler(svc, validation.New(), slogDiscard())
	r.Patch("/partners/{id}/commission", h.UpdateRate)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/partners/"+p.ID+"/commission", strings.NewReader(`{"commission_rate":12.5}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Partner
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, 12.5, updated.CommissionRate)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/partners/nope/commission", strings.NewReader(`{"commission_rate":1}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fluxior-backend/internal/middleware"
	"fluxior-backend/internal/models"
	"fluxior-backend/internal/realtime"
	"fluxior-backend/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store Store, feed Feed) http.Handler {
	h := NewHandler(store, feed, validation.New(), time.UTC, "https://app.fluxior.fr", -1, slogDiscard())
	r := chi.NewRouter()
	r.Get("/dashboard", h.View)
	r.Get("/dashboard/export.csv", h.ExportCSV)
	r.Get("/dashboard/export.xlsx", h.ExportXLSX)
	r.Get("/dashboard/revenue.png", h.RevenueChart)
	r.Get("/dashboard/ws", h.Live)
	return r
}

func TestViewEndpoint(t *testing.T) {
	router := newTestRouter(sampleStore(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?sort=amount&dir=asc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var v View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, RoleAdmin, v.Role)
	assert.Equal(t, SortConfig{Key: SortByAmount, Direction: SortAsc}, v.Sort)
	assert.Equal(t, []string{"l3", "l2", "l1"}, leadIDs(v.Leads))
	assert.Len(t, v.Monthly, MonthsShown)
}

func TestViewEndpointScopesPartnerSession(t *testing.T) {
	router := newTestRouter(sampleStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(middleware.WithSession(req.Context(), middleware.Session{Email: "sophie@agence.fr"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var v View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, RolePartner, v.Role)
	assert.Equal(t, []string{"l2"}, leadIDs(v.Leads))
}

func TestViewEndpointStoreError(t *testing.T) {
	store := sampleStore()
	store.listErr = errStore
	router := newTestRouter(store, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExportEndpoints(t *testing.T) {
	router := newTestRouter(sampleStore(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/export.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="fluxior-leads-`)
	assert.True(t, strings.HasPrefix(rec.Body.String(), `"Date","Nom"`))
	assert.Equal(t, 3, strings.Count(rec.Body.String(), "\n"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/export.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/revenue.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	empty := newTestRouter(&fakeStore{}, nil)
	rec = httptest.NewRecorder()
	empty.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/export.csv", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker("https://app.fluxior.fr")
	req := httptest.NewRequest(http.MethodGet, "/dashboard/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.fluxior.fr")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	sameHost := originChecker("")
	req = httptest.NewRequest(http.MethodGet, "http://api.fluxior.fr/dashboard/ws", nil)
	req.Header.Set("Origin", "http://api.fluxior.fr")
	assert.True(t, sameHost(req))
	req.Header.Set("Origin", "http://other.fr")
	assert.False(t, sameHost(req))
}

// readUntil reads server messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(serverMessage) bool) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg serverMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func resultFor(id string) func(serverMessage) bool {
	return func(m serverMessage) bool { return m.Action == "result" && m.RequestID == id }
}

func TestLiveSession(t *testing.T) {
	store := sampleStore()
	broker := realtime.NewMemoryBroker(slogDiscard())
	srv := httptest.NewServer(newTestRouter(store, broker))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/dashboard/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readUntil(t, conn, func(m serverMessage) bool { return m.Action == "view" })
	require.NotNil(t, first.View)
	assert.True(t, first.View.Loaded)
	assert.Len(t, first.View.Leads, 3)

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "move", RequestID: "r1", ID: "l1", Status: models.StatusSigned}))
	res := readUntil(t, conn, resultFor("r1"))
	assert.True(t, res.OK, res.Error)

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "move", RequestID: "r2", ID: "l1", Status: "archived"}))
	res = readUntil(t, conn, resultFor("r2"))
	assert.False(t, res.OK)
	assert.Equal(t, map[string]string{"status": "leadstatus"}, res.Details)

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "delete", RequestID: "r3", ID: "l3"}))
	res = readUntil(t, conn, resultFor("r3"))
	assert.Equal(t, ErrNotConfirmed.Error(), res.Error)

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "bogus", RequestID: "r4"}))
	res = readUntil(t, conn, resultFor("r4"))
	assert.Equal(t, errUnknownAction.Error(), res.Error)

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "export", RequestID: "r5"}))
	res = readUntil(t, conn, resultFor("r5"))
	require.True(t, res.OK, res.Error)
	assert.True(t, strings.HasPrefix(res.Filename, "fluxior-leads-"))
	assert.Contains(t, res.Content, `"signed"`)

	incoming := models.Lead{ID: "l9", Name: "Hugo", Email: "hugo@example.fr", Status: models.StatusNew, CreatedAt: time.Now()}
	publishCtx, cancelPublish := context.WithCancel(context.Background())
	t.Cleanup(cancelPublish)
	require.NoError(t, broker.Publish(publishCtx, realtime.InsertEvent(incoming)))
	pushed := readUntil(t, conn, func(m serverMessage) bool {
		return m.Action == "view" && m.View != nil && len(m.View.Leads) == 4
	})
	assert.Equal(t, "l9", pushed.View.Leads[0].ID)
}

func TestLivePartnerCannotManagePartners(t *testing.T) {
	router := newTestRouter(sampleStore(), nil)
	withSophie := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(middleware.WithSession(r.Context(), middleware.Session{Email: "sophie@agence.fr"}))
		router.ServeHTTP(w, r)
	})
	srv := httptest.NewServer(withSophie)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/dashboard/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	rate := 50.0
	require.NoError(t, conn.WriteJSON(clientMessage{Action: "update_partner_rate", RequestID: "p", ID: "p1", Rate: &rate}))
	res := readUntil(t, conn, resultFor("p"))
	assert.Equal(t, errForbidden.Error(), res.Error)
}

func TestLivePartnerCommandsStayInScope(t *testing.T) {
	store := sampleStore()
	router := newTestRouter(store, nil)
	withSophie := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(middleware.WithSession(r.Context(), middleware.Session{Email: "sophie@agence.fr"}))
		router.ServeHTTP(w, r)
	})
	srv := httptest.NewServer(withSophie)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/dashboard/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "move", RequestID: "m1", ID: "l1", Status: models.StatusSigned}))
	res := readUntil(t, conn, resultFor("m1"))
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, ErrOutOfScope.Error())

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "delete", RequestID: "d1", ID: "l3", Confirm: true}))
	res = readUntil(t, conn, resultFor("d1"))
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, ErrOutOfScope.Error())

	require.NoError(t, conn.WriteJSON(clientMessage{Action: "move", RequestID: "m2", ID: "l2", Status: models.StatusSigned}))
	res = readUntil(t, conn, resultFor("m2"))
	assert.True(t, res.OK, res.Error)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.updates, 1)
	assert.Empty(t, store.deleted)
}

func TestRequireAdmin(t *testing.T) {
	reached := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }
	serve := func(store Store, session *middleware.Session) *httptest.ResponseRecorder {
		h := NewHandler(store, nil, validation.New(), time.UTC, "", -1, slogDiscard())
		r := chi.NewRouter()
		r.With(h.RequireAdmin).Patch("/admin/partners/{id}/rate", reached)

		req := httptest.NewRequest(http.MethodPatch, "/admin/partners/p1/rate", bytes.NewBufferString(`{"commission_rate":50}`))
		if session != nil {
			req = req.WithContext(middleware.WithSession(req.Context(), *session))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(sampleStore(), &middleware.Session{Email: "sophie@agence.fr"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forbidden")

	assert.Equal(t, http.StatusNoContent, serve(sampleStore(), &middleware.Session{Email: "marc@agence.fr"}).Code)
	assert.Equal(t, http.StatusNoContent, serve(sampleStore(), &middleware.Session{Email: "admin@fluxior.fr"}).Code)
	assert.Equal(t, http.StatusNoContent, serve(sampleStore(), &middleware.Session{Key: true}).Code)
	assert.Equal(t, http.StatusNoContent, serve(sampleStore(), nil).Code)

	failing := sampleStore()
	failing.listErr = errStore
	assert.Equal(t, http.StatusInternalServerError, serve(failing, &middleware.Session{Email: "sophie@agence.fr"}).Code)
}

package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"fluxior-backend/internal/middleware"
	"fluxior-backend/internal/transport"
	"fluxior-backend/internal/validation"
	"github.com/gorilla/websocket"
)

type Handler struct {
	store     Store
	feed      Feed
	val       *validation.Validator
	loc       *time.Location
	notifyTTL time.Duration
	upgrader  websocket.Upgrader
	log       *slog.Logger
}

// NewHandler serves dashboard snapshots, exports and live sessions.
// Websocket upgrades are accepted from allowedOrigin or from clients that send no Origin.
func NewHandler(store Store, feed Feed, val *validation.Validator, loc *time.Location, allowedOrigin string, notifyTTL time.Duration, log *slog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		store:     store,
		feed:      feed,
		val:       val,
		loc:       loc,
		notifyTTL: notifyTTL,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		log: log,
	}
}

func originChecker(allowed string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		switch {
		case origin == "", allowed == "*", origin == allowed:
			return true
		case allowed != "":
			return false
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	v, err := h.load(r)
	if err != nil {
		log.Error("dashboard view: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("dashboard view: ok", slog.String("role", string(v.Role)), slog.Int("leads", len(v.Leads)))
	transport.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	v, err := h.load(r)
	if err != nil {
		log.Error("dashboard export csv: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	content, err := EncodeCSV(ExportColumns, ExportRows(v.Leads, v.Partners, h.loc))
	if err != nil {
		h.writeExportError(w, log, "csv", err)
		return
	}

	log.Info("dashboard export csv: ok", slog.Int("rows", len(v.Leads)))
	transport.WriteAttachment(w, "text/csv; charset=utf-8", ExportFilename(time.Now(), "csv"), []byte(content))
}

func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	v, err := h.load(r)
	if err != nil {
		log.Error("dashboard export xlsx: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	data, err := EncodeXLSX(ExportColumns, ExportRows(v.Leads, v.Partners, h.loc))
	if err != nil {
		h.writeExportError(w, log, "xlsx", err)
		return
	}

	log.Info("dashboard export xlsx: ok", slog.Int("rows", len(v.Leads)))
	transport.WriteAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ExportFilename(time.Now(), "xlsx"), data)
}

func (h *Handler) RevenueChart(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	v, err := h.load(r)
	if err != nil {
		log.Error("dashboard chart: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	png, err := RenderRevenueChart(v.Monthly)
	if err != nil {
		log.Error("dashboard chart: render failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "render error", nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// RequireAdmin refuses sessions that resolve to a partner. Lead and partner
// management outside the dashboard is admin only.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := h.logWithRequest(r)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		partnerList, err := h.store.ListPartners(ctx)
		cancel()
		if err != nil {
			log.Error("dashboard role: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
			return
		}

		id := ResolveRole(middleware.SessionEmailFromContext(r.Context()), partnerList)
		if id.Role != RoleAdmin {
			log.Warn("dashboard role: forbidden",
				slog.String("partner_id", id.PartnerID),
				slog.String("path", r.URL.Path),
			)
			transport.WriteError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) load(r *http.Request) (View, error) {
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	q := r.URL.Query()
	email := middleware.SessionEmailFromContext(r.Context())
	return LoadView(ctx, h.store, email, ParseSort(q.Get("sort"), q.Get("dir")), time.Now().In(h.loc))
}

func (h *Handler) writeExportError(w http.ResponseWriter, log *slog.Logger, format string, err error) {
	if errors.Is(err, ErrNothingToExport) {
		log.Warn("dashboard export " + format + ": nothing to export")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	log.Error("dashboard export "+format+": encode failed", slog.String("error", err.Error()))
	transport.WriteError(w, http.StatusInternalServerError, "export error", nil)
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}

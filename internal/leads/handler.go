package leads

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fluxior-backend/internal/httpx"
	"fluxior-backend/internal/middleware"
	"fluxior-backend/internal/models"
	"fluxior-backend/internal/transport"
	"fluxior-backend/internal/validation"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

func (h *Handler) SubmitWizard(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req WizardRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("lead wizard: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("lead wizard: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	lead, err := h.service.SubmitWizard(ctx, req)
	if err != nil {
		log.Error("lead wizard: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.notifyAsync(lead)
	log.Info("lead wizard: ok", slog.String("lead_id", lead.ID))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "lead submitted",
		"id":      lead.ID,
	})
}

func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req ContactRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("lead contact: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("lead contact: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	lead, err := h.service.SubmitContact(ctx, req)
	if err != nil {
		log.Error("lead contact: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.notifyAsync(lead)
	log.Info("lead contact: ok", slog.String("lead_id", lead.ID))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "message received",
		"id":      lead.ID,
	})
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 100, 500)
	if err != nil {
		log.Warn("admin lead list: invalid pagination")
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	filter := ListFilter{
		Status:    models.LeadStatus(r.URL.Query().Get("status")),
		PartnerID: r.URL.Query().Get("partner_id"),
		Limit:     limit,
		Offset:    offset,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, err := h.service.List(ctx, filter)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "leadstatus"})
			return
		}
		log.Error("admin lead list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin lead list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"total":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) AdminGetByID(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin lead get: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lead, err := h.service.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin lead get: not found", slog.String("lead_id", id))
			transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
			return
		}
		log.Error("admin lead get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin lead get: ok", slog.String("lead_id", id))
	transport.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin lead create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin lead create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	lead, err := h.service.Create(ctx, req.Lead())
	if err != nil {
		if field, ok := fieldForError(err); ok {
			transport.WriteError(w, http.StatusBadRequest, "validation error", field)
			return
		}
		log.Error("admin lead create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin lead create: ok", slog.String("lead_id", lead.ID))
	transport.WriteJSON(w, http.StatusCreated, lead)
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin lead update: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var patch models.LeadPatch
	if err := httpx.DecodeJSON(r.Body, &patch); err != nil {
		log.Warn("admin lead update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(patch); err != nil {
		log.Warn("admin lead update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lead, err := h.service.Update(ctx, id, patch)
	if err != nil {
		if field, ok := fieldForError(err); ok {
			transport.WriteError(w, http.StatusBadRequest, "validation error", field)
			return
		}
		if errors.Is(err, ErrEmptyPatch) {
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin lead update: not found", slog.String("lead_id", id))
			transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
			return
		}
		log.Error("admin lead update: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin lead update: ok", slog.String("lead_id", id), slog.String("status", string(lead.Status)))
	transport.WriteJSON(w, http.StatusOK, lead)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin lead delete: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin lead delete: not found", slog.String("lead_id", id))
			transport.WriteError(w, http.StatusNotFound, "lead not found", nil)
			return
		}
		log.Error("admin lead delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin lead delete: ok", slog.String("lead_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) notifyAsync(lead models.Lead) {
	go func(created models.Lead) {
		notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer notifyCancel()
		if err := h.service.NotifyNewLead(notifyCtx, created); err != nil {
			h.log.Warn("lead notify: failed",
				slog.String("lead_id", created.ID),
				slog.String("error", err.Error()),
			)
		}
	}(lead)
}

func fieldForError(err error) (map[string]string, bool) {
	switch {
	case errors.Is(err, ErrInvalidStatus):
		return map[string]string{"status": "leadstatus"}, true
	case errors.Is(err, ErrInvalidSource):
		return map[string]string{"source": "leadsource"}, true
	case errors.Is(err, ErrInvalidAmount):
		return map[string]string{"deal_amount": "gte"}, true
	}
	return nil, false
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

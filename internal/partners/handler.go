package partners

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fluxior-backend/internal/httpx"
	"fluxior-backend/internal/middleware"
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
	return &Handler{service: service, val: val, log: log}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.List(ctx)
	if err != nil {
		log.Error("partners list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("partners list: ok", slog.Int("count", len(items)))
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{"partners": items})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("partners create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("partners create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	partner, err := h.service.Create(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRate):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"CommissionRate": "lte"})
		case errors.Is(err, ErrDuplicate):
			log.Warn("partners create: duplicate", slog.String("email", req.Email))
			transport.WriteError(w, http.StatusConflict, err.Error(), nil)
		default:
			log.Error("partners create: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("partners create: ok", slog.String("partner_id", partner.ID))
	transport.WriteJSON(w, http.StatusCreated, partner)
}

func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req RateUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("partners rate: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("partners rate: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	partner, err := h.service.UpdateRate(ctx, id, *req.CommissionRate)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("partners rate: not found", slog.String("partner_id", id))
			transport.WriteError(w, http.StatusNotFound, "partner not found", nil)
			return
		}
		log.Error("partners rate: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("partners rate: ok", slog.String("partner_id", id), slog.Float64("rate", partner.CommissionRate))
	transport.WriteJSON(w, http.StatusOK, partner)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "partner not found", nil)
			return
		}
		log.Error("partners delete: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("partners delete: ok", slog.String("partner_id", id))
	w.WriteHeader(http.StatusNoContent)
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

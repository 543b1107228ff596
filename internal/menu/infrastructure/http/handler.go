package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ymaeda2106/Stall-Order-System/internal/auth"
	"github.com/ymaeda2106/Stall-Order-System/internal/menu/application"
	"github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	guard   *auth.Guard
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, guard *auth.Guard) *Handler {
	return &Handler{
		log:     log,
		service: service,
		guard:   guard,
		tracer:  otel.Tracer("menu-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/menu", h.getMenu)

	admin := h.guard.Require(auth.RoleAdmin)
	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/admin/menu/overrides", h.getOverrides)
		r.Put("/admin/menu/overrides", h.putOverrides)
	})
}

func (h *Handler) getMenu(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetMenu")
	defer span.End()

	items, err := h.service.Resolved(ctx)
	if err != nil {
		h.log.Error("resolve menu failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) getOverrides(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetMenuOverrides")
	defer span.End()

	ov, err := h.service.Overrides(ctx)
	if err != nil {
		h.log.Error("load menu overrides failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if ov == nil {
		ov = domain.Overrides{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": ov})
}

func (h *Handler) putOverrides(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PutMenuOverrides")
	defer span.End()

	var req struct {
		Overrides domain.Overrides `json:"overrides"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	if err := h.service.SaveOverrides(ctx, req.Overrides); err != nil {
		if errors.Is(err, domain.ErrInvalidOverride) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("save menu overrides failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

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
	"github.com/ymaeda2106/Stall-Order-System/internal/drawer/application"
	"github.com/ymaeda2106/Stall-Order-System/internal/drawer/domain"
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
		tracer:  otel.Tracer("drawer-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(auth.RoleAdmin))

		r.Get("/admin/drawer/{date}", h.getSheet)
		r.Get("/admin/drawer/{date}/stream", h.streamSheet)
		r.Put("/admin/drawer/{date}", h.putCounts)
		r.Post("/admin/drawer/{date}/vouchers", h.addVoucher)
		r.Delete("/admin/drawer/{date}/vouchers/{orderID}", h.removeVoucher)
	})
}

// sheetPayload joins the raw sheet with its derived breakdown so the
// client never recomputes money.
type sheetPayload struct {
	domain.Sheet
	Breakdown   domain.Breakdown `json:"breakdown"`
	ShiftTotals map[int]int      `json:"shiftTotals"`
}

func toPayload(sheet domain.Sheet) sheetPayload {
	return sheetPayload{
		Sheet:       sheet,
		Breakdown:   sheet.Breakdown(),
		ShiftTotals: sheet.ShiftTotals(),
	}
}

func (h *Handler) getSheet(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetDrawerSheet")
	defer span.End()

	sheet, err := h.service.Get(ctx, chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(sheet))
}

// streamSheet pushes the sheet over SSE: once at connect, then after
// every mutation, so two open admin views never drift. Slow clients
// drop frames; each frame carries the full sheet.
func (h *Handler) streamSheet(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	sheet, err := h.service.Get(r.Context(), date)
	if err != nil {
		h.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	frames := make(chan []byte, 4)
	push := func(s domain.Sheet) {
		data, err := json.Marshal(toPayload(s))
		if err != nil {
			return
		}
		frame := append(append([]byte("event: sheet\ndata: "), data...), '\n', '\n')
		select {
		case frames <- frame:
		default:
		}
	}

	cancel, err := h.service.Watch(date, push)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	push(sheet)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-frames:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) putCounts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PutDrawerCounts")
	defer span.End()

	var req struct {
		Counts domain.Counts `json:"counts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	sheet, err := h.service.SaveCounts(ctx, chi.URLParam(r, "date"), req.Counts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(sheet))
}

func (h *Handler) addVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddDrawerVoucher")
	defer span.End()

	var req struct {
		OrderID string `json:"orderId"`
		Shift   int    `json:"shift"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	sheet, err := h.service.AddVoucher(ctx, chi.URLParam(r, "date"), req.OrderID, req.Shift)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(sheet))
}

func (h *Handler) removeVoucher(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RemoveDrawerVoucher")
	defer span.End()

	sheet, err := h.service.RemoveVoucher(ctx, chi.URLParam(r, "date"), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayload(sheet))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCount),
		errors.Is(err, domain.ErrUnknownDenomination),
		errors.Is(err, domain.ErrBadDate),
		errors.Is(err, domain.ErrBadVoucher):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("drawer request failed", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

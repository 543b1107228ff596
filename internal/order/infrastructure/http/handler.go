package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ymaeda2106/Stall-Order-System/internal/auth"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/application"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/domain"
)

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	guard    *auth.Guard
	baseURL  string
	cooldown func(http.Handler) http.Handler
	tracer   trace.Tracer
}

// NewHandler builds the order API. cooldown throttles the manual
// refresh style endpoints and may be nil.
func NewHandler(log *slog.Logger, service *application.Service, guard *auth.Guard, baseURL string, cooldown func(http.Handler) http.Handler) *Handler {
	if cooldown == nil {
		cooldown = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		log:      log,
		service:  service,
		guard:    guard,
		baseURL:  baseURL,
		cooldown: cooldown,
		tracer:   otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Register adds the order routes to an existing router so several
// handlers can share one mount point.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/tickets/{ticket}", h.lookupTicket)
	r.Get("/tickets/{ticket}/stream", h.streamTicket)

	staff := h.guard.Require(auth.RoleAdmin, auth.RoleKitchen, auth.RoleCounter)
	r.Group(func(r chi.Router) {
		r.Use(staff)
		r.With(h.cooldown).Get("/orders", h.listOrders)
		r.Get("/orders/stream", h.streamOrders)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Patch("/orders/{orderID}/status", h.patchStatus)
		r.Patch("/orders/{orderID}/plating", h.patchPlating)
	})

	admin := h.guard.Require(auth.RoleAdmin)
	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/admin/export.csv", h.exportCSV)
		r.With(h.cooldown).Get("/admin/reports/hourly", h.hourlyReport)
		r.With(h.cooldown).Get("/admin/reports/active", h.activeReport)
	})
}

type orderPayload struct {
	OrderID    string                   `json:"orderId"`
	Ticket     string                   `json:"ticket"`
	CallNumber int                      `json:"callNumber"`
	Items      map[string]int           `json:"items"`
	Total      int64                    `json:"total"`
	Payment    domain.PaymentStatus     `json:"payment"`
	Progress   domain.ProgressStatus    `json:"progress"`
	Plating    map[domain.Category]bool `json:"plating"`
	CreatedAt  *time.Time               `json:"createdAt,omitempty"`
	UpdatedAt  time.Time                `json:"updatedAt"`
	// ProgressURL is the customer-facing link, only set on the public
	// endpoints that hand the ticket back to the customer.
	ProgressURL string `json:"progressUrl,omitempty"`
}

func (h *Handler) toPayload(o domain.Order, withURL bool) orderPayload {
	p := orderPayload{
		OrderID:    o.ID,
		Ticket:     o.Ticket,
		CallNumber: o.CallNumber,
		Items:      o.Items,
		Total:      o.Total,
		Payment:    o.Payment,
		Progress:   o.Progress,
		Plating:    o.Plating,
		UpdatedAt:  o.UpdatedAt,
	}
	if !o.CreatedAt.IsZero() {
		t := o.CreatedAt
		p.CreatedAt = &t
	}
	if withURL {
		p.ProgressURL = fmt.Sprintf("%s/order/complete/%s", h.baseURL, o.Ticket)
	}
	return p
}

type createOrderReq struct {
	Items     map[string]int `json:"items"`
	CreatedBy string         `json:"createdBy"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	o, err := h.service.Create(ctx, req.Items, req.CreatedBy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toPayload(o, true))
}

func (h *Handler) lookupTicket(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "LookupTicket")
	defer span.End()

	o, err := h.service.Lookup(ctx, chi.URLParam(r, "ticket"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPayload(o, true))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.Get(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPayload(o, false))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	window, err := parseWindow(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.service.List(ctx, window)
	if err != nil {
		h.writeError(w, err)
		return
	}
	payloads := make([]orderPayload, 0, len(orders))
	for _, o := range orders {
		payloads = append(payloads, h.toPayload(o, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": payloads})
}

type statusPatchReq struct {
	Payment  *string `json:"payment"`
	Progress *string `json:"progress"`
}

func (h *Handler) patchStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PatchOrderStatus")
	defer span.End()

	var req statusPatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	var upd application.StatusUpdate
	if req.Payment != nil {
		p := domain.PaymentStatus(*req.Payment)
		upd.Payment = &p
	}
	if req.Progress != nil {
		p := domain.ProgressStatus(*req.Progress)
		upd.Progress = &p
	}

	o, err := h.service.UpdateStatus(ctx, chi.URLParam(r, "orderID"), r.URL.Query().Get("ticket"), upd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPayload(o, false))
}

type platingPatchReq struct {
	Plating map[domain.Category]bool `json:"plating"`
}

func (h *Handler) patchPlating(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PatchOrderPlating")
	defer span.End()

	var req platingPatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}

	o, err := h.service.UpdatePlating(ctx, chi.URLParam(r, "orderID"), r.URL.Query().Get("ticket"), req.Plating)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPayload(o, false))
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ExportOrdersCSV")
	defer span.End()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="orders-%s.csv"`, time.Now().Format("20060102")))
	if err := h.service.ExportCSV(ctx, w); err != nil {
		// Headers are already out; all we can do is log.
		h.log.Error("csv export failed", "err", err)
	}
}

func (h *Handler) hourlyReport(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HourlySalesReport")
	defer span.End()

	origin := time.Now().Truncate(time.Hour).Add(-11 * time.Hour)
	if raw := r.URL.Query().Get("origin"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid origin, want RFC3339")
			return
		}
		origin = t
	}
	hours := 12
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 48 {
			writeJSONError(w, http.StatusBadRequest, "invalid hours, want 1..48")
			return
		}
		hours = n
	}

	buckets, err := h.service.HourlySales(ctx, origin, hours)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

func (h *Handler) activeReport(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ActiveOrdersReport")
	defer span.End()

	sum, err := h.service.ActiveSummary(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func parseWindow(r *http.Request) (domain.Window, error) {
	var w domain.Window
	q := r.URL.Query()
	if raw := q.Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.Window{}, errors.New("invalid start, want RFC3339")
		}
		w.Start = &t
	}
	if raw := q.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.Window{}, errors.New("invalid end, want RFC3339")
		}
		w.End = &t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return domain.Window{}, errors.New("invalid limit")
		}
		w.Limit = n
	}
	return w, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrUnknownItem),
		errors.Is(err, domain.ErrInvalidStatus):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request failed", "err", err)
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

package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ymaeda2106/Stall-Order-System/internal/order/domain"
)

// SSE plumbing. Listener callbacks run on the publisher's goroutine,
// so frames go through a buffered channel and slow clients drop frames
// instead of blocking the store.

const sseBuffer = 16

type sseConn struct {
	w       http.ResponseWriter
	flusher http.Flusher
	frames  chan []byte
}

func newSSEConn(w http.ResponseWriter) (*sseConn, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &sseConn{w: w, flusher: flusher, frames: make(chan []byte, sseBuffer)}, true
}

func (c *sseConn) push(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	frame := fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event, data)
	select {
	case c.frames <- frame:
	default:
		// Client is not keeping up. The next frame carries full state,
		// so losing this one is harmless.
	}
}

// serve writes frames until the client goes away. A periodic comment
// keeps intermediaries from timing the connection out.
func (c *sseConn) serve(r *http.Request) {
	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-c.frames:
			if _, err := c.w.Write(frame); err != nil {
				return
			}
			c.flusher.Flush()
		case <-keepalive.C:
			if _, err := c.w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			c.flusher.Flush()
		}
	}
}

func (h *Handler) streamTicket(w http.ResponseWriter, r *http.Request) {
	conn, ok := newSSEConn(w)
	if !ok {
		return
	}

	cancel, err := h.service.WatchTicket(r.Context(), chi.URLParam(r, "ticket"), func(o domain.Order, found bool) {
		if !found {
			conn.push("missing", map[string]bool{"found": false})
			return
		}
		conn.push("order", h.toPayload(o, true))
	})
	if err != nil {
		h.log.Error("ticket stream subscribe failed", "err", err)
		return
	}
	defer cancel()

	conn.serve(r)
}

func (h *Handler) streamOrders(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, ok := newSSEConn(w)
	if !ok {
		return
	}

	cancelCreated := h.service.WatchCreated(func(o domain.Order) {
		conn.push("created", h.toPayload(o, false))
	})
	defer cancelCreated()

	cancel, err := h.service.WatchOrders(r.Context(), window, func(orders []domain.Order) {
		payloads := make([]orderPayload, 0, len(orders))
		for _, o := range orders {
			payloads = append(payloads, h.toPayload(o, false))
		}
		conn.push("orders", map[string]any{"orders": payloads})
	})
	if err != nil {
		h.log.Error("order stream subscribe failed", "err", err)
		return
	}
	defer cancel()

	conn.serve(r)
}

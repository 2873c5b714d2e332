package payment_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payment-gateway/internal/logger"
	"payment-gateway/internal/sse"
)

type SSEHandler struct {
	Emitter *sse.PaymentEventEmitter
	Logger  *logger.Logger
}

func NewSSEHandler(emitter *sse.PaymentEventEmitter, log *logger.Logger) *SSEHandler {
	return &SSEHandler{Emitter: emitter, Logger: log}
}

func (h *SSEHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/payments/{paymentId}/events", h.StreamPaymentEvents)
	r.Get("/api/v1/orders/{orderId}/payment-events", h.StreamOrderEvents)
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// StreamPaymentEvents pushes status updates for a single payment over SSE.
func (h *SSEHandler) StreamPaymentEvents(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	h.Logger.Info("SSE", fmt.Sprintf("Client subscribed to payment %s", paymentID))

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	setupSSEHeaders(w)

	events := h.Emitter.SubscribeToPayment(r.Context(), paymentID)

	fmt.Fprintf(w, "event: connected\ndata: {\"paymentId\": %q}\n\n", paymentID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.Logger.Info("SSE", fmt.Sprintf("Client disconnected from payment %s", paymentID))
			return
		case event, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to marshal event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// StreamOrderEvents pushes status updates for every payment on an order.
func (h *SSEHandler) StreamOrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("SSE", fmt.Sprintf("Client subscribed to order %s", orderID))

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	setupSSEHeaders(w)

	events := h.Emitter.SubscribeToOrder(r.Context(), orderID)

	fmt.Fprintf(w, "event: connected\ndata: {\"orderId\": %q}\n\n", orderID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.Logger.Info("SSE", fmt.Sprintf("Client disconnected from order %s", orderID))
			return
		case event, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to marshal event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

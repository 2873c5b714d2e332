package payment_api

import (
	"context"
	"encoding/json"
	"net/http"

	"payment-gateway/internal/storage"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	Store storage.Store
	Redis Pinger
}

func NewHealthHandler(store storage.Store, redis Pinger) *HealthHandler {
	return &HealthHandler{Store: store, Redis: redis}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "Payment Service",
	})
}

// Ready reports whether the service can reach its dependencies.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if err := h.Store.HealthCheck(r.Context()); err != nil {
		checks["database_service"] = err.Error()
		healthy = false
	} else {
		checks["database_service"] = "ok"
	}

	if h.Redis != nil {
		if err := h.Redis.Ping(r.Context()); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

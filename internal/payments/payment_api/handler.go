package payment_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payment-gateway/internal/auth"
	"payment-gateway/internal/logger"
	"payment-gateway/internal/models"
	"payment-gateway/internal/payments"
	"payment-gateway/internal/qr"
	"payment-gateway/internal/utils"
)

type Handler struct {
	PaymentService *payments.PaymentService
	QR             *qr.Generator
	Logger         *logger.Logger
}

func NewHandler(paymentService *payments.PaymentService, qrGenerator *qr.Generator, log *logger.Logger) *Handler {
	return &Handler{
		PaymentService: paymentService,
		QR:             qrGenerator,
		Logger:         log,
	}
}

// RegisterRoutes mounts all payment endpoints on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/payments", h.CreatePayment)
	r.Get("/api/v1/payments/{paymentId}", h.GetPaymentStatus)
	r.Get("/api/v1/payments/{paymentId}/receipt/qr", h.GetReceiptQR)

	r.Post("/api/v1/intents", h.CreateIntent)
	r.Post("/api/v1/intents/{intentId}/confirm", h.ConfirmIntent)
	r.Post("/api/v1/intents/{intentId}/capture", h.CaptureIntent)
	r.Post("/api/v1/charges/{chargeId}/refund", h.RefundCharge)
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "CreatePayment: received request")

	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreatePayment: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	ctx := r.Context()
	// Attribute the payment to the caller when a bearer token is present,
	// even with the OIDC middleware disabled.
	if auth.UserID(ctx) == "" {
		if token, err := auth.ExtractTokenFromRequest(r); err == nil {
			if sub, err := auth.ExtractUserIDFromJWT(token); err == nil {
				ctx = auth.WithUserID(ctx, sub)
			}
		}
	}

	payment, err := h.PaymentService.Submit(ctx, req)
	if err != nil {
		h.writeServiceError(w, "CreatePayment", err)
		return
	}

	// A terminal record means sync mode completed the payment in-line;
	// otherwise the caller polls for the outcome.
	if payment.Status.IsTerminal() {
		h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Payment processed", payment))
	} else {
		h.writeJSON(w, http.StatusAccepted, utils.SuccessResponse("Payment accepted", payment))
	}
}

func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	h.Logger.Info("API", fmt.Sprintf("GetPaymentStatus: paymentId=%s", paymentID))

	status, err := h.PaymentService.GetStatus(r.Context(), paymentID)
	if err != nil {
		h.writeServiceError(w, "GetPaymentStatus", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Payment status", status))
}

func (h *Handler) GetReceiptQR(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	h.Logger.Info("API", fmt.Sprintf("GetReceiptQR: paymentId=%s", paymentID))

	payment, err := h.PaymentService.GetPayment(r.Context(), paymentID)
	if err != nil {
		h.writeServiceError(w, "GetReceiptQR", err)
		return
	}

	png, err := h.QR.GenerateReceiptQR(*payment)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetReceiptQR: failed to generate QR: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to generate receipt QR", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetReceiptQR: failed to write response: %v", err))
	}
}

func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "CreateIntent: received request")

	var req models.IntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateIntent: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	intent, err := h.PaymentService.CreateIntent(r.Context(), req, idempotencyKey)
	if err != nil {
		h.writeServiceError(w, "CreateIntent", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Intent created", intent))
}

func (h *Handler) ConfirmIntent(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "intentId")
	h.Logger.Info("API", fmt.Sprintf("ConfirmIntent: intentId=%s", intentID))

	intent, err := h.PaymentService.ConfirmIntent(r.Context(), intentID)
	if err != nil {
		h.writeServiceError(w, "ConfirmIntent", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Intent confirmed", intent))
}

func (h *Handler) CaptureIntent(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "intentId")
	h.Logger.Info("API", fmt.Sprintf("CaptureIntent: intentId=%s", intentID))

	charge, err := h.PaymentService.CaptureIntent(r.Context(), intentID)
	if err != nil {
		h.writeServiceError(w, "CaptureIntent", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Intent captured", charge))
}

func (h *Handler) RefundCharge(w http.ResponseWriter, r *http.Request) {
	chargeID := chi.URLParam(r, "chargeId")
	h.Logger.Info("API", fmt.Sprintf("RefundCharge: chargeId=%s", chargeID))

	charge, err := h.PaymentService.RefundCharge(r.Context(), chargeID)
	if err != nil {
		h.writeServiceError(w, "RefundCharge", err)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Charge refunded", charge))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, payments.ErrInvalidRequest):
		h.Logger.Warn("API", fmt.Sprintf("%s: invalid request: %v", operation, err))
		h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", err.Error()))
	case errors.Is(err, payments.ErrNotFound):
		h.Logger.Warn("API", fmt.Sprintf("%s: not found: %v", operation, err))
		h.writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", err.Error()))
	case errors.Is(err, payments.ErrOrderInFlight):
		h.Logger.Warn("API", fmt.Sprintf("%s: conflict: %v", operation, err))
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("Conflict", err.Error()))
	case errors.Is(err, payments.ErrIntentNotAuthorized):
		h.Logger.Warn("API", fmt.Sprintf("%s: conflict: %v", operation, err))
		h.writeJSON(w, http.StatusConflict, utils.ErrorResponse("Intent not authorized", err.Error()))
	case errors.Is(err, payments.ErrUpstreamUnavailable):
		h.Logger.Error("API", fmt.Sprintf("%s: upstream unavailable: %v", operation, err))
		h.writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Database service unavailable", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: internal error: %v", operation, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", err.Error()))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}

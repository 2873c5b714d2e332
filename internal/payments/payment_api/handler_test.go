package payment_api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-gateway/internal/logger"
	"payment-gateway/internal/models"
	"payment-gateway/internal/payments"
	"payment-gateway/internal/payments/gateway"
	"payment-gateway/internal/payments/payment_api"
	"payment-gateway/internal/qr"
	"payment-gateway/internal/storage"
)

// memStore keeps records in memory so handler tests can run the full
// request path without a database service.
type memStore struct {
	mu       sync.Mutex
	payments map[string]models.Payment
	intents  map[string]models.PaymentIntent
	charges  map[string]models.Charge
}

func newMemStore() *memStore {
	return &memStore{
		payments: make(map[string]models.Payment),
		intents:  make(map[string]models.PaymentIntent),
		charges:  make(map[string]models.Charge),
	}
}

func (m *memStore) SavePayment(ctx context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.PaymentID] = *p
	return nil
}

func (m *memStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return &p, nil
}

func (m *memStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	return m.SavePayment(ctx, p)
}

func (m *memStore) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == orderID {
			cp := p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: order %s", storage.ErrNotFound, orderID)
}

func (m *memStore) SaveIntent(ctx context.Context, i *models.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[i.ID] = *i
	return nil
}

func (m *memStore) GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return &i, nil
}

func (m *memStore) UpdateIntent(ctx context.Context, i *models.PaymentIntent) error {
	return m.SaveIntent(ctx, i)
}

func (m *memStore) SaveCharge(ctx context.Context, c *models.Charge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges[c.ID] = *c
	return nil
}

func (m *memStore) GetCharge(ctx context.Context, id string) (*models.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.charges[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return &c, nil
}

func (m *memStore) UpdateCharge(ctx context.Context, c *models.Charge) error {
	return m.SaveCharge(ctx, c)
}

func (m *memStore) HealthCheck(ctx context.Context) error {
	return nil
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setupRouter(t *testing.T, syncMode bool) (*chi.Mux, *memStore) {
	t.Helper()
	log := logger.NewLogger()
	t.Cleanup(func() { log.Close() })

	store := newMemStore()
	svc := payments.NewPaymentService(store, gateway.NewMockGateway(log), nil, nil, nil, syncMode, log)

	handler := payment_api.NewHandler(svc, qr.NewGenerator("test-secret"), log)
	healthHandler := payment_api.NewHealthHandler(store, nil)

	r := chi.NewRouter()
	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Ready)
	handler.RegisterRoutes(r)
	return r, store
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed apiResponse
	if rec.Header().Get("Content-Type") == "application/json" {
		json.Unmarshal(rec.Body.Bytes(), &parsed)
	}
	return rec, parsed
}

func TestCreatePaymentSync(t *testing.T) {
	router, _ := setupRouter(t, true)

	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{
		OrderID:  "O1",
		Amount:   49.99,
		Currency: "usd",
	}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(resp.Data, &payment))
	assert.Equal(t, models.StatusSucceeded, payment.Status)
	assert.NotEmpty(t, payment.PaymentID)

	// The status endpoint must agree.
	rec, resp = doJSON(t, router, http.MethodGet, "/api/v1/payments/"+payment.PaymentID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status models.StatusResponse
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.Equal(t, models.StatusSucceeded, status.Status)
}

func TestCreatePaymentAsyncAccepted(t *testing.T) {
	router, _ := setupRouter(t, false)

	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{
		OrderID:  "O2",
		Amount:   10.00,
		Currency: "eur",
	}, nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(resp.Data, &payment))
	assert.Equal(t, models.StatusPending, payment.Status)
}

func TestCreatePaymentValidation(t *testing.T) {
	router, _ := setupRouter(t, true)

	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{
		OrderID: "O3",
		Amount:  -1,
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestCreatePaymentMalformedBody(t *testing.T) {
	router, _ := setupRouter(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPaymentStatusNotFound(t *testing.T) {
	router, _ := setupRouter(t, true)

	rec, resp := doJSON(t, router, http.MethodGet, "/api/v1/payments/pay_missing", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
}

func TestDeclinedPaymentReturnsFailedRecord(t *testing.T) {
	router, _ := setupRouter(t, true)

	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{
		OrderID:  "O4",
		Amount:   20.00,
		Currency: "usd",
		Method:   "card_declined",
	}, nil)

	// A decline is still a processed payment, not an HTTP error.
	assert.Equal(t, http.StatusOK, rec.Code)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(resp.Data, &payment))
	assert.Equal(t, models.StatusFailed, payment.Status)
	assert.Equal(t, "card declined", payment.FailureReason)
}

func TestReceiptQR(t *testing.T) {
	router, _ := setupRouter(t, true)

	_, resp := doJSON(t, router, http.MethodPost, "/api/v1/payments", models.PaymentRequest{
		OrderID:  "O5",
		Amount:   99.00,
		Currency: "usd",
	}, nil)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(resp.Data, &payment))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+payment.PaymentID+"/receipt/qr", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte{0x89, 'P', 'N', 'G'}))
}

func TestIntentFlowOverHTTP(t *testing.T) {
	router, _ := setupRouter(t, true)

	// Create
	rec, resp := doJSON(t, router, http.MethodPost, "/api/v1/intents", models.IntentRequest{
		OrderID:  "O6",
		Amount:   150.00,
		Currency: "usd",
	}, map[string]string{"Idempotency-Key": "abc-123"})
	require.Equal(t, http.StatusOK, rec.Code)

	var intent models.PaymentIntent
	require.NoError(t, json.Unmarshal(resp.Data, &intent))
	assert.Equal(t, models.IntentRequiresConfirmation, intent.Status)

	// Capture before confirm is a conflict.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/intents/"+intent.ID+"/capture", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Confirm
	rec, resp = doJSON(t, router, http.MethodPost, "/api/v1/intents/"+intent.ID+"/confirm", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &intent))
	assert.Equal(t, models.IntentAuthorized, intent.Status)

	// Capture
	rec, resp = doJSON(t, router, http.MethodPost, "/api/v1/intents/"+intent.ID+"/capture", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var charge models.Charge
	require.NoError(t, json.Unmarshal(resp.Data, &charge))
	assert.Equal(t, models.ChargeCaptured, charge.Status)

	// Refund
	rec, resp = doJSON(t, router, http.MethodPost, "/api/v1/charges/"+charge.ID+"/refund", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &charge))
	assert.Equal(t, models.ChargeRefunded, charge.Status)
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := setupRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Payment Service", body["service"])

	req = httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

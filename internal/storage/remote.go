package storage

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"payment-gateway/internal/config"
	"payment-gateway/internal/logger"
	"payment-gateway/internal/models"
)

// RemoteStore talks to the database service over HTTP. Transient failures
// (connection errors, 5xx) are retried with bounded backoff before an
// ErrUnavailable is surfaced; a 404 maps to ErrNotFound.
type RemoteStore struct {
	client *resty.Client
	log    *logger.Logger
}

func NewRemoteStore(cfg config.DatabaseServiceConfig, log *logger.Logger) *RemoteStore {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryLimit).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryWait * 10).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError
		})

	log.LogUpstream("INIT", cfg.BaseURL, fmt.Sprintf("Database service client ready (retries=%d)", cfg.RetryLimit))

	return &RemoteStore{client: client, log: log}
}

func (s *RemoteStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return s.save(ctx, "/payments", payment)
}

func (s *RemoteStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.get(ctx, "/payments/"+id, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *RemoteStore) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return s.update(ctx, "/payments/"+payment.PaymentID, payment)
}

func (s *RemoteStore) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.get(ctx, "/payments/by-order/"+orderID, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *RemoteStore) SaveIntent(ctx context.Context, intent *models.PaymentIntent) error {
	return s.save(ctx, "/intents", intent)
}

func (s *RemoteStore) GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := s.get(ctx, "/intents/"+id, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *RemoteStore) UpdateIntent(ctx context.Context, intent *models.PaymentIntent) error {
	return s.update(ctx, "/intents/"+intent.ID, intent)
}

func (s *RemoteStore) SaveCharge(ctx context.Context, charge *models.Charge) error {
	return s.save(ctx, "/charges", charge)
}

func (s *RemoteStore) GetCharge(ctx context.Context, id string) (*models.Charge, error) {
	var charge models.Charge
	if err := s.get(ctx, "/charges/"+id, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

func (s *RemoteStore) UpdateCharge(ctx context.Context, charge *models.Charge) error {
	return s.update(ctx, "/charges/"+charge.ID, charge)
}

func (s *RemoteStore) HealthCheck(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: health check returned %s", ErrUnavailable, resp.Status())
	}
	return nil
}

func (s *RemoteStore) save(ctx context.Context, path string, body interface{}) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		s.log.Error("UPSTREAM", fmt.Sprintf("POST %s failed: %v", path, err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		s.log.Error("UPSTREAM", fmt.Sprintf("POST %s returned %s", path, resp.Status()))
		return fmt.Errorf("%w: POST %s returned %s", ErrUnavailable, path, resp.Status())
	}
	s.log.LogUpstream("SAVE", path, "Record persisted")
	return nil
}

func (s *RemoteStore) get(ctx context.Context, path string, out interface{}) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(out).
		Get(path)
	if err != nil {
		s.log.Error("UPSTREAM", fmt.Sprintf("GET %s failed: %v", path, err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.IsError() {
		s.log.Error("UPSTREAM", fmt.Sprintf("GET %s returned %s", path, resp.Status()))
		return fmt.Errorf("%w: GET %s returned %s", ErrUnavailable, path, resp.Status())
	}
	return nil
}

func (s *RemoteStore) update(ctx context.Context, path string, body interface{}) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Put(path)
	if err != nil {
		s.log.Error("UPSTREAM", fmt.Sprintf("PUT %s failed: %v", path, err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.IsError() {
		s.log.Error("UPSTREAM", fmt.Sprintf("PUT %s returned %s", path, resp.Status()))
		return fmt.Errorf("%w: PUT %s returned %s", ErrUnavailable, path, resp.Status())
	}
	s.log.LogUpstream("UPDATE", path, "Record updated")
	return nil
}

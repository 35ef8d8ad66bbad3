// Package bankrail adapts the ACH/RTP transfer provider (standard,
// same-day, instant and wallet-funding rails) to the uniform contract.
package bankrail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/config"
	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/infra/provider"
	"github.com/kordbank/ledger-go/internal/infra/resilience"
	"github.com/kordbank/ledger-go/internal/port"
)

var tracer = otel.Tracer("bankrail")

// Adapter implements port.BankRail.
type Adapter struct {
	client        *provider.Client
	webhookSecret string
}

func New(httpClient *http.Client, cfg config.ProviderConfig, rcfg resilience.Config, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Adapter {
	return &Adapter{
		client: &provider.Client{
			HTTPClient: httpClient,
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Provider:   domain.ProviderBankRail,
			Breaker:    cb,
			Cfg:        rcfg,
			Logger:     logger,
		},
		webhookSecret: cfg.WebhookSecret,
	}
}

type transferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Fee    struct {
		Amount int64 `json:"amount"`
	} `json:"fee"`
}

// normalizeStatus maps the rail's vocabulary into the shared states.
func normalizeStatus(s string) port.ProviderStatus {
	switch s {
	case "created":
		return port.StatusCreated
	case "pending", "processing", "in_flight":
		return port.StatusPending
	case "processed", "settled", "completed":
		return port.StatusCompleted
	default:
		return port.StatusFailed
	}
}

// CreateTransfer submits a transfer on the requested rail between two
// payment methods. The rail reports any platform fee on the response.
func (a *Adapter) CreateTransfer(ctx context.Context, sourcePaymentMethodID, destPaymentMethodID string, amountMinor int64, rail domain.Rail, memo string) (*port.RailTransfer, error) {
	ctx, span := tracer.Start(ctx, "BankRail.CreateTransfer")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("amount_minor", amountMinor),
		attribute.String("rail", string(rail)),
	)

	var resp transferResponse
	err := a.client.Do(ctx, http.MethodPost, "/transfers", map[string]any{
		"source":      sourcePaymentMethodID,
		"destination": destPaymentMethodID,
		"amount":      amountMinor,
		"rail":        string(rail),
		"memo":        memo,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &port.RailTransfer{
		ID:       resp.ID,
		Status:   normalizeStatus(resp.Status),
		FeeMinor: resp.Fee.Amount,
	}, nil
}

// GetTransfer fetches the transfer's current state.
func (a *Adapter) GetTransfer(ctx context.Context, transferID string) (port.ProviderStatus, error) {
	ctx, span := tracer.Start(ctx, "BankRail.GetTransfer")
	defer span.End()

	var resp transferResponse
	err := a.client.Do(ctx, http.MethodGet, fmt.Sprintf("/transfers/%s", transferID), nil, &resp)
	if err != nil {
		return "", err
	}
	return normalizeStatus(resp.Status), nil
}

// CancelTransfer asks the rail to revoke a transfer. The cancellable
// window closes once the rail batches the transfer; callers treat
// upstream errors here as best-effort.
func (a *Adapter) CancelTransfer(ctx context.Context, transferID string) error {
	ctx, span := tracer.Start(ctx, "BankRail.CancelTransfer")
	defer span.End()

	return a.client.Do(ctx, http.MethodPost, fmt.Sprintf("/transfers/%s/cancel", transferID), nil, nil)
}

// VerifySignature checks the rail's webhook header: a hex HMAC-SHA256
// of the raw body.
func (a *Adapter) VerifySignature(body []byte, header string) bool {
	return provider.SecureEqual(header, provider.HMACHex(a.webhookSecret, body))
}

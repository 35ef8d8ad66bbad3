// Package corebank adapts the core-banking provider (customer-scoped
// accounts and book transfers) to the uniform contract.
package corebank

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

var tracer = otel.Tracer("corebank")

// Adapter implements port.CoreBanking.
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
			Provider:   domain.ProviderCoreBanking,
			Breaker:    cb,
			Cfg:        rcfg,
			Logger:     logger,
		},
		webhookSecret: cfg.WebhookSecret,
	}
}

type coreTransferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func normalizeStatus(s string) port.ProviderStatus {
	switch s {
	case "created", "queued":
		return port.StatusCreated
	case "pending", "clearing":
		return port.StatusPending
	case "sent", "completed":
		return port.StatusCompleted
	default:
		return port.StatusFailed
	}
}

// CreateTransfer submits a transfer between two provider-side accounts
// on behalf of the source owner's provider customer.
func (a *Adapter) CreateTransfer(ctx context.Context, customerID, sourceAccountID, destAccountID string, amountMinor int64, memo string) (*port.CoreTransfer, error) {
	ctx, span := tracer.Start(ctx, "CoreBanking.CreateTransfer")
	defer span.End()
	span.SetAttributes(attribute.Int64("amount_minor", amountMinor))

	var resp coreTransferResponse
	err := a.client.Do(ctx, http.MethodPost, fmt.Sprintf("/customers/%s/transfers", customerID), map[string]any{
		"source_account_id": sourceAccountID,
		"dest_account_id":   destAccountID,
		"amount":            amountMinor,
		"description":       memo,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &port.CoreTransfer{ID: resp.ID, Status: normalizeStatus(resp.Status)}, nil
}

// GetTransfer fetches the transfer's current state.
func (a *Adapter) GetTransfer(ctx context.Context, transferID string) (port.ProviderStatus, error) {
	ctx, span := tracer.Start(ctx, "CoreBanking.GetTransfer")
	defer span.End()

	var resp coreTransferResponse
	err := a.client.Do(ctx, http.MethodGet, fmt.Sprintf("/transfers/%s", transferID), nil, &resp)
	if err != nil {
		return "", err
	}
	return normalizeStatus(resp.Status), nil
}

// CancelTransfer revokes a queued transfer; best effort for callers.
func (a *Adapter) CancelTransfer(ctx context.Context, transferID string) error {
	ctx, span := tracer.Start(ctx, "CoreBanking.CancelTransfer")
	defer span.End()

	return a.client.Do(ctx, http.MethodDelete, fmt.Sprintf("/transfers/%s", transferID), nil, nil)
}

// GetAccountBalance fetches the provider's live balance for an
// external account id, in minor units. Display overlay only.
func (a *Adapter) GetAccountBalance(ctx context.Context, externalAccountID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "CoreBanking.GetAccountBalance")
	defer span.End()

	var resp struct {
		Available int64 `json:"available"`
	}
	err := a.client.Do(ctx, http.MethodGet, fmt.Sprintf("/accounts/%s/balance", externalAccountID), nil, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Available, nil
}

// VerifySignature checks the provider's webhook header: a base64
// HMAC-SHA256 of the raw body.
func (a *Adapter) VerifySignature(body []byte, header string) bool {
	return provider.SecureEqual(header, provider.HMACBase64(a.webhookSecret, body))
}

// Package cardproc adapts the external card-processing network
// (payment-intent style charges) to the uniform provider contract.
package cardproc

import (
	"context"
	"fmt"
	"net/http"
	"strings"

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

var tracer = otel.Tracer("cardproc")

// Adapter implements port.CardProcessor.
type Adapter struct {
	client        *provider.Client
	webhookSecret string
}

// New builds the adapter with its own circuit breaker.
func New(httpClient *http.Client, cfg config.ProviderConfig, rcfg resilience.Config, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Adapter {
	return &Adapter{
		client: &provider.Client{
			HTTPClient: httpClient,
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Provider:   domain.ProviderCardProcessor,
			Breaker:    cb,
			Cfg:        rcfg,
			Logger:     logger,
		},
		webhookSecret: cfg.WebhookSecret,
	}
}

type chargeResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// normalizeStatus maps the processor's charge vocabulary into the four
// shared states.
func normalizeStatus(s string) port.ProviderStatus {
	switch s {
	case "requires_confirmation", "requires_payment_method", "requires_action":
		return port.StatusCreated
	case "processing":
		return port.StatusPending
	case "succeeded":
		return port.StatusCompleted
	default:
		return port.StatusFailed
	}
}

// CreateCharge opens an unconfirmed charge for the given amount.
func (a *Adapter) CreateCharge(ctx context.Context, amountMinor int64, currency, memo string) (*port.Charge, error) {
	ctx, span := tracer.Start(ctx, "CardProcessor.CreateCharge")
	defer span.End()
	span.SetAttributes(attribute.Int64("amount_minor", amountMinor))

	var resp chargeResponse
	err := a.client.Do(ctx, http.MethodPost, "/v1/charges", map[string]any{
		"amount":      amountMinor,
		"currency":    strings.ToLower(currency),
		"description": memo,
		"confirm":     false,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &port.Charge{
		ID:           resp.ID,
		ClientSecret: resp.ClientSecret,
		Status:       normalizeStatus(resp.Status),
	}, nil
}

// ConfirmCharge confirms the charge and returns its resulting state.
func (a *Adapter) ConfirmCharge(ctx context.Context, chargeID string) (port.ProviderStatus, error) {
	ctx, span := tracer.Start(ctx, "CardProcessor.ConfirmCharge")
	defer span.End()

	var resp chargeResponse
	err := a.client.Do(ctx, http.MethodPost, fmt.Sprintf("/v1/charges/%s/confirm", chargeID), nil, &resp)
	if err != nil {
		return "", err
	}
	return normalizeStatus(resp.Status), nil
}

// GetCharge fetches the charge's current state.
func (a *Adapter) GetCharge(ctx context.Context, chargeID string) (port.ProviderStatus, error) {
	ctx, span := tracer.Start(ctx, "CardProcessor.GetCharge")
	defer span.End()

	var resp chargeResponse
	err := a.client.Do(ctx, http.MethodGet, fmt.Sprintf("/v1/charges/%s", chargeID), nil, &resp)
	if err != nil {
		return "", err
	}
	return normalizeStatus(resp.Status), nil
}

// CancelCharge revokes an unconfirmed charge. Best effort: callers in
// the cancel path discard upstream errors.
func (a *Adapter) CancelCharge(ctx context.Context, chargeID string) error {
	ctx, span := tracer.Start(ctx, "CardProcessor.CancelCharge")
	defer span.End()

	return a.client.Do(ctx, http.MethodPost, fmt.Sprintf("/v1/charges/%s/cancel", chargeID), nil, nil)
}

// VerifySignature checks the processor's webhook header, which has the
// form "t=<unix>,v1=<hex hmac>" where the MAC covers "<t>.<body>".
func (a *Adapter) VerifySignature(body []byte, header string) bool {
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			sig = kv[1]
		}
	}
	if ts == "" || sig == "" {
		return false
	}
	signed := append([]byte(ts+"."), body...)
	return provider.SecureEqual(sig, provider.HMACHex(a.webhookSecret, signed))
}

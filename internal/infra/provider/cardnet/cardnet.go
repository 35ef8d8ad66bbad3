// Package cardnet adapts the card-network simulator: authorization
// holds, clearing, funding orders and reversals.
package cardnet

import (
	"context"
	"errors"
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

var tracer = otel.Tracer("cardnet")

// Adapter implements port.CardNetwork.
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
			Provider:   domain.ProviderCardNetwork,
			Breaker:    cb,
			Cfg:        rcfg,
			Logger:     logger,
		},
		webhookSecret: cfg.WebhookSecret,
	}
}

// NormalizeMerchantID derives the simulator's merchant identifier from
// a display name: lowercased, stripped to [a-z0-9], at most 40 bytes.
func NormalizeMerchantID(merchantName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(merchantName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) > 40 {
		id = id[:40]
	}
	return id
}

type networkResponse struct {
	Token string `json:"token"`
	State string `json:"state"`
}

func normalizeState(s string) port.ProviderStatus {
	switch s {
	case "QUEUED":
		return port.StatusCreated
	case "PENDING", "AUTHORIZED":
		return port.StatusPending
	case "CLEARED", "COMPLETION", "COMPLETED":
		return port.StatusCompleted
	default:
		return port.StatusFailed
	}
}

// EnsureUser creates the network user for ownerID, treating "already
// exists" as success by fetching the existing user token.
func (a *Adapter) EnsureUser(ctx context.Context, ownerID string) (string, error) {
	ctx, span := tracer.Start(ctx, "CardNetwork.EnsureUser")
	defer span.End()

	var resp networkResponse
	err := a.client.Do(ctx, http.MethodPost, "/users", map[string]any{
		"external_id": ownerID,
	}, &resp)
	if err == nil {
		return resp.Token, nil
	}

	var up *domain.ErrUpstream
	if errors.As(err, &up) && up.StatusCode == http.StatusConflict {
		if getErr := a.client.Do(ctx, http.MethodGet, fmt.Sprintf("/users/%s", ownerID), nil, &resp); getErr != nil {
			return "", getErr
		}
		return resp.Token, nil
	}
	return "", err
}

// Authorize places a hold on the card; no funds move until clearing.
func (a *Adapter) Authorize(ctx context.Context, cardToken string, amountMinor int64, merchantName, memo string) (*port.NetworkTransaction, error) {
	ctx, span := tracer.Start(ctx, "CardNetwork.Authorize")
	defer span.End()
	merchantID := NormalizeMerchantID(merchantName)
	span.SetAttributes(
		attribute.Int64("amount_minor", amountMinor),
		attribute.String("merchant_id", merchantID),
	)

	var resp networkResponse
	err := a.client.Do(ctx, http.MethodPost, "/simulate/authorization", map[string]any{
		"card_token": cardToken,
		"amount":     amountMinor,
		"mid":        merchantID,
		"memo":       memo,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &port.NetworkTransaction{Token: resp.Token, Status: normalizeState(resp.State)}, nil
}

// Clear settles a previous authorization.
func (a *Adapter) Clear(ctx context.Context, transactionToken string, amountMinor int64, merchantName string) (port.ProviderStatus, error) {
	ctx, span := tracer.Start(ctx, "CardNetwork.Clear")
	defer span.End()

	var resp networkResponse
	err := a.client.Do(ctx, http.MethodPost, "/simulate/clearing", map[string]any{
		"original_transaction_token": transactionToken,
		"amount":                     amountMinor,
		"mid":                        NormalizeMerchantID(merchantName),
	}, &resp)
	if err != nil {
		return "", err
	}
	return normalizeState(resp.State), nil
}

// Fund issues a funding order crediting the user's network account.
func (a *Adapter) Fund(ctx context.Context, userToken string, amountMinor int64) (*port.NetworkTransaction, error) {
	ctx, span := tracer.Start(ctx, "CardNetwork.Fund")
	defer span.End()
	span.SetAttributes(attribute.Int64("amount_minor", amountMinor))

	var resp networkResponse
	err := a.client.Do(ctx, http.MethodPost, "/funding", map[string]any{
		"user_token": userToken,
		"amount":     amountMinor,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &port.NetworkTransaction{Token: resp.Token, Status: normalizeState(resp.State)}, nil
}

// Reverse voids a previous authorization hold.
func (a *Adapter) Reverse(ctx context.Context, transactionToken string) error {
	ctx, span := tracer.Start(ctx, "CardNetwork.Reverse")
	defer span.End()

	return a.client.Do(ctx, http.MethodPost, "/simulate/reversal", map[string]any{
		"original_transaction_token": transactionToken,
	}, nil)
}

// GetAccountBalance fetches the live network balance for an account
// token, in minor units. Display overlay only.
func (a *Adapter) GetAccountBalance(ctx context.Context, accountToken string) (int64, error) {
	ctx, span := tracer.Start(ctx, "CardNetwork.GetAccountBalance")
	defer span.End()

	var resp struct {
		AvailableBalance int64 `json:"available_balance"`
	}
	err := a.client.Do(ctx, http.MethodGet, fmt.Sprintf("/balances/%s", accountToken), nil, &resp)
	if err != nil {
		return 0, err
	}
	return resp.AvailableBalance, nil
}

// VerifySignature checks the simulator's shared-token webhook header.
func (a *Adapter) VerifySignature(_ []byte, header string) bool {
	return a.webhookSecret != "" && provider.SecureEqual(header, a.webhookSecret)
}

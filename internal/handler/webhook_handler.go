package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/infra/observability"
	"github.com/kordbank/ledger-go/internal/port"
	"github.com/kordbank/ledger-go/internal/service"
)

// ============================================================
// Webhook ingestor — one endpoint per settlement provider
// ============================================================

// Verifiers holds the adapter-side signature checks the webhook
// endpoints gate on. Verification is the sole authenticity gate:
// a request failing it is rejected before any ledger effect.
type Verifiers struct {
	CardProcessor port.CardProcessor
	BankRail      port.BankRail
	CoreBanking   port.CoreBanking
	CardNetwork   port.CardNetwork
}

type signatureVerifier interface {
	VerifySignature(body []byte, header string) bool
}

// webhookEvent is a parsed provider notification: the provider's
// correlation id plus the normalized outcome.
type webhookEvent struct {
	correlationID string
	outcome       domain.WebhookOutcome
}

func providerWebhookHandler(
	verifier signatureVerifier,
	headerName string,
	parse func([]byte) (webhookEvent, error),
	apply func(context.Context, string, domain.WebhookOutcome) (bool, error),
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /webhooks")
		defer span.End()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation", "unreadable body")
			return
		}

		if !verifier.VerifySignature(body, r.Header.Get(headerName)) {
			metrics.IncrWebhook("rejected")
			logger.Warn("webhook signature rejected",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid signature")
			return
		}

		event, err := parse(body)
		if err != nil || event.correlationID == "" {
			writeError(w, http.StatusBadRequest, "validation", "malformed webhook payload")
			return
		}

		applied, err := apply(ctx, event.correlationID, event.outcome)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
	}
}

func cardProcessorWebhookHandler(svc *service.LedgerService, v *Verifiers, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	parse := func(body []byte) (webhookEvent, error) {
		var payload struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return webhookEvent{}, err
		}
		outcome := domain.OutcomeFailure
		if payload.Status == "succeeded" {
			outcome = domain.OutcomeSuccess
		}
		return webhookEvent{correlationID: payload.ID, outcome: outcome}, nil
	}
	return providerWebhookHandler(v.CardProcessor, "Cardproc-Signature", parse, svc.HandleCardProcessorWebhook, metrics, logger)
}

func bankRailWebhookHandler(svc *service.LedgerService, v *Verifiers, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	parse := func(body []byte) (webhookEvent, error) {
		var payload struct {
			TransferID string `json:"transfer_id"`
			Status     string `json:"status"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return webhookEvent{}, err
		}
		outcome := domain.OutcomeFailure
		switch payload.Status {
		case "processed", "settled", "completed":
			outcome = domain.OutcomeSuccess
		}
		return webhookEvent{correlationID: payload.TransferID, outcome: outcome}, nil
	}
	return providerWebhookHandler(v.BankRail, "X-Rail-Signature", parse, svc.HandleBankRailWebhook, metrics, logger)
}

func coreBankingWebhookHandler(svc *service.LedgerService, v *Verifiers, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	parse := func(body []byte) (webhookEvent, error) {
		var payload struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return webhookEvent{}, err
		}
		outcome := domain.OutcomeFailure
		switch payload.Status {
		case "sent", "completed":
			outcome = domain.OutcomeSuccess
		}
		return webhookEvent{correlationID: payload.ID, outcome: outcome}, nil
	}
	return providerWebhookHandler(v.CoreBanking, "X-Corebank-Signature", parse, svc.HandleCoreBankingWebhook, metrics, logger)
}

func cardNetworkWebhookHandler(svc *service.LedgerService, v *Verifiers, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	parse := func(body []byte) (webhookEvent, error) {
		var payload struct {
			Token string `json:"token"`
			State string `json:"state"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return webhookEvent{}, err
		}
		outcome := domain.OutcomeFailure
		switch payload.State {
		case "CLEARED", "COMPLETION", "COMPLETED":
			outcome = domain.OutcomeSuccess
		}
		return webhookEvent{correlationID: payload.Token, outcome: outcome}, nil
	}
	return providerWebhookHandler(v.CardNetwork, "X-Cardnet-Token", parse, svc.HandleCardNetworkWebhook, metrics, logger)
}

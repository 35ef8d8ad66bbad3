package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
)

// ============================================================
// Webhook ingestor — asynchronous settlement notifications
// ============================================================

// HandleCardProcessorWebhook settles a pending charge-backed transfer.
func (s *LedgerService) HandleCardProcessorWebhook(ctx context.Context, chargeID string, outcome domain.WebhookOutcome) (bool, error) {
	return s.settleFromWebhook(ctx, domain.ProviderCardProcessor, chargeID, outcome)
}

// HandleBankRailWebhook settles a pending bank-rail transfer. This is
// the authoritative reconciler for in-flight rails; a transfer already
// settled optimistically by ConfirmTransfer is a no-op here.
func (s *LedgerService) HandleBankRailWebhook(ctx context.Context, transferID string, outcome domain.WebhookOutcome) (bool, error) {
	return s.settleFromWebhook(ctx, domain.ProviderBankRail, transferID, outcome)
}

// HandleCoreBankingWebhook settles a pending core-banking transfer.
func (s *LedgerService) HandleCoreBankingWebhook(ctx context.Context, transferID string, outcome domain.WebhookOutcome) (bool, error) {
	return s.settleFromWebhook(ctx, domain.ProviderCoreBanking, transferID, outcome)
}

// HandleCardNetworkWebhook settles a pending card authorization that
// cleared (or failed) network-side.
func (s *LedgerService) HandleCardNetworkWebhook(ctx context.Context, transactionToken string, outcome domain.WebhookOutcome) (bool, error) {
	return s.settleFromWebhook(ctx, domain.ProviderCardNetwork, transactionToken, outcome)
}

// settleFromWebhook applies one provider notification. Delivery is
// at-least-once and may race the confirm path; only a still-pending
// row is acted on, so redelivery and lost races are no-ops. Returns
// whether the notification changed ledger state.
func (s *LedgerService) settleFromWebhook(ctx context.Context, provider domain.Provider, correlationID string, outcome domain.WebhookOutcome) (bool, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.settleFromWebhook")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("correlation_id", correlationID),
		attribute.String("outcome", string(outcome)),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("webhook", time.Since(start)) }()

	tx, err := s.store.FindPendingByCorrelation(ctx, provider, correlationID)
	if err != nil {
		return false, err
	}
	if tx == nil {
		// Already settled, or a foreign event.
		s.metrics.IncrWebhook("noop")
		s.logger.Debug("webhook without pending transaction",
			zap.String("provider", string(provider)),
			zap.String("correlation_id", correlationID),
		)
		return false, nil
	}

	if outcome != domain.OutcomeSuccess {
		if err := s.store.FinishTransaction(ctx, tx.ID, domain.StatusFailed); err != nil {
			return false, s.webhookRace(err)
		}
		s.metrics.IncrSettlement("failed")
		s.metrics.IncrWebhook("applied")
		s.logger.Info("webhook failed transaction",
			zap.String("transaction_id", tx.ID),
			zap.String("provider", string(provider)),
		)
		return true, nil
	}

	var deltas []domain.BalanceDelta
	switch {
	case tx.Provider == domain.ProviderCardNetwork:
		// A cleared authorization debits the card's account.
		deltas = []domain.BalanceDelta{{AccountID: tx.DestAccountID, AmountMinor: -tx.AmountMinor}}
	case tx.DestAccountID != "":
		deltas = transferDeltas(tx)
	}

	if err := s.store.SettleTransaction(ctx, tx.ID, deltas); err != nil {
		return false, s.webhookRace(err)
	}
	s.metrics.IncrSettlement("completed")
	s.metrics.IncrWebhook("applied")

	s.logger.Info("webhook settled transaction",
		zap.String("transaction_id", tx.ID),
		zap.String("provider", string(provider)),
		zap.Int64("amount_minor", tx.AmountMinor),
	)
	return true, nil
}

// webhookRace downgrades a lost settle race to a no-op: the confirm
// path flipped the row between our lookup and the write.
func (s *LedgerService) webhookRace(err error) error {
	var invalid *domain.ErrInvalidState
	if errors.As(err, &invalid) {
		s.metrics.IncrWebhook("noop")
		return nil
	}
	return err
}

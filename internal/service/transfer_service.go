package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/port"
)

// ============================================================
// Transfer orchestrator — initiate, confirm, cancel
// ============================================================

// InitiateTransfer validates the intent, dispatches to the provider
// and persists the pending transaction. No balance moves here.
func (s *LedgerService) InitiateTransfer(ctx context.Context, actorID string, req *domain.TransferRequest) (*domain.TransferResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.InitiateTransfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", string(req.Provider)),
		attribute.Int64("amount_minor", req.AmountMinor),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("initiate_transfer", time.Since(start)) }()

	if err := validateTransferRequest(req); err != nil {
		return nil, err
	}

	dest, err := s.store.GetAccount(ctx, req.DestAccountID)
	if err != nil {
		return nil, err
	}

	// Single-sided card funding: no source account, the processor
	// charge is the money's origin.
	if req.Provider == domain.ProviderCardProcessor && req.SourceAccountID == "" {
		if dest.OwnerID != actorID {
			return nil, &domain.ErrForbidden{Action: "fund another user's account"}
		}
		return s.initiateCardFunding(ctx, dest, req)
	}

	source, err := s.store.GetAccount(ctx, req.SourceAccountID)
	if err != nil {
		return nil, err
	}
	if source.OwnerID != actorID {
		return nil, &domain.ErrForbidden{Action: "transfer from another user's account"}
	}
	if source.ID == dest.ID {
		return nil, &domain.ErrValidation{Field: "dest_account_id", Message: "source and destination must differ"}
	}
	// Insufficient funds is checked against the stored ledger balance,
	// never the live overlay.
	if source.BalanceMinor < req.AmountMinor {
		return nil, &domain.ErrInsufficientFunds{
			AvailableMinor: source.BalanceMinor,
			RequiredMinor:  req.AmountMinor,
		}
	}

	tx := &domain.Transaction{
		SourceAccountID: source.ID,
		DestAccountID:   dest.ID,
		AmountMinor:     req.AmountMinor,
		Type:            domain.TypeDebit,
		Status:          domain.StatusPending,
		Memo:            req.Memo,
		Provider:        req.Provider,
	}
	result := &domain.TransferResult{Transaction: tx}

	switch req.Provider {
	case domain.ProviderInternal:
		if dest.OwnerID != actorID {
			return nil, &domain.ErrForbidden{Action: "internal transfer to another user's account"}
		}

	case domain.ProviderBankRail:
		if source.BankRailPaymentMethodID == "" {
			return nil, &domain.ErrValidation{Field: "source_account_id", Message: "account has no bank rail payment method"}
		}
		if dest.BankRailPaymentMethodID == "" {
			return nil, &domain.ErrValidation{Field: "dest_account_id", Message: "account has no bank rail payment method"}
		}
		transfer, err := s.bankRail.CreateTransfer(ctx, source.BankRailPaymentMethodID, dest.BankRailPaymentMethodID, req.AmountMinor, req.Rail, req.Memo)
		if err != nil {
			return nil, s.providerError(domain.ProviderBankRail, err)
		}
		tx.SetCorrelationID(transfer.ID)
		tx.FeeMinor = transfer.FeeMinor
		result.FeeMinor = transfer.FeeMinor

	case domain.ProviderCoreBanking:
		if source.CoreBankingAccountID == "" || dest.CoreBankingAccountID == "" {
			return nil, &domain.ErrValidation{Field: "provider", Message: "both accounts need a core banking account id"}
		}
		if source.CoreBankingCustomerID == "" {
			return nil, &domain.ErrValidation{Field: "source_account_id", Message: "owner has no core banking customer id"}
		}
		transfer, err := s.coreBank.CreateTransfer(ctx, source.CoreBankingCustomerID, source.CoreBankingAccountID, dest.CoreBankingAccountID, req.AmountMinor, req.Memo)
		if err != nil {
			return nil, s.providerError(domain.ProviderCoreBanking, err)
		}
		tx.SetCorrelationID(transfer.ID)

	case domain.ProviderCardProcessor:
		charge, err := s.cardProc.CreateCharge(ctx, req.AmountMinor, dest.Currency, req.Memo)
		if err != nil {
			return nil, s.providerError(domain.ProviderCardProcessor, err)
		}
		tx.SetCorrelationID(charge.ID)
		result.ClientSecret = charge.ClientSecret
	}

	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		s.logger.Error("failed to persist transfer",
			zap.String("provider", string(req.Provider)), zap.Error(err))
		return nil, err
	}
	result.Transaction = created
	result.CorrelationID = created.CorrelationID()

	s.logger.Info("transfer initiated",
		zap.String("transaction_id", created.ID),
		zap.String("provider", string(created.Provider)),
		zap.Int64("amount_minor", created.AmountMinor),
	)
	return result, nil
}

func (s *LedgerService) initiateCardFunding(ctx context.Context, dest *domain.Account, req *domain.TransferRequest) (*domain.TransferResult, error) {
	charge, err := s.cardProc.CreateCharge(ctx, req.AmountMinor, dest.Currency, req.Memo)
	if err != nil {
		return nil, s.providerError(domain.ProviderCardProcessor, err)
	}

	tx := &domain.Transaction{
		DestAccountID: dest.ID,
		AmountMinor:   req.AmountMinor,
		Type:          domain.TypeCredit,
		Status:        domain.StatusPending,
		Memo:          req.Memo,
		Provider:      domain.ProviderCardProcessor,
		ChargeID:      charge.ID,
	}
	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("card funding initiated",
		zap.String("transaction_id", created.ID),
		zap.String("charge_id", charge.ID),
	)
	return &domain.TransferResult{
		Transaction:   created,
		CorrelationID: charge.ID,
		ClientSecret:  charge.ClientSecret,
	}, nil
}

// ConfirmTransfer drives a pending transaction to a terminal state and
// applies the balance movement in one store transaction.
func (s *LedgerService) ConfirmTransfer(ctx context.Context, actorID, txID string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ConfirmTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("confirm_transfer", time.Since(start)) }()

	tx, err := s.ownedTransaction(ctx, actorID, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.StatusPending {
		return nil, &domain.ErrInvalidState{Resource: "transaction", ID: tx.ID, Status: string(tx.Status)}
	}
	if tx.DestAccountID == "" {
		return nil, &domain.ErrValidation{Field: "transaction", Message: "transaction has no destination account"}
	}

	switch tx.Provider {
	case domain.ProviderInternal, domain.ProviderCoreBanking:
		// Ledger-authoritative paths settle immediately.

	case domain.ProviderBankRail:
		status, err := s.bankRail.GetTransfer(ctx, tx.BankTransferID)
		if err != nil {
			return nil, s.providerError(domain.ProviderBankRail, err)
		}
		if status == port.StatusFailed {
			return nil, s.failTransaction(ctx, tx, string(status))
		}
		// In-flight rails settle optimistically; the webhook is the
		// authoritative reconciler and only acts on pending rows, so
		// a settled row stays settled.

	case domain.ProviderCardProcessor:
		status, err := s.cardProc.ConfirmCharge(ctx, tx.ChargeID)
		if err != nil {
			return nil, s.providerError(domain.ProviderCardProcessor, err)
		}
		if status != port.StatusCompleted {
			return nil, s.failTransaction(ctx, tx, string(status))
		}

	default:
		return nil, &domain.ErrValidation{Field: "provider", Message: "card network transactions settle through the card endpoints"}
	}

	if err := s.store.SettleTransaction(ctx, tx.ID, transferDeltas(tx)); err != nil {
		return nil, err
	}
	s.metrics.IncrSettlement("completed")

	tx.Status = domain.StatusCompleted
	s.logger.Info("transfer completed",
		zap.String("transaction_id", tx.ID),
		zap.String("provider", string(tx.Provider)),
		zap.Int64("amount_minor", tx.AmountMinor),
	)
	return tx, nil
}

// CancelTransfer revokes a pending transfer. The provider call is best
// effort: the transfer may already be past its cancellable window, so
// upstream rejections are logged and discarded. The local cancel is
// unconditional; balances were never touched for a pending row.
func (s *LedgerService) CancelTransfer(ctx context.Context, actorID, txID string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CancelTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("cancel_transfer", time.Since(start)) }()

	tx, err := s.ownedTransaction(ctx, actorID, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.StatusPending {
		return nil, &domain.ErrInvalidState{Resource: "transaction", ID: tx.ID, Status: string(tx.Status)}
	}

	var revokeErr error
	switch tx.Provider {
	case domain.ProviderBankRail:
		revokeErr = s.bankRail.CancelTransfer(ctx, tx.BankTransferID)
	case domain.ProviderCardProcessor:
		revokeErr = s.cardProc.CancelCharge(ctx, tx.ChargeID)
	case domain.ProviderCoreBanking:
		revokeErr = s.coreBank.CancelTransfer(ctx, tx.CoreTransferID)
	}
	if revokeErr != nil {
		var up *domain.ErrUpstream
		if !errors.As(revokeErr, &up) {
			return nil, revokeErr
		}
		s.logger.Warn("provider revoke rejected, cancelling locally",
			zap.String("transaction_id", tx.ID),
			zap.String("provider", string(tx.Provider)),
			zap.Int("upstream_status", up.StatusCode),
		)
	}

	if err := s.store.FinishTransaction(ctx, tx.ID, domain.StatusCancelled); err != nil {
		return nil, err
	}
	s.metrics.IncrSettlement("cancelled")

	tx.Status = domain.StatusCancelled
	s.logger.Info("transfer cancelled", zap.String("transaction_id", tx.ID))
	return tx, nil
}

// ============================================================
// Shared helpers
// ============================================================

func validateTransferRequest(req *domain.TransferRequest) error {
	if req.AmountMinor <= 0 {
		return &domain.ErrValidation{Field: "amount_minor", Message: "must be positive"}
	}
	if req.DestAccountID == "" {
		return &domain.ErrValidation{Field: "dest_account_id", Message: "required"}
	}
	if !req.Provider.Valid() || req.Provider == domain.ProviderCardNetwork {
		return &domain.ErrValidation{Field: "provider", Message: "unknown provider"}
	}
	if req.Provider == domain.ProviderBankRail {
		if req.Rail == "" {
			req.Rail = domain.RailStandard
		}
		if !req.Rail.Valid() {
			return &domain.ErrValidation{Field: "rail", Message: "unknown rail"}
		}
	}
	if req.SourceAccountID == "" && req.Provider != domain.ProviderCardProcessor {
		return &domain.ErrValidation{Field: "source_account_id", Message: "required"}
	}
	return nil
}

// ownedTransaction loads a transaction and enforces the ownership
// rule: the actor must own the source account if present, else the
// destination.
func (s *LedgerService) ownedTransaction(ctx context.Context, actorID, txID string) (*domain.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	owner, err := s.store.GetAccount(ctx, tx.OwnerAccountID())
	if err != nil {
		return nil, err
	}
	if owner.OwnerID != actorID {
		return nil, &domain.ErrForbidden{Action: "access another user's transaction"}
	}
	return tx, nil
}

// transferDeltas computes the balance movement a settled transfer
// applies: debit the source when present, credit the destination.
func transferDeltas(tx *domain.Transaction) []domain.BalanceDelta {
	deltas := make([]domain.BalanceDelta, 0, 2)
	if tx.SourceAccountID != "" {
		deltas = append(deltas, domain.BalanceDelta{AccountID: tx.SourceAccountID, AmountMinor: -tx.AmountMinor})
	}
	deltas = append(deltas, domain.BalanceDelta{AccountID: tx.DestAccountID, AmountMinor: tx.AmountMinor})
	return deltas
}

// failTransaction flips a pending row to failed and returns the
// payment-failed error carrying the provider's reported state.
func (s *LedgerService) failTransaction(ctx context.Context, tx *domain.Transaction, providerStatus string) error {
	if err := s.store.FinishTransaction(ctx, tx.ID, domain.StatusFailed); err != nil {
		return err
	}
	s.metrics.IncrSettlement("failed")
	s.logger.Warn("transfer failed at provider",
		zap.String("transaction_id", tx.ID),
		zap.String("provider", string(tx.Provider)),
		zap.String("provider_status", providerStatus),
	)
	return &domain.ErrPaymentFailed{
		Provider:      tx.Provider,
		CorrelationID: tx.CorrelationID(),
		Status:        providerStatus,
	}
}

// providerError counts an upstream failure before propagating it.
func (s *LedgerService) providerError(provider domain.Provider, err error) error {
	s.metrics.IncrProviderError(string(provider))
	return err
}

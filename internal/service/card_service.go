package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
)

// ============================================================
// Card-transaction simulator — auth, purchase, credit, post, void
// ============================================================

// CreateCardTransaction runs one simulated card flow against the
// network. Auth holds funds network-side with no ledger change;
// purchase and credit settle instantly in one store transaction.
func (s *LedgerService) CreateCardTransaction(ctx context.Context, actorID, cardID string, kind domain.CardTransactionKind, amountMinor int64, merchantName, memo string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.CreateCardTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("card.id", cardID),
		attribute.String("kind", string(kind)),
		attribute.Int64("amount_minor", amountMinor),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("card_transaction", time.Since(start)) }()

	if !kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be auth, purchase or credit"}
	}
	if amountMinor <= 0 {
		return nil, &domain.ErrValidation{Field: "amount_minor", Message: "must be positive"}
	}

	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetAccount(ctx, card.AccountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != actorID {
		return nil, &domain.ErrForbidden{Action: "use another user's card"}
	}
	if card.Status == domain.CardFrozen {
		return nil, &domain.ErrCardFrozen{CardID: card.ID}
	}
	if card.NetworkCardToken == "" {
		return nil, &domain.ErrValidation{Field: "card_id", Message: "card has no network token"}
	}

	tx := &domain.Transaction{
		DestAccountID: account.ID,
		AmountMinor:   amountMinor,
		Memo:          memo,
		Provider:      domain.ProviderCardNetwork,
		CardID:        card.ID,
		MerchantName:  merchantName,
	}

	switch kind {
	case domain.CardAuth:
		ntx, err := s.cardNet.Authorize(ctx, card.NetworkCardToken, amountMinor, merchantName, memo)
		if err != nil {
			return nil, s.providerError(domain.ProviderCardNetwork, err)
		}
		tx.Type = domain.TypeDebit
		tx.Status = domain.StatusPending
		tx.NetworkTransactionToken = ntx.Token
		return s.store.CreateTransaction(ctx, tx)

	case domain.CardPurchase:
		ntx, err := s.cardNet.Authorize(ctx, card.NetworkCardToken, amountMinor, merchantName, memo)
		if err != nil {
			return nil, s.providerError(domain.ProviderCardNetwork, err)
		}
		if _, err := s.cardNet.Clear(ctx, ntx.Token, amountMinor, merchantName); err != nil {
			return nil, s.providerError(domain.ProviderCardNetwork, err)
		}
		tx.Type = domain.TypeDebit
		tx.Status = domain.StatusCompleted
		tx.NetworkTransactionToken = ntx.Token
		created, err := s.store.CreateSettledTransaction(ctx, tx, []domain.BalanceDelta{
			{AccountID: account.ID, AmountMinor: -amountMinor},
		})
		if err != nil {
			return nil, err
		}
		s.metrics.IncrSettlement("completed")
		s.logger.Info("card purchase settled",
			zap.String("transaction_id", created.ID),
			zap.String("card_id", card.ID),
			zap.Int64("amount_minor", amountMinor),
		)
		return created, nil

	default: // domain.CardCredit
		userToken := account.CardNetworkUserToken
		if userToken == "" {
			userToken, err = s.cardNet.EnsureUser(ctx, account.OwnerID)
			if err != nil {
				return nil, s.providerError(domain.ProviderCardNetwork, err)
			}
		}
		ntx, err := s.cardNet.Fund(ctx, userToken, amountMinor)
		if err != nil {
			return nil, s.providerError(domain.ProviderCardNetwork, err)
		}
		tx.Type = domain.TypeCredit
		tx.Status = domain.StatusCompleted
		tx.NetworkTransactionToken = ntx.Token
		created, err := s.store.CreateSettledTransaction(ctx, tx, []domain.BalanceDelta{
			{AccountID: account.ID, AmountMinor: amountMinor},
		})
		if err != nil {
			return nil, err
		}
		s.metrics.IncrSettlement("completed")
		s.logger.Info("card credit settled",
			zap.String("transaction_id", created.ID),
			zap.String("card_id", card.ID),
			zap.Int64("amount_minor", amountMinor),
		)
		return created, nil
	}
}

// PostCardTransaction clears a pending authorization: the held funds
// settle and the account is debited, atomically with the status flip.
func (s *LedgerService) PostCardTransaction(ctx context.Context, actorID, txID string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.PostCardTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("post_card_transaction", time.Since(start)) }()

	tx, err := s.ownedCardTransaction(ctx, actorID, txID)
	if err != nil {
		return nil, err
	}

	if _, err := s.cardNet.Clear(ctx, tx.NetworkTransactionToken, tx.AmountMinor, tx.MerchantName); err != nil {
		return nil, s.providerError(domain.ProviderCardNetwork, err)
	}
	if err := s.store.SettleTransaction(ctx, tx.ID, []domain.BalanceDelta{
		{AccountID: tx.DestAccountID, AmountMinor: -tx.AmountMinor},
	}); err != nil {
		return nil, err
	}
	s.metrics.IncrSettlement("completed")

	tx.Status = domain.StatusCompleted
	s.logger.Info("card authorization posted",
		zap.String("transaction_id", tx.ID),
		zap.Int64("amount_minor", tx.AmountMinor),
	)
	return tx, nil
}

// VoidCardTransaction reverses a pending authorization. The hold never
// debited the account, so no balance change.
func (s *LedgerService) VoidCardTransaction(ctx context.Context, actorID, txID string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.VoidCardTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("void_card_transaction", time.Since(start)) }()

	tx, err := s.ownedCardTransaction(ctx, actorID, txID)
	if err != nil {
		return nil, err
	}

	if err := s.cardNet.Reverse(ctx, tx.NetworkTransactionToken); err != nil {
		return nil, s.providerError(domain.ProviderCardNetwork, err)
	}
	if err := s.store.FinishTransaction(ctx, tx.ID, domain.StatusCancelled); err != nil {
		return nil, err
	}
	s.metrics.IncrSettlement("cancelled")

	tx.Status = domain.StatusCancelled
	s.logger.Info("card authorization voided", zap.String("transaction_id", tx.ID))
	return tx, nil
}

// ListPendingAuthorizations returns the actor's open card holds.
func (s *LedgerService) ListPendingAuthorizations(ctx context.Context, actorID string) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListPendingAuthorizations")
	defer span.End()

	return s.store.ListPendingCardAuthorizations(ctx, actorID)
}

// FreezeCard blocks all new transactions on the card.
func (s *LedgerService) FreezeCard(ctx context.Context, actorID, cardID string) (*domain.Card, error) {
	return s.setCardStatus(ctx, actorID, cardID, domain.CardFrozen)
}

// UnfreezeCard re-enables a frozen card.
func (s *LedgerService) UnfreezeCard(ctx context.Context, actorID, cardID string) (*domain.Card, error) {
	return s.setCardStatus(ctx, actorID, cardID, domain.CardActive)
}

func (s *LedgerService) setCardStatus(ctx context.Context, actorID, cardID string, status domain.CardStatus) (*domain.Card, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.setCardStatus")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID), attribute.String("status", string(status)))

	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetAccount(ctx, card.AccountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != actorID {
		return nil, &domain.ErrForbidden{Action: "manage another user's card"}
	}

	if err := s.store.UpdateCardStatus(ctx, card.ID, status); err != nil {
		return nil, err
	}
	card.Status = status

	s.logger.Info("card status changed",
		zap.String("card_id", card.ID),
		zap.String("status", string(status)),
	)
	return card, nil
}

// ownedCardTransaction loads a pending card-network transaction owned
// by the actor through its destination account.
func (s *LedgerService) ownedCardTransaction(ctx context.Context, actorID, txID string) (*domain.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Provider != domain.ProviderCardNetwork {
		return nil, &domain.ErrValidation{Field: "transaction_id", Message: "not a card transaction"}
	}
	account, err := s.store.GetAccount(ctx, tx.DestAccountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != actorID {
		return nil, &domain.ErrForbidden{Action: "access another user's transaction"}
	}
	if tx.Status != domain.StatusPending {
		return nil, &domain.ErrInvalidState{Resource: "transaction", ID: tx.ID, Status: string(tx.Status)}
	}
	return tx, nil
}

package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kordbank/ledger-go/internal/domain"
)

// ============================================================
// Query layer — read-only, ownership-enforced
// ============================================================

// ListTransactions returns the actor's transaction history, filtered
// and paginated.
func (s *LedgerService) ListTransactions(ctx context.Context, actorID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListTransactions")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("list_transactions", time.Since(start)) }()

	filter.Normalize()
	return s.store.ListTransactions(ctx, actorID, filter)
}

// GetTransaction returns one transaction the actor owns.
func (s *LedgerService) GetTransaction(ctx context.Context, actorID, txID string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txID))

	return s.ownedTransaction(ctx, actorID, txID)
}

// ListAccounts returns the actor's accounts with live-balance overlays
// filled in for provider-bound accounts. The stored balance is always
// returned and remains the value the write path settles against.
func (s *LedgerService) ListAccounts(ctx context.Context, actorID string) ([]domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListAccounts")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("list_accounts", time.Since(start)) }()

	accounts, err := s.store.ListAccounts(ctx, actorID)
	if err != nil {
		return nil, err
	}
	s.overlayLiveBalances(ctx, accounts)
	return accounts, nil
}

// GetAccount returns one account the actor owns, with its overlay.
func (s *LedgerService) GetAccount(ctx context.Context, actorID, accountID string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != actorID {
		return nil, &domain.ErrForbidden{Action: "access another user's account"}
	}

	single := []domain.Account{*account}
	s.overlayLiveBalances(ctx, single)
	return &single[0], nil
}

// overlayLiveBalances fills LiveBalanceMinor for accounts bound to a
// provider with a balance endpoint, fetching in parallel and caching
// per binding. Overlay failures are display losses, not read failures.
func (s *LedgerService) overlayLiveBalances(ctx context.Context, accounts []domain.Account) {
	g, ctx := errgroup.WithContext(ctx)

	for i := range accounts {
		account := &accounts[i]

		switch {
		case account.CoreBankingAccountID != "":
			g.Go(func() error {
				s.overlayOne(ctx, account, string(domain.ProviderCoreBanking), "corebank:"+account.CoreBankingAccountID, func() (int64, error) {
					return s.coreBank.GetAccountBalance(ctx, account.CoreBankingAccountID)
				})
				return nil
			})
		case account.CardNetworkAccountToken != "":
			g.Go(func() error {
				s.overlayOne(ctx, account, string(domain.ProviderCardNetwork), "cardnet:"+account.CardNetworkAccountToken, func() (int64, error) {
					return s.cardNet.GetAccountBalance(ctx, account.CardNetworkAccountToken)
				})
				return nil
			})
		}
	}

	// Workers never return errors; Wait is only a join point.
	_ = g.Wait()
}

func (s *LedgerService) overlayOne(ctx context.Context, account *domain.Account, provider, cacheKey string, fetch func() (int64, error)) {
	if balance, ok := s.balances.Get(cacheKey); ok {
		s.metrics.IncrOverlayHit(provider)
		account.LiveBalanceMinor = &balance
		return
	}
	s.metrics.IncrOverlayMiss(provider)

	balance, err := fetch()
	if err != nil {
		s.logger.Debug("live balance overlay unavailable",
			zap.String("account_id", account.ID),
			zap.String("provider", provider),
			zap.Error(err),
		)
		return
	}
	s.balances.Set(cacheKey, balance)
	account.LiveBalanceMinor = &balance
}

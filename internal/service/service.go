// Package service holds the orchestrators: transfers, card
// transactions, webhook settlement and the read-only query layer.
package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/infra/observability"
	"github.com/kordbank/ledger-go/internal/port"
)

var ledgerTracer = otel.Tracer("ledger-service")

// LedgerService drives every money movement. All durable state goes
// through the store; all provider traffic goes through the adapters.
type LedgerService struct {
	store    port.LedgerStore
	cardProc port.CardProcessor
	bankRail port.BankRail
	coreBank port.CoreBanking
	cardNet  port.CardNetwork

	balances port.Cache[int64]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewLedgerService wires the orchestrators. Adapters arrive as
// explicit dependencies so tests can substitute fakes.
func NewLedgerService(
	store port.LedgerStore,
	cardProc port.CardProcessor,
	bankRail port.BankRail,
	coreBank port.CoreBanking,
	cardNet port.CardNetwork,
	balances port.Cache[int64],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		store:    store,
		cardProc: cardProc,
		bankRail: bankRail,
		coreBank: coreBank,
		cardNet:  cardNet,
		balances: balances,
		metrics:  metrics,
		logger:   logger,
	}
}

// Health reports whether the ledger store is reachable.
func (s *LedgerService) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

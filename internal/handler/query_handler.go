package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/infra/observability"
	"github.com/kordbank/ledger-go/internal/service"
)

// ============================================================
// Query layer — transactions, accounts, operational counters
// ============================================================

func listTransactionsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		txs, err := svc.ListTransactions(ctx, ActorIDFromContext(ctx), parseTransactionFilter(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if txs == nil {
			txs = []domain.Transaction{}
		}
		writeJSON(w, http.StatusOK, txs)
	}
}

func getTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/{transactionId}")
		defer span.End()

		tx, err := svc.GetTransaction(ctx, ActorIDFromContext(ctx), chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func listAccountsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		accounts, err := svc.ListAccounts(ctx, ActorIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if accounts == nil {
			accounts = []domain.Account{}
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func getAccountHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}")
		defer span.End()

		account, err := svc.GetAccount(ctx, ActorIDFromContext(ctx), chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

func settlementMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetSettlementSnapshot())
	}
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/service"
)

// ============================================================
// Card transactions — create, post, void, list holds, freeze
// ============================================================

func createCardTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/cards/{cardId}/transactions")
		defer span.End()

		var apiReq struct {
			Kind         string `json:"kind"`
			Amount       string `json:"amount"`
			MerchantName string `json:"merchant_name"`
			Memo         string `json:"memo,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&apiReq); err != nil {
			writeError(w, http.StatusBadRequest, "validation", "invalid request body")
			return
		}

		amountMinor, err := domain.ParseAmountMinor(apiReq.Amount)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		tx, err := svc.CreateCardTransaction(ctx, ActorIDFromContext(ctx), chi.URLParam(r, "cardId"),
			domain.CardTransactionKind(apiReq.Kind), amountMinor, apiReq.MerchantName, apiReq.Memo)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func postCardTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/card-transactions/{transactionId}/post")
		defer span.End()

		tx, err := svc.PostCardTransaction(ctx, ActorIDFromContext(ctx), chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func voidCardTransactionHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/card-transactions/{transactionId}/void")
		defer span.End()

		tx, err := svc.VoidCardTransaction(ctx, ActorIDFromContext(ctx), chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func listPendingAuthorizationsHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/card-transactions/pending")
		defer span.End()

		pending, err := svc.ListPendingAuthorizations(ctx, ActorIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if pending == nil {
			pending = []domain.Transaction{}
		}
		writeJSON(w, http.StatusOK, pending)
	}
}

func freezeCardHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/cards/{cardId}/freeze")
		defer span.End()

		card, err := svc.FreezeCard(ctx, ActorIDFromContext(ctx), chi.URLParam(r, "cardId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func unfreezeCardHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/cards/{cardId}/unfreeze")
		defer span.End()

		card, err := svc.UnfreezeCard(ctx, ActorIDFromContext(ctx), chi.URLParam(r, "cardId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

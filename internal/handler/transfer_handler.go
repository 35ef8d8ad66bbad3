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
// Transfers — initiate, confirm, cancel
// ============================================================

func initiateTransferHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers")
		defer span.End()

		var apiReq struct {
			SourceAccountID string `json:"source_account_id,omitempty"`
			DestAccountID   string `json:"dest_account_id"`
			Amount          string `json:"amount"`
			Memo            string `json:"memo,omitempty"`
			Provider        string `json:"provider"`
			Rail            string `json:"rail,omitempty"`
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

		result, err := svc.InitiateTransfer(ctx, ActorIDFromContext(ctx), &domain.TransferRequest{
			SourceAccountID: apiReq.SourceAccountID,
			DestAccountID:   apiReq.DestAccountID,
			AmountMinor:     amountMinor,
			Memo:            apiReq.Memo,
			Provider:        domain.Provider(apiReq.Provider),
			Rail:            domain.Rail(apiReq.Rail),
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			*domain.TransferResult
			Amount string `json:"amount"`
		}{result, domain.FormatMinor(result.Transaction.AmountMinor)})
	}
}

func confirmTransferHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers/{transactionId}/confirm")
		defer span.End()

		tx, err := svc.ConfirmTransfer(ctx, ActorIDFromContext(ctx), chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func cancelTransferHandler(svc *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transfers/{transactionId}/cancel")
		defer span.End()

		tx, err := svc.CancelTransfer(ctx, ActorIDFromContext(ctx), chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

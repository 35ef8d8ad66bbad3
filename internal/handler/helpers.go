package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
)

// ============================================================
// Shared helper functions
// ============================================================

// errorResponse carries a stable machine-readable code alongside the
// human-readable message.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseTransactionFilter reads the query-layer filter from the URL.
// Pagination defaults are applied in the service via Normalize.
func parseTransactionFilter(r *http.Request) domain.TransactionFilter {
	q := r.URL.Query()
	f := domain.TransactionFilter{
		Search:    q.Get("search"),
		AccountID: q.Get("account_id"),
		CardID:    q.Get("card_id"),
		Type:      domain.TransactionType(q.Get("type")),
		Status:    domain.TransactionStatus(q.Get("status")),
	}
	if v := q.Get("from"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = ts
		}
	}
	if v := q.Get("to"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = ts
		}
	}
	if v := q.Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			f.Page = p
		}
	}
	if v := q.Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil {
			f.PageSize = ps
		}
	}
	return f
}

// handleServiceError maps domain errors to HTTP responses. Unclassified
// failures surface as a generic internal error without leaking internals.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var forbidden *domain.ErrForbidden
	var validation *domain.ErrValidation
	var invalidState *domain.ErrInvalidState
	var insufficientFunds *domain.ErrInsufficientFunds
	var cardFrozen *domain.ErrCardFrozen
	var paymentFailed *domain.ErrPaymentFailed
	var upstream *domain.ErrUpstream
	var circuitOpen *domain.ErrCircuitOpen
	var unauthorized *domain.ErrUnauthorized

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.As(err, &invalidState):
		logger.Debug("invalid state", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.As(err, &insufficientFunds):
		logger.Warn("insufficient funds",
			zap.Int64("available_minor", insufficientFunds.AvailableMinor),
			zap.Int64("required_minor", insufficientFunds.RequiredMinor),
		)
		writeError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error())
	case errors.As(err, &cardFrozen):
		logger.Warn("card frozen", zap.String("card_id", cardFrozen.CardID))
		writeError(w, http.StatusUnprocessableEntity, "card_frozen", err.Error())
	case errors.As(err, &paymentFailed):
		logger.Warn("payment failed", zap.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, "payment_failed", err.Error())
	case errors.As(err, &upstream):
		logger.Error("upstream provider error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_error", "settlement provider error")
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "circuit_open", err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/handler"
	"github.com/kordbank/ledger-go/internal/infra/cache"
	"github.com/kordbank/ledger-go/internal/infra/observability"
	"github.com/kordbank/ledger-go/internal/port"
	"github.com/kordbank/ledger-go/internal/service"
)

const testJWTSecret = "test-secret"

// stubStore overrides only what each test exercises; untouched methods
// panic via the embedded nil interface.
type stubStore struct {
	port.LedgerStore
	pending *domain.Transaction
	settled []string
	listed  []domain.Transaction
}

func (s *stubStore) Ping(context.Context) error { return nil }

func (s *stubStore) FindPendingByCorrelation(_ context.Context, provider domain.Provider, correlationID string) (*domain.Transaction, error) {
	if s.pending != nil && s.pending.Provider == provider && s.pending.CorrelationID() == correlationID {
		return s.pending, nil
	}
	return nil, nil
}

func (s *stubStore) SettleTransaction(_ context.Context, txID string, _ []domain.BalanceDelta) error {
	s.settled = append(s.settled, txID)
	s.pending = nil
	return nil
}

func (s *stubStore) ListTransactions(context.Context, string, domain.TransactionFilter) ([]domain.Transaction, error) {
	return s.listed, nil
}

type stubVerifier struct {
	port.CardProcessor
	ok bool
}

func (v *stubVerifier) VerifySignature([]byte, string) bool { return v.ok }

type stubRailVerifier struct {
	port.BankRail
	ok bool
}

func (v *stubRailVerifier) VerifySignature([]byte, string) bool { return v.ok }

func newTestRouter(t *testing.T, store *stubStore, railOK bool) http.Handler {
	t.Helper()
	svc := service.NewLedgerService(
		store, nil, nil, nil, nil,
		cache.New[int64](time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	)
	verifiers := &handler.Verifiers{
		CardProcessor: &stubVerifier{ok: true},
		BankRail:      &stubRailVerifier{ok: railOK},
	}
	return handler.NewRouter(svc, verifiers, testJWTSecret, observability.NewMetrics(), zap.NewNop())
}

func bearerToken(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, &stubStore{}, true)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(t, &stubStore{}, true)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &stubStore{}, true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestV1RequiresBearerToken(t *testing.T) {
	router := newTestRouter(t, &stubStore{}, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListTransactionsAuthorized(t *testing.T) {
	router := newTestRouter(t, &stubStore{}, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestInitiateTransferRejectsBadAmount(t *testing.T) {
	router := newTestRouter(t, &stubStore{}, true)

	body := strings.NewReader(`{"dest_account_id":"acct-b","amount":"12.345","provider":"internal"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/transfers", body)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"validation"`)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	store := &stubStore{pending: &domain.Transaction{
		ID: "tx-1", Provider: domain.ProviderBankRail, BankTransferID: "rail_1",
		SourceAccountID: "acct-a", DestAccountID: "acct-b", AmountMinor: 100,
		Status: domain.StatusPending,
	}}
	router := newTestRouter(t, store, false)

	body := strings.NewReader(`{"transfer_id":"rail_1","status":"processed"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank-rail", body)
	req.Header.Set("X-Rail-Signature", "bogus")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.settled, "rejected webhook must not touch the ledger")
}

func TestWebhookSettlesPendingTransfer(t *testing.T) {
	store := &stubStore{pending: &domain.Transaction{
		ID: "tx-1", Provider: domain.ProviderBankRail, BankTransferID: "rail_1",
		SourceAccountID: "acct-a", DestAccountID: "acct-b", AmountMinor: 100,
		Status: domain.StatusPending,
	}}
	router := newTestRouter(t, store, true)

	body := strings.NewReader(`{"transfer_id":"rail_1","status":"processed"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/bank-rail", body)
	req.Header.Set("X-Rail-Signature", "good")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"tx-1"}, store.settled)
	assert.Contains(t, rec.Body.String(), `"applied":true`)
}

package cardproc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/config"
	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/infra/provider"
	"github.com/kordbank/ledger-go/internal/infra/resilience"
	"github.com/kordbank/ledger-go/internal/port"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	return New(
		&http.Client{Timeout: time.Second},
		config.ProviderConfig{BaseURL: baseURL, APIKey: "sk_test", WebhookSecret: "whsec_test"},
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		resilience.NewCircuitBreaker("card_processor"),
		zap.NewNop(),
	)
}

func TestCreateCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"ch_123","client_secret":"ch_123_secret","status":"requires_confirmation"}`)
	}))
	defer srv.Close()

	charge, err := newTestAdapter(t, srv.URL).CreateCharge(context.Background(), 2500, "USD", "rent")
	require.NoError(t, err)
	assert.Equal(t, "ch_123", charge.ID)
	assert.Equal(t, "ch_123_secret", charge.ClientSecret)
	assert.Equal(t, port.StatusCreated, charge.Status)
}

func TestConfirmCharge_StatusMapping(t *testing.T) {
	cases := []struct {
		raw  string
		want port.ProviderStatus
	}{
		{"succeeded", port.StatusCompleted},
		{"processing", port.StatusPending},
		{"requires_action", port.StatusCreated},
		{"canceled", port.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/charges/ch_9/confirm", r.URL.Path)
				fmt.Fprintf(w, `{"id":"ch_9","status":%q}`, tc.raw)
			}))
			defer srv.Close()

			status, err := newTestAdapter(t, srv.URL).ConfirmCharge(context.Background(), "ch_9")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestCreateCharge_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"amount too small"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestAdapter(t, srv.URL).CreateCharge(context.Background(), 1, "USD", "")
	var up *domain.ErrUpstream
	require.ErrorAs(t, err, &up)
	assert.Equal(t, domain.ProviderCardProcessor, up.Provider)
	assert.Equal(t, http.StatusUnprocessableEntity, up.StatusCode)
}

func TestVerifySignature(t *testing.T) {
	a := newTestAdapter(t, "http://unused")
	body := []byte(`{"id":"evt_1","type":"charge.succeeded"}`)
	ts := "1700000000"
	mac := provider.HMACHex("whsec_test", append([]byte(ts+"."), body...))

	assert.True(t, a.VerifySignature(body, fmt.Sprintf("t=%s,v1=%s", ts, mac)))
	assert.False(t, a.VerifySignature(body, fmt.Sprintf("t=%s,v1=%s", ts, "deadbeef")))
	assert.False(t, a.VerifySignature([]byte(`tampered`), fmt.Sprintf("t=%s,v1=%s", ts, mac)))
	assert.False(t, a.VerifySignature(body, "v1="+mac))
	assert.False(t, a.VerifySignature(body, ""))
}

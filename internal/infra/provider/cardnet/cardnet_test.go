package cardnet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/config"
	"github.com/kordbank/ledger-go/internal/infra/resilience"
	"github.com/kordbank/ledger-go/internal/port"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	return New(
		&http.Client{Timeout: time.Second},
		config.ProviderConfig{BaseURL: baseURL, APIKey: "net_key", WebhookSecret: "net_secret"},
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		resilience.NewCircuitBreaker("card_network"),
		zap.NewNop(),
	)
}

func TestNormalizeMerchantID(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Blue Bottle Coffee", "bluebottlecoffee"},
		{"7-Eleven #1234", "7eleven1234"},
		{"CAFÉ OLÉ", "cafol"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeMerchantID(tc.name))
	}

	long := NormalizeMerchantID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	assert.Len(t, long, 40)
}

func TestEnsureUser_CreatesOnFirstCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		fmt.Fprint(w, `{"token":"usr_abc","state":"QUEUED"}`)
	}))
	defer srv.Close()

	token, err := newTestAdapter(t, srv.URL).EnsureUser(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "usr_abc", token)
}

func TestEnsureUser_ResolvesExistingOnConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Error(w, `{"error":"user already exists"}`, http.StatusConflict)
			return
		}
		assert.Equal(t, "/users/owner-1", r.URL.Path)
		fmt.Fprint(w, `{"token":"usr_existing","state":"QUEUED"}`)
	}))
	defer srv.Close()

	token, err := newTestAdapter(t, srv.URL).EnsureUser(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "usr_existing", token)
}

func TestAuthorize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simulate/authorization", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bluebottlecoffee", req["mid"])
		fmt.Fprint(w, `{"token":"ntx_1","state":"PENDING"}`)
	}))
	defer srv.Close()

	ntx, err := newTestAdapter(t, srv.URL).Authorize(context.Background(), "card_tok", 1500, "Blue Bottle Coffee", "coffee")
	require.NoError(t, err)
	assert.Equal(t, "ntx_1", ntx.Token)
	assert.Equal(t, port.StatusPending, ntx.Status)
}

func TestClear_StatusMapping(t *testing.T) {
	cases := []struct {
		raw  string
		want port.ProviderStatus
	}{
		{"CLEARED", port.StatusCompleted},
		{"COMPLETION", port.StatusCompleted},
		{"PENDING", port.StatusPending},
		{"DECLINED", port.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprintf(w, `{"token":"ntx_2","state":%q}`, tc.raw)
			}))
			defer srv.Close()

			status, err := newTestAdapter(t, srv.URL).Clear(context.Background(), "ntx_2", 1500, "bluebottlecoffee")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestVerifySignature(t *testing.T) {
	a := newTestAdapter(t, "http://unused")
	assert.True(t, a.VerifySignature(nil, "net_secret"))
	assert.False(t, a.VerifySignature(nil, "other"))
	assert.False(t, a.VerifySignature(nil, ""))

	empty := newTestAdapter(t, "http://unused")
	empty.webhookSecret = ""
	assert.False(t, empty.VerifySignature(nil, ""))
}

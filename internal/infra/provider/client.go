// Package provider holds the shared HTTP plumbing for settlement
// provider adapters: authenticated JSON requests wrapped in a circuit
// breaker and retry, with every failure normalized to domain.ErrUpstream.
package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/infra/resilience"
)

// Client is the REST transport one adapter owns. Each settlement
// provider gets its own breaker so failures stay isolated.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Provider   domain.Provider
	Breaker    *gobreaker.CircuitBreaker
	Cfg        resilience.Config
	Logger     *zap.Logger
}

// Do executes a JSON request and decodes the response into out (when
// out is non-nil). Transport errors, non-2xx statuses and undecodable
// bodies all come back as *domain.ErrUpstream; a 4xx is not retried.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	_, err := c.Breaker.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.Cfg, func() error {
			return c.doOnce(ctx, method, path, body, out)
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Provider: c.Provider}
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return resilience.Permanent(c.upstream(0, fmt.Sprintf("encode request: %v", err), err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return resilience.Permanent(c.upstream(0, err.Error(), err))
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Covers timeouts; retried like any transport failure.
		return c.upstream(0, err.Error(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.upstream(resp.StatusCode, err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.Logger.Warn("provider: non-2xx response",
			zap.String("provider", string(c.Provider)),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		upErr := c.upstream(resp.StatusCode, string(raw), nil)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(upErr)
		}
		return upErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resilience.Permanent(c.upstream(resp.StatusCode, fmt.Sprintf("decode response: %v", err), err))
		}
	}
	return nil
}

func (c *Client) upstream(status int, msg string, err error) *domain.ErrUpstream {
	return &domain.ErrUpstream{Provider: c.Provider, StatusCode: status, Message: msg, Err: err}
}

// HMACHex returns the hex-encoded HMAC-SHA256 of data.
func HMACHex(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACBase64 returns the base64-encoded HMAC-SHA256 of data.
func HMACBase64(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SecureEqual compares two signature strings in constant time.
func SecureEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

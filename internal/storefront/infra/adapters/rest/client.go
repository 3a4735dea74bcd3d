// Package rest implements the remote store ports over the backend's REST API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/contract/storev1"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/interceptors"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

// Client talks to the remote store. It satisfies both ports.CartStore and
// ports.OrderStore.
type Client struct {
	baseURL string
	http    *http.Client
}

type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout time.Duration
	base    http.RoundTripper
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

// WithTransport replaces http.DefaultTransport under the interceptors.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *clientConfig) { c.base = rt }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	cfg := clientConfig{timeout: 10 * time.Second, base: http.DefaultTransport}
	for _, opt := range opts {
		opt(&cfg)
	}

	transport := interceptors.Chain(cfg.base,
		interceptors.WithRequestID,
		interceptors.WithIdempotencyKey,
		interceptors.WithBearer,
	)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: cfg.timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "store " + r.Method + " " + r.URL.Path
				}),
			),
		},
	}
}

// do sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil). Failures are classified into the domain taxonomy.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &domain.RemoteError{Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if out == nil || res.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, res.Body)
			return nil
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return &domain.RemoteError{Op: op, StatusCode: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	return classify(op, res)
}

func classify(op string, res *http.Response) error {
	var apiErr storev1.Error
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &apiErr)
	}
	msg := apiErr.Error
	if msg == "" {
		msg = http.StatusText(res.StatusCode)
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return &domain.RemoteError{Op: op, StatusCode: res.StatusCode, Err: domain.ErrUnauthenticated}
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case res.StatusCode == http.StatusUnprocessableEntity && apiErr.From != "" && apiErr.To != "":
		return &domain.InvalidTransitionError{
			From: domain.OrderStatus(apiErr.From),
			To:   domain.OrderStatus(apiErr.To),
		}
	case res.StatusCode == http.StatusBadRequest || res.StatusCode == http.StatusUnprocessableEntity:
		if strings.Contains(msg, "quantity") {
			return fmt.Errorf("%s: %s: %w", op, msg, domain.ErrInvalidQuantity)
		}
		return fmt.Errorf("%s: rejected: %s", op, msg)
	default:
		return &domain.RemoteError{Op: op, StatusCode: res.StatusCode, Err: errors.New(msg)}
	}
}

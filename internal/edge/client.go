// Package edge is the HTTP client for the upstream edge-function
// backend. It owns header construction, optional HMAC request signing
// and the per-call timeout; error classification happens in the
// service layer on top of it.
package edge

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultTimeout caps every upstream call.
const DefaultTimeout = 30 * time.Second

// Header names used on upstream requests.
const (
	HeaderTenantID       = "x-tenant-id"
	HeaderIdempotencyKey = "idempotency-key"
	HeaderSignature      = "x-internal-signature"
	HeaderAPIKey         = "apikey"
)

var upstreamRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "edge_upstream_requests_total",
		Help: "Total number of requests to the edge-function backend",
	},
	[]string{"method", "path", "status"},
)

// Client issues authenticated, optionally signed requests to the edge
// backend.
type Client struct {
	baseURL       string
	apiKey        string
	signingSecret string
	httpClient    *http.Client
}

// Config configures the client.
type Config struct {
	// BaseURL is the edge function base, e.g.
	// https://proj.supabase.co/functions/v1/onboarding.
	BaseURL string
	// APIKey, when set, is attached as the apikey header on every
	// request alongside the caller's bearer token.
	APIKey string
	// SigningSecret enables the x-internal-signature HMAC. Unsigned
	// operation is tolerated when empty.
	SigningSecret string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// New creates a client. When no signing secret is configured the
// signature header is omitted entirely and a single warning is logged
// at startup.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("edge: base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	if cfg.SigningSecret == "" {
		logger.Warn().Msg("edge client running unsigned: no internal signing secret configured")
	}

	return &Client{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		signingSecret: cfg.SigningSecret,
		httpClient:    httpClient,
	}, nil
}

// CallOptions carries per-request credentials and headers.
type CallOptions struct {
	AuthToken      string
	TenantID       string
	IdempotencyKey string
}

// Response is the raw upstream answer. Any HTTP status is returned as
// a Response; only transport failures produce an error.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Message pulls a human-readable error message out of an upstream
// failure body, falling back to the status text.
func (r *Response) Message() string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return http.StatusText(r.StatusCode)
}

// ErrTimeout marks a call that hit the per-request deadline. Timeouts
// are treated the same as network failures by callers.
var ErrTimeout = errors.New("edge: request timed out")

// Get performs a GET against the backend.
func (c *Client) Get(ctx context.Context, path string, opts CallOptions) (*Response, error) {
	return c.call(ctx, http.MethodGet, path, nil, opts)
}

// Post performs a POST with an optional JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts CallOptions) (*Response, error) {
	return c.call(ctx, http.MethodPost, path, body, opts)
}

func (c *Client) call(ctx context.Context, method, path string, body any, opts CallOptions) (*Response, error) {
	var payload []byte
	var reader io.Reader
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if opts.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(opts.AuthToken, "Bearer "))
	}
	if opts.TenantID != "" {
		req.Header.Set(HeaderTenantID, opts.TenantID)
	}
	if opts.IdempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, opts.IdempotencyKey)
	}
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}
	if c.signingSecret != "" {
		req.Header.Set(HeaderSignature, c.Sign(payload))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamRequests.WithLabelValues(method, path, "error").Inc()
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return nil, fmt.Errorf("edge request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		upstreamRequests.WithLabelValues(method, path, "error").Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}

	upstreamRequests.WithLabelValues(method, path, strconv.Itoa(resp.StatusCode)).Inc()

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
	}, nil
}

// Sign computes the hex HMAC-SHA256 of the exact serialized body. An
// empty body signs the empty string so GETs are signed consistently.
func (c *Client) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.signingSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

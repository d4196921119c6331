// Package freshdesk is a typed client for the subset of the Freshdesk v2
// REST API the proxy needs. Every response goes through one validation
// gate, so callers only ever see decoded values or typed errors.
package freshdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/psds-microservice/freshdesk-service/internal/errs"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = 200 * time.Millisecond
	maxBackoff        = 5 * time.Second
	maxResponseBytes  = 10 << 20

	noContactMessage = "There is no contact matching the given email"
)

// Config is built once at startup and never changed afterwards.
type Config struct {
	// BaseURL is the API root, e.g. "https://acme.freshdesk.com/api/v2". Must use HTTPS.
	BaseURL string

	// APIKey is sent as the basic-auth user on every call.
	APIKey string

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client

	// Timeout bounds a single upstream attempt. Defaults to 15s.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Zero
	// means the default; negative disables retries.
	MaxRetries int

	// Backoff is the first retry delay; it doubles on each retry.
	Backoff time.Duration

	Logger *slog.Logger
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	backoff    time.Duration
	logger     *slog.Logger
}

// NewClient validates cfg and resolves its defaults.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("freshdesk: base URL is required")
	}
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("freshdesk: API client requires HTTPS (got %q)", baseURL)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("freshdesk: API key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	retries := cfg.MaxRetries
	switch {
	case retries == 0:
		retries = defaultMaxRetries
	case retries < 0:
		retries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		maxRetries: uint64(retries),
		backoff:    backoff,
		logger:     logger,
	}, nil
}

// body is an encoded request payload; it is replayed on every attempt.
type body struct {
	contentType string
	data        []byte
}

func jsonBody(v any) (*body, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("freshdesk: encoding request body: %w", err)
	}
	return &body{contentType: "application/json", data: data}, nil
}

// do sends one logical request, retrying transient failures, and passes the
// final response through validate.
func (c *Client) do(ctx context.Context, method, path string, reqBody *body) (*Response, error) {
	var resp *Response
	attempt := 0

	b := retry.NewExponential(c.backoff)
	b = retry.WithCappedDuration(maxBackoff, b)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithMaxRetries(c.maxRetries, b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		r, header, err := c.send(ctx, method, path, reqBody)
		if err != nil {
			if method != http.MethodPost && ctx.Err() == nil {
				c.logger.Warn("freshdesk: transport error, retrying",
					"method", method, "path", path, "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		resp = r
		if !retryable(method, r.StatusCode) {
			return nil
		}
		c.logger.Warn("freshdesk: transient status, retrying",
			"method", method, "path", path, "attempt", attempt, "status", r.StatusCode)
		if wait := retryAfter(header); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return retry.RetryableError(&errs.UpstreamError{Method: method, Path: path, Status: r.StatusCode, Body: r.Body})
	})
	// Retries exhausted on a transient status: the last response is still
	// the best answer and goes through the gate like any other.
	if err != nil && resp == nil {
		return nil, err
	}
	if err != nil && !errs.IsUpstream(err) {
		return nil, err
	}
	if err := validate(method, path, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, reqBody *body) (*Response, http.Header, error) {
	var reader io.Reader
	if reqBody != nil {
		reader = bytes.NewReader(reqBody.data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("freshdesk: creating request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "X")
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", reqBody.contentType)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("freshdesk: %s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("freshdesk: reading response body: %w", err)
	}
	c.logger.Debug("freshdesk: call",
		"method", method, "path", path, "status", httpResp.StatusCode, "duration", time.Since(start))
	return &Response{StatusCode: httpResp.StatusCode, Body: data}, httpResp.Header, nil
}

// validate is the single gate every upstream answer passes through.
func validate(method, path string, resp *Response) error {
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	query := `errors.#(message=="` + noContactMessage + `")`
	if gjson.GetBytes(resp.Body, query).Exists() {
		return fmt.Errorf("freshdesk: %s %s: %w", method, path, errs.ErrNoContact)
	}
	return &errs.UpstreamError{Method: method, Path: path, Status: resp.StatusCode, Body: resp.Body}
}

// retryable: POST is only replayed when the helpdesk provably did not apply it.
func retryable(method string, status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if method == http.MethodPost {
		return false
	}
	return status >= 500
}

func retryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decode(resp, path, result)
}

func decode(resp *Response, path string, result any) error {
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("freshdesk: decoding %s: %w", path, err)
	}
	return nil
}


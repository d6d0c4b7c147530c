// CLAUDE:SUMMARY Backend REST client: bearer auth, bounded bodies, GET-only retry with exponential backoff, circuit breaker, per-call observer.
// CLAUDE:EXPORTS Client, Config, New, Observer
// Package client talks to the backend that proxies the judicial-data
// provider. It returns raw JSON: shapes vary too much to decode here, that
// is the normalizer's job.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/jurimon/horosafe"
)

// Observer is told about every backend call once it settles.
type Observer func(op string, status int, err error, d time.Duration)

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration // per attempt; default 20s
	MaxRetries int           // GET only; 0 disables
	Backoff    time.Duration // doubled each retry; default 200ms
	HTTPClient *http.Client
	Breaker    *Breaker
	Logger     *slog.Logger
	Observer   Observer
}

// Client is safe for concurrent use.
type Client struct {
	base       string
	token      string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	http       *http.Client
	breaker    *Breaker
	logger     *slog.Logger
	observe    Observer
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if err := horosafe.ValidateBaseURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	c := &Client{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		http:       cfg.HTTPClient,
		breaker:    cfg.Breaker,
		logger:     cfg.Logger,
		observe:    cfg.Observer,
	}
	if c.timeout <= 0 {
		c.timeout = 20 * time.Second
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.backoff <= 0 {
		c.backoff = 200 * time.Millisecond
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// do performs one logical call. Only GETs are retried: a POST may already
// have spent provider quota when its response is lost.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("client: %s: encode: %w", op, err)
		}
	}

	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	start := time.Now()
	var (
		out    json.RawMessage
		status int
		err    error
	)
retry:
	for attempt := 0; attempt <= retries; attempt++ {
		if c.breaker != nil && !c.breaker.Allow() {
			err = &CircuitOpenError{Op: op}
			break
		}
		out, status, err = c.attempt(ctx, op, method, path, payload)
		if c.breaker != nil {
			if serverSide(err) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		if err == nil || ctx.Err() != nil || !retryable(err) || attempt == retries {
			break
		}
		wait := c.backoff * (1 << uint(attempt))
		c.logger.WarnContext(ctx, "client: retrying call",
			"op", op, "attempt", attempt+1, "max_retries", retries,
			"backoff_ms", wait.Milliseconds(), "error", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			break retry
		case <-t.C:
		}
	}
	if c.observe != nil {
		c.observe(op, status, err, time.Since(start))
	}
	return out, err
}

func (c *Client) attempt(ctx context.Context, op, method, path string, payload []byte) (json.RawMessage, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, 0, fmt.Errorf("client: %s: new request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("client: %s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("client: %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &HTTPError{Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, resp.StatusCode, nil
	}
	if !json.Valid(data) {
		return nil, resp.StatusCode, fmt.Errorf("client: %s: invalid json body", op)
	}
	return json.RawMessage(data), resp.StatusCode, nil
}

func retryable(err error) bool {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Temporary()
	}
	var co *CircuitOpenError
	if errors.As(err, &co) {
		return false
	}
	return !errors.Is(err, horosafe.ErrTooLarge)
}

func serverSide(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// maxErrorMessage caps HTTPError.Message, in bytes.
const maxErrorMessage = 200

// errorMessage pulls a readable message out of an error body.
func errorMessage(body []byte) string {
	var m map[string]any
	if json.Unmarshal(body, &m) == nil {
		for _, k := range []string{"error", "message", "detail"} {
			if s, ok := m[k].(string); ok && s != "" {
				return truncate(s, maxErrorMessage)
			}
		}
	}
	return truncate(strings.TrimSpace(string(body)), maxErrorMessage)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

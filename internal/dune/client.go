// Package dune fetches query results from the Dune Analytics HTTP API and
// converts them to tables.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
)

const (
	DefaultBaseURL      = "https://api.dune.com/api/v1"
	DefaultCacheTTL     = time.Hour
	defaultPollInterval = 2 * time.Second
)

type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	pollInterval     time.Duration
	cache            *resultCache
}

// NewDefaultClient returns a client with default timeouts and retry strategy.
func NewDefaultClient(apiKey string) *Client {
	return NewClient(apiKey, 60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
}

// NewClient allows customizing HTTP timeout and retry/backoff behavior.
func NewClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: httpTimeout},
		apiKey:           apiKey,
		baseURL:          DefaultBaseURL,
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
		pollInterval:     defaultPollInterval,
		cache:            newResultCache(DefaultCacheTTL),
	}
}

// NewClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *Client {
	c := NewClient(apiKey, httpTimeout, retryMax, baseDelay, maxDelay)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// SetPollInterval changes how often execution status is polled.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// SetCacheTTL changes how long results are reused. ttl <= 0 disables caching.
func (c *Client) SetCacheTTL(ttl time.Duration) {
	c.cache = newResultCache(ttl)
}

// do sends one API call, retrying 429/5xx responses and transient network
// errors with jittered exponential backoff. A 2xx body is decoded into out.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c.apiKey == "" {
		return errors.New("DUNE_API_KEY is missing")
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}
	endpoint := c.baseURL + path
	maxAttempts := c.retryMaxAttempts
	backoff := c.retryBaseDelay
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("X-Dune-API-Key", c.apiKey)
		httpReq.Header.Set("Accept", "application/json")
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isRetryableNetErr(err) && attempt < maxAttempts {
				lastErr = err
				log.Debugf("[Dune] %s %s: %v (attempt %d/%d)", method, path, err, attempt, maxAttempts)
				if err := sleepCtx(ctx, c.capDelay(backoff)); err != nil {
					return err
				}
				backoff *= 2
				continue
			}
			return fmt.Errorf("http request: %w", err)
		}
		retry := false
		var wait time.Duration
		func() {
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				apiErr := decodeAPIError(resp)
				if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < maxAttempts {
					retry = true
					if ra := resp.Header.Get("Retry-After"); ra != "" {
						if secs, err := parseRetryAfterSeconds(ra); err == nil && secs > 0 {
							lastErr = &RateLimitError{APIError: apiErr, RetryAfter: time.Duration(secs) * time.Second}
							wait = c.capDelay(time.Duration(secs) * time.Second)
							return
						}
					}
					lastErr = apiErr
					wait = c.capDelay(withJitter(backoff))
					log.Debugf("[Dune] %s %s: status %d, retrying in %s", method, path, resp.StatusCode, wait)
					backoff *= 2
					return
				}
				lastErr = classifyAPIError(apiErr, resp)
				return
			}
			if out != nil {
				dec := json.NewDecoder(resp.Body)
				dec.UseNumber()
				if err := dec.Decode(out); err != nil {
					lastErr = fmt.Errorf("decode response: %w", err)
					return
				}
			}
			lastErr = nil
		}()
		if lastErr == nil {
			return nil
		}
		if retry {
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue
		}
		break
	}
	return lastErr
}

// capDelay bounds a retry wait by retryMaxDelay, including server-sent
// Retry-After values.
func (c *Client) capDelay(d time.Duration) time.Duration {
	if c.retryMaxDelay > 0 && d > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	switch v := raw["error"].(type) {
	case string:
		apiErr.Message = v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			apiErr.Message = msg
		}
	}
	if apiErr.Message == "" {
		if msg, ok := raw["message"].(string); ok {
			apiErr.Message = msg
		}
	}
	return apiErr
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

// parseRetryAfterSeconds interprets a Retry-After header as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// classifyAPIError maps a generic APIError to a typed error.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusNotFound:
		return &NotFoundError{APIError: apiErr}
	case sc == http.StatusPaymentRequired || containsAnyFold(apiErr.Message, "credits", "quota", "billing"):
		return &QuotaExceededError{APIError: apiErr}
	case sc == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

func containsAnyFold(s string, subs ...string) bool {
	ls := strings.ToLower(s)
	for _, sub := range subs {
		if sub != "" && ls != "" && strings.Contains(ls, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "X-Request-ID", "X-Dune-Request-Id", "Cf-Ray"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}

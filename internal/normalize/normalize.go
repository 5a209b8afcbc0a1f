// Package normalize is the client side of the text-normalization
// (spelling-correction) collaborator used by correction-impact runs.
package normalize

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

	"golang.org/x/time/rate"
)

var (
	// ErrServiceUnavailable reports a normalizer that refused, errored or
	// could not be reached.
	ErrServiceUnavailable = errors.New("normalize: service unavailable")

	// ErrTimeout reports a normalize call that hit its deadline.
	ErrTimeout = errors.New("normalize: timeout")
)

// IsTransient reports whether err is a timeout or an unavailable service.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}

// Normalizer rewrites text. It is assumed to be a pure function of its
// input; implementations must be safe for concurrent use.
type Normalizer interface {
	Normalize(ctx context.Context, text string) (string, error)
}

// Func adapts a plain function to Normalizer.
type Func func(text string) string

// Normalize calls f.
func (f Func) Normalize(_ context.Context, text string) (string, error) {
	return f(text), nil
}

// Identity returns text unchanged.
var Identity Normalizer = Func(func(text string) string { return text })

// HTTPClient calls a normalization service:
//
//	POST {endpoint}/normalize  {"text": "..."}  ->  200 {"text": "..."}
type HTTPClient struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	limiter  *rate.Limiter
}

type normalizeBody struct {
	Text string `json:"text"`
}

// NewHTTPClient creates a normalizer client. timeout <= 0 means 10s;
// rps <= 0 disables rate limiting.
func NewHTTPClient(endpoint string, timeout time.Duration, rps float64) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		timeout:  timeout,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(limit, max(1, int(rps))),
	}
}

// Normalize implements Normalizer. Failures map onto ErrTimeout and
// ErrServiceUnavailable the same way the classifier client does;
// cancellation of ctx itself is reported as context.Canceled.
func (c *HTTPClient) Normalize(ctx context.Context, text string) (string, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if parent.Err() != nil {
			return "", fmt.Errorf("normalize: rate limiter wait: %w", parent.Err())
		}
		return "", fmt.Errorf("%w: rate limiter wait: %w", ErrTimeout, err)
	}

	jsonBody, err := json.Marshal(normalizeBody{Text: text})
	if err != nil {
		return "", fmt.Errorf("normalize: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/normalize", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("normalize: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", c.callError(parent, ctx, "request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", c.callError(parent, ctx, "read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d: %s", ErrServiceUnavailable, resp.StatusCode, string(body))
	default:
		return "", fmt.Errorf("normalize: service returned status %d: %s", resp.StatusCode, string(body))
	}

	var out normalizeBody
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("normalize: failed to parse response: %w", err)
	}
	return out.Text, nil
}

func (c *HTTPClient) callError(parent, ctx context.Context, op string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("normalize: %s: %w", op, parent.Err())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %s: %w", ErrTimeout, c.timeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrServiceUnavailable, op, err)
}

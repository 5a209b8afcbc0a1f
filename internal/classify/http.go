package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/moodcheck/internal/model"
)

// DefaultTimeout bounds a single classify call.
const DefaultTimeout = 10 * time.Second

// HTTPClient calls a prediction service over JSON/HTTP.
//
//	POST {endpoint}/predict  {"model": "...", "text": "..."}
//	-> 200 {"label": "HAPPY"} or {"label": 1}
//
// No retry is performed; a failed call is reported and left to the caller.
type HTTPClient struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	limiter  *rate.Limiter
}

// predictRequest represents the request body for POST /predict.
type predictRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// predictResponse represents the response from POST /predict.
type predictResponse struct {
	Label json.RawMessage `json:"label"`
}

// NewHTTPClient creates a client for the service at endpoint. timeout <= 0
// uses DefaultTimeout; rps <= 0 disables rate limiting.
func NewHTTPClient(endpoint string, timeout time.Duration, rps float64) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		timeout:  timeout,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Available returns true if the service answers its health check.
// Uses a 3-second timeout for the availability check.
func (c *HTTPClient) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Classify implements Classifier. Each call carries its own deadline.
// Cancellation of ctx itself is reported as context.Canceled (or the
// parent's deadline error), never as ErrTimeout.
func (c *HTTPClient) Classify(ctx context.Context, modelID, text string) (model.Label, error) {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if parent.Err() != nil {
			return "", fmt.Errorf("classify: rate limiter wait: %w", parent.Err())
		}
		return "", fmt.Errorf("%w: rate limiter wait: %w", ErrTimeout, err)
	}

	jsonBody, err := json.Marshal(predictRequest{Model: modelID, Text: text})
	if err != nil {
		return "", fmt.Errorf("classify: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/predict", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("classify: failed to create request: %w", err)
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
		return "", fmt.Errorf("classify: service returned status %d: %s", resp.StatusCode, string(body))
	}

	var pr predictResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", fmt.Errorf("classify: failed to parse response: %w", err)
	}
	return parseLabel(pr.Label)
}

// callError classifies a transport failure: caller cancellation first,
// then the per-call deadline, otherwise an unreachable service.
func (c *HTTPClient) callError(parent, ctx context.Context, op string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("classify: %s: %w", op, parent.Err())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %s: %w", ErrTimeout, c.timeout, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrServiceUnavailable, op, err)
}

// parseLabel accepts a JSON string ("HAPPY") or number (1). A value outside
// {HAPPY, SAD} is returned as-is, without error, so the aggregation pass
// rejects it with an UnknownLabelError instead of the record being dropped.
func parseLabel(raw json.RawMessage) (model.Label, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("classify: response has no label")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if l, err := model.ParseLabel(s); err == nil {
			return l, nil
		}
		return model.Label(strings.ToUpper(strings.TrimSpace(s))), nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if l, err := model.LabelFromNumeric(n); err == nil {
			return l, nil
		}
		return model.Label(strconv.FormatFloat(n, 'g', -1, 64)), nil
	}
	return "", fmt.Errorf("classify: unrecognized label %s", string(raw))
}

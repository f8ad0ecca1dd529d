package opponent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// DefaultEndpoint is where the inference service listens in development.
const DefaultEndpoint = "http://localhost:5000/predict"

type predictRequest struct {
	FEN        string `json:"fen"`
	Difficulty string `json:"difficulty"`
}

type predictResponse struct {
	Move string `json:"move"`
}

// HeaderProvider injects per-request headers, e.g. an API key.
type HeaderProvider func() map[string]string

// HTTPClient posts {fen, difficulty} to a remote predictor and reads {move}.
type HTTPClient struct {
	endpoint string
	http     *fasthttp.Client
	headers  HeaderProvider
	logger   *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type HTTPOption func(*HTTPClient)

func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithRetry(max int) HTTPOption {
	return func(c *HTTPClient) { c.retryMax = max }
}

func WithHeaderProvider(h HeaderProvider) HTTPOption {
	return func(c *HTTPClient) { c.headers = h }
}

func WithLogger(l *zap.Logger) HTTPOption {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewHTTPClient(endpoint string, opts ...HTTPOption) *HTTPClient {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &HTTPClient{
		endpoint:       endpoint,
		http:           &fasthttp.Client{ReadTimeout: 15 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 64},
		logger:         zap.NewNop(),
		defaultTimeout: 15 * time.Second,
		retryMax:       1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) Endpoint() string { return c.endpoint }

// RequestMove implements Client.
func (c *HTTPClient) RequestMove(ctx context.Context, req Request) (string, error) {
	var out predictResponse
	in := predictRequest{FEN: req.FEN, Difficulty: string(req.Difficulty)}
	if err := c.doJSON(ctx, in, &out); err != nil {
		return "", err
	}
	move := strings.TrimSpace(out.Move)
	if move == "" {
		return "", ErrEmptyMove
	}
	return move, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, in any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.endpoint)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req.SetBody(payload)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrTransport, err)
			c.logger.Warn("opponent_http_error", zap.Int("attempt", attempt), zap.String("endpoint", c.endpoint), zap.Error(err))
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("%w: status=%d body=%s", ErrBadStatus, status, truncate(string(resp.Body()), 256))
			c.logger.Warn("opponent_http_status", zap.Int("attempt", attempt), zap.Int("status", status))
			if attempt == attempts || !shouldRetryStatus(status) {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *HTTPClient) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 100ms and caps at 3.2s.
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

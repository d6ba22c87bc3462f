package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gmkornilov/chess-trainer/pkg/trainer"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Client talks to the position provider over HTTP and implements
// trainer.Provider.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 16,
			// keep the escaped fen segment exactly as encoded
			DisablePathNormalizing: true,
		},
		logger:         zap.NewNop(),
		defaultTimeout: 30 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ trainer.Provider = (*Client)(nil)

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider error: status=%d body=%s", e.status, e.body)
}

func (c *Client) Next(ctx context.Context, req trainer.NextRequest) (trainer.Position, error) {
	q := url.Values{}
	q.Set("mode", string(req.Mode))
	if req.User != "" {
		q.Set("user", req.User)
	}
	if req.StudyID != "" {
		q.Set("studyId", req.StudyID)
	}

	var pos trainer.Position
	err := c.doJSON(ctx, fasthttp.MethodGet, "/positions/next?"+q.Encode(), nil, &pos, true)
	var se *statusError
	if errors.As(err, &se) && se.status == fasthttp.StatusNotFound {
		return trainer.Position{}, trainer.ErrNoPosition
	}
	if err != nil {
		return trainer.Position{}, fmt.Errorf("%w: %v", trainer.ErrProviderUnavailable, err)
	}
	return pos, nil
}

// EncodeFEN makes fen usable as a single path segment. The provider decodes
// '\' back to '/'.
func EncodeFEN(fen string) string {
	return url.PathEscape(strings.ReplaceAll(fen, "/", `\`))
}

func (c *Client) EngineEvaluation(ctx context.Context, fen string) (int, error) {
	var resp struct {
		EvaluationScore int `json:"evaluationScore"`
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/engineEvaluation/"+EncodeFEN(fen), nil, &resp, true); err != nil {
		return 0, fmt.Errorf("%w: %v", trainer.ErrProviderUnavailable, err)
	}
	return resp.EvaluationScore, nil
}

func (c *Client) ReportAttempt(ctx context.Context, attempt trainer.Attempt) error {
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/positions/attempts", attempt, nil, false); err != nil {
		return fmt.Errorf("%w: %v", trainer.ErrProviderUnavailable, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 0 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = &statusError{status: status, body: truncate(string(resp.Body()), 512)}
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			if out != nil {
				if err := json.Unmarshal(resp.Body(), out); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
			}
			return nil
		}

		if attempt == attempts {
			break
		}
		c.logger.Debug("retrying provider request", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(lastErr))
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
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

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
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

package lichess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/notnil/chess"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("lichess: not found")

const pgnContentType = "application/x-chess-pgn"

type Client struct {
	baseURL string
	http    *fasthttp.Client
	stream  *fasthttp.Client
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

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			ReadTimeout:         time.Minute,
			WriteTimeout:        10 * time.Second,
			MaxConnsPerHost:     8,
			MaxResponseBodySize: 64 << 20,
		},
		// the tv feed never ends, its body is read as a stream
		stream: &fasthttp.Client{
			ReadTimeout:        2 * time.Minute,
			WriteTimeout:       10 * time.Second,
			StreamResponseBody: true,
		},
		logger:         zap.NewNop(),
		defaultTimeout: time.Minute,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserGames downloads the last max games of user.
func (c *Client) UserGames(ctx context.Context, user string, max int) ([]*chess.Game, error) {
	q := url.Values{}
	q.Set("max", strconv.Itoa(max))
	q.Set("moves", "true")
	q.Set("tags", "true")
	body, err := c.getPGN(ctx, "/api/games/user/"+url.PathEscape(user)+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("games of %s: %w", user, err)
	}

	scanner := chess.NewScanner(bytes.NewReader(body))
	games := make([]*chess.Game, 0, max)
	for scanner.Scan() {
		games = append(games, scanner.Next())
	}
	c.logger.Debug("fetched user games", zap.String("user", user), zap.Int("games", len(games)))
	return games, nil
}

// StudyPGN downloads every chapter of a study as one PGN document.
func (c *Client) StudyPGN(ctx context.Context, studyID string) ([]byte, error) {
	body, err := c.getPGN(ctx, "/api/study/"+url.PathEscape(studyID)+".pgn?comments=true&variations=false")
	if err != nil {
		return nil, fmt.Errorf("study %s: %w", studyID, err)
	}
	return body, nil
}

func (c *Client) getPGN(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set("Accept", pgnContentType)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			switch {
			case status == fasthttp.StatusNotFound:
				return nil, ErrNotFound
			case status >= 200 && status < 300:
				return append([]byte(nil), resp.Body()...), nil
			}
			err = fmt.Errorf("lichess api error: status=%d body=%s", status, truncate(string(resp.Body()), 256))
			if !shouldRetryStatus(status) {
				return nil, err
			}
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		c.logger.Debug("retrying lichess request", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
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
	return time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusTooManyRequests, 500, 502, 503, 504:
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

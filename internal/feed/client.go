package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/reelfeed/reelfeed/internal/config"
	"github.com/reelfeed/reelfeed/internal/debuglog"
	"github.com/reelfeed/reelfeed/internal/storage"
)

// Client is the typed wrapper around the feed API. Transient upstream
// failures (502/503/504, transport errors, timeouts) are retried with
// linearly increasing backoff; everything else fails immediately with a
// classified *Error.
type Client struct {
	baseURL   string
	userAgent string
	attempts  int // extra tries after the first attempt
	backoff   time.Duration
	http      *http.Client
}

// retriableStatus holds the only statuses worth another attempt.
var retriableStatus = map[int]bool{
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

func NewClient(cfg *config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.API.BaseURL, "/"),
		userAgent: cfg.API.UserAgent,
		attempts:  cfg.API.RetryAttempts,
		backoff:   cfg.API.RetryBackoff,
		http:      httpClient,
	}
}

// FetchFeedPage requests one page of the named tab. Both since and
// cursor are forwarded when present; older servers only understand the
// date boundary, newer ones only the opaque cursor.
func (c *Client) FetchFeedPage(ctx context.Context, tab string, since *time.Time, cursor string, limit int) (*storage.FeedPage, error) {
	q := make(url.Values)
	q.Set("tab", NormalizeTab(tab))
	q.Set("limit", strconv.Itoa(limit))
	if since != nil {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	body, err := c.get(ctx, "fetch feed page", "/v1/feed?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var page storage.FeedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &Error{Kind: KindMalformed, Op: "fetch feed page", Err: fmt.Errorf("decode feed page: %w", err)}
	}
	return &page, nil
}

// SearchStories runs a passthrough server-side search.
func (c *Client) SearchStories(ctx context.Context, query string, limit int) ([]*storage.Story, error) {
	q := make(url.Values)
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "search stories", "/v1/search?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var page storage.FeedPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &Error{Kind: KindMalformed, Op: "search stories", Err: fmt.Errorf("decode search results: %w", err)}
	}
	return page.Items, nil
}

// FetchStory fetches a single story by id, for deep links that arrive
// before any feed page has populated the index.
func (c *Client) FetchStory(ctx context.Context, id string) (*storage.Story, error) {
	body, err := c.get(ctx, "fetch story", "/v1/story/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var story storage.Story
	if err := json.Unmarshal(body, &story); err != nil {
		return nil, &Error{Kind: KindMalformed, Op: "fetch story", Err: fmt.Errorf("decode story: %w", err)}
	}
	return &story, nil
}

// FetchHealthLength returns the server's approximate total feed size.
// Diagnostics only.
func (c *Client) FetchHealthLength(ctx context.Context) (int, error) {
	body, err := c.get(ctx, "fetch health", "/health")
	if err != nil {
		return 0, err
	}

	var health struct {
		FeedLen int `json:"feed_len"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return 0, &Error{Kind: KindMalformed, Op: "fetch health", Err: fmt.Errorf("decode health: %w", err)}
	}
	return health.FeedLen, nil
}

// get runs one request through the retry loop and returns the response
// body of the first 2xx.
func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	total := c.attempts + 1
	var lastErr *Error

	for attempt := 1; attempt <= total; attempt++ {
		if attempt > 1 {
			delay := c.backoff * time.Duration(attempt-1)
			debuglog.Debugf("%s: attempt %d/%d after %v (%v)", op, attempt, total, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &Error{Kind: KindTransport, Op: op, Err: ctx.Err()}
			}
		}

		body, status, err := c.once(ctx, path)
		if err != nil {
			kind := KindTransport
			if isTimeout(err) {
				kind = KindTimeout
			}
			lastErr = &Error{Kind: kind, Op: op, Err: err}
			continue
		}

		switch {
		case status >= 200 && status < 300:
			return body, nil
		case retriableStatus[status]:
			lastErr = &Error{Kind: KindServer, Status: status, Op: op, Err: fmt.Errorf("upstream returned %d", status)}
			continue
		case status == http.StatusTooManyRequests:
			return nil, &Error{Kind: KindRateLimited, Status: status, Op: op, Err: errors.New("rate limited")}
		default:
			return nil, &Error{Kind: KindServer, Status: status, Op: op, Err: fmt.Errorf("unexpected status %d", status)}
		}
	}

	return nil, lastErr
}

func (c *Client) once(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little for connection reuse, the body is not reported.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

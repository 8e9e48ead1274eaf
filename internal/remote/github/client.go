// Package github fetches the public user listing from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mschirtzinger/userlist/internal/domain"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public GitHub API endpoint.
	DefaultBaseURL = "https://api.github.com"
	// DefaultPerPage is the largest page size /users accepts.
	DefaultPerPage = 100

	defaultTimeout = 30 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
)

// Config configures a Client. Zero values select defaults.
type Config struct {
	BaseURL string
	// Token is sent as a bearer token when set
	Token   string
	PerPage int
	// RequestsPerSecond limits outgoing requests (0 = unlimited)
	RequestsPerSecond float64
	// RetryDelay is the first backoff delay for 5xx retries
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client lists GitHub users page by page.
type Client struct {
	baseURL    string
	token      string
	perPage    int
	retryDelay time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a new GitHub API client.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		perPage:    cfg.PerPage,
		retryDelay: cfg.RetryDelay,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.perPage <= 0 || c.perPage > DefaultPerPage {
		c.perPage = DefaultPerPage
	}
	if c.retryDelay <= 0 {
		c.retryDelay = baseRetryDelay
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// userDTO is the subset of the /users payload we keep.
type userDTO struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Type  string `json:"type"`
}

// FetchUsers returns one page of users with id greater than since (nil =
// from the start). The returned page's Next is taken from the Link header.
func (c *Client) FetchUsers(ctx context.Context, since *int64) (domain.UserPage, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(c.perPage))
	if since != nil {
		query.Set("since", strconv.FormatInt(*since, 10))
	}

	body, header, err := c.doRequest(ctx, http.MethodGet, "/users", query)
	if err != nil {
		return domain.UserPage{}, err
	}

	var dtos []userDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return domain.UserPage{}, &FetchError{URL: c.baseURL + "/users", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	page := domain.UserPage{Users: make([]domain.User, 0, len(dtos))}
	for _, d := range dtos {
		page.Users = append(page.Users, domain.User{ID: d.ID, Login: d.Login})
	}

	next, err := nextSince(header.Get("Link"))
	if err != nil {
		return domain.UserPage{}, &FetchError{URL: c.baseURL + "/users", Err: err}
	}
	page.Next = next

	c.logger.Debug("fetched users page", "since", fmtSince(since), "count", len(page.Users), "has_next", page.HasNext())
	return page, nil
}

// doRequest performs a request, retrying 5xx responses and timed-out
// attempts with exponential backoff. Every attempt waits on the rate limiter
// first.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, http.Header, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var (
		lastStatus int
		lastErr    error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, nil, &FetchError{URL: reqURL, Err: ctx.Err()}
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, &FetchError{URL: reqURL, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
		if err != nil {
			return nil, nil, &FetchError{URL: reqURL, Err: fmt.Errorf("failed to create request: %w", err)}
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, &FetchError{URL: reqURL, Err: ctx.Err()}
			}
			if IsRetryable(err) {
				lastStatus, lastErr = 0, err
				c.logger.Warn("github request timed out, will retry",
					"attempt", attempt,
					"maxRetries", maxRetries,
					"url", reqURL,
					"error", err,
				)
				continue
			}
			c.logger.Error("github request failed", "url", reqURL, "error", err)
			return nil, nil, &FetchError{URL: reqURL, Err: err}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, nil, &FetchError{URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, resp.Header, nil

		case resp.StatusCode == http.StatusUnauthorized:
			return nil, nil, &FetchError{URL: reqURL, StatusCode: resp.StatusCode, Err: ErrUnauthorized}

		case isRateLimited(resp):
			c.logger.Warn("github rate limit exceeded", "reset", resp.Header.Get("X-RateLimit-Reset"))
			return nil, nil, &FetchError{URL: reqURL, StatusCode: resp.StatusCode, Err: ErrRateLimited}

		case resp.StatusCode >= 500:
			lastStatus, lastErr = resp.StatusCode, nil
			c.logger.Warn("github server error, will retry",
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", maxRetries,
				"url", reqURL,
			)
			continue

		default:
			return nil, nil, &FetchError{URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body)))}
		}
	}

	c.logger.Error("github request failed after retries", "url", reqURL, "status", lastStatus, "error", lastErr)
	if lastErr != nil {
		return nil, nil, &FetchError{URL: reqURL, Err: lastErr}
	}
	return nil, nil, &FetchError{URL: reqURL, StatusCode: lastStatus, Err: ErrServerUnavailable}
}

func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0"
}

// nextSince extracts the since parameter of the rel="next" link.
// An empty header means there is no next page.
func nextSince(link string) (*int64, error) {
	if link == "" {
		return nil, nil
	}

	for _, part := range strings.Split(link, ",") {
		segs := strings.Split(strings.TrimSpace(part), ";")
		if len(segs) < 2 {
			return nil, ErrBadLink
		}

		isNext := false
		for _, param := range segs[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				isNext = true
				break
			}
		}
		if !isNext {
			continue
		}

		raw := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(raw, "<") || !strings.HasSuffix(raw, ">") {
			return nil, ErrBadLink
		}
		u, err := url.Parse(raw[1 : len(raw)-1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadLink, err)
		}
		since, err := strconv.ParseInt(u.Query().Get("since"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: since: %v", ErrBadLink, err)
		}
		return &since, nil
	}

	return nil, nil
}

func fmtSince(since *int64) string {
	if since == nil {
		return "start"
	}
	return strconv.FormatInt(*since, 10)
}

// Package search wraps the external judgment search API: authentication,
// per-call timeouts, a shared rate-limit gate, bounded retries with
// exponential backoff, error classification, and mandatory usage logging.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalro/lexwatch/internal/database"
)

// Doc is one search result document on the wire.
type Doc struct {
	TID         int64  `json:"tid"`
	Title       string `json:"title"`
	DocSource   string `json:"docsource"`
	PublishDate string `json:"publishdate"`
	Headline    string `json:"headline"`
	NumCites    int    `json:"numcites"`
	DocSize     int    `json:"docsize"`
}

// Response is a search API page.
type Response struct {
	Docs  []Doc `json:"docs"`
	Found int   `json:"found"`
}

// CallLogger receives one record per call attempt. *database.DB satisfies it.
type CallLogger interface {
	InsertAPICall(c *database.APICall) error
}

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	BaseURL string
	Token   string
	// Timeout bounds each individual HTTP call. Default 30s.
	Timeout time.Duration
	// MaxAttempts is the total call attempts per request, counting the
	// first. Default 3: three consecutive 5xx/timeouts exhaust the budget.
	MaxAttempts int
	// RateLimit is the minimum spacing between calls. Default 2s.
	RateLimit time.Duration
	// BackoffBase is the first retry delay; doubles per retry. Default 2s.
	BackoffBase time.Duration
}

// Client is the search API client. A single Client (and its rate gate) must
// be shared by every concurrent caller.
type Client struct {
	baseURL     string
	token       string
	http        *http.Client
	maxAttempts int
	backoffBase time.Duration
	gate        *rateGate
	logger      CallLogger
}

// New creates a search client logging each call attempt to logger.
func New(cfg Config, logger CallLogger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2 * time.Second
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		token:       cfg.Token,
		http:        &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		gate:        newRateGate(cfg.RateLimit),
		logger:      logger,
	}
}

// Search runs one search page. Callers fetch page 0 first and only page on
// when Found reports more results than returned so far.
func (c *Client) Search(ctx context.Context, formInput string, page int, watchID *int64) (*Response, error) {
	form := url.Values{
		"formInput": {formInput},
		"pagenum":   {fmt.Sprintf("%d", page)},
	}
	var resp Response
	if err := c.request(ctx, "search", "/search/", form, watchID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchDetail retrieves extended metadata for one document.
func (c *Client) FetchDetail(ctx context.Context, docID int64) (map[string]any, error) {
	var meta map[string]any
	path := fmt.Sprintf("/docmeta/%d/", docID)
	if err := c.request(ctx, "docmeta", path, url.Values{}, nil, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// request performs one logical API call: rate-gated attempts with backoff,
// status classification, and one usage-log record per attempt.
func (c *Client) request(ctx context.Context, endpoint, path string, form url.Values, watchID *int64, dest any) error {
	fullURL := c.baseURL + path
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.backoffBase << (attempt - 2)
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		if err := c.gate.wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		status, body, err := c.attempt(ctx, fullURL, form)
		elapsed := time.Since(start).Milliseconds()

		if err != nil {
			// Transport failure: timeouts and network errors are retryable.
			msg := err.Error()
			if isTimeout(err) {
				msg = "Timeout"
				lastErr = ErrTimeout
			} else {
				lastErr = fmt.Errorf("search: request failed: %w", err)
			}
			c.logAttempt(endpoint, fullURL, watchID, nil, nil, elapsed, &msg)
			continue
		}

		switch {
		case status == http.StatusForbidden:
			c.logAttempt(endpoint, fullURL, watchID, &status, nil, elapsed, strPtr("Auth error"))
			return ErrAuth

		case status == http.StatusTooManyRequests:
			c.logAttempt(endpoint, fullURL, watchID, &status, nil, elapsed, strPtr("Rate limited"))
			return ErrRateLimited

		case status >= 400 && status < 500:
			msg := fmt.Sprintf("Client error %d", status)
			c.logAttempt(endpoint, fullURL, watchID, &status, nil, elapsed, &msg)
			return &ClientError{Status: status}

		case status >= 500:
			msg := fmt.Sprintf("Server error %d", status)
			c.logAttempt(endpoint, fullURL, watchID, &status, nil, elapsed, &msg)
			lastErr = &ServerError{Status: status}
			continue
		}

		if err := json.Unmarshal(body, dest); err != nil {
			msg := fmt.Sprintf("JSON parse error: %v", err)
			c.logAttempt(endpoint, fullURL, watchID, &status, nil, elapsed, &msg)
			return fmt.Errorf("search: malformed response: %w", err)
		}

		var count *int
		if r, ok := dest.(*Response); ok {
			n := len(r.Docs)
			count = &n
		}
		c.logAttempt(endpoint, fullURL, watchID, &status, count, elapsed, nil)
		return nil
	}

	return lastErr
}

// attempt performs a single HTTP POST.
func (c *Client) attempt(ctx context.Context, fullURL string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// logAttempt records one call attempt. Failures to log are warned but never
// propagated — losing an audit row must not fail the call itself.
func (c *Client) logAttempt(endpoint, requestURL string, watchID *int64, status, count *int, elapsedMS int64, errMsg *string) {
	if c.logger == nil {
		return
	}
	err := c.logger.InsertAPICall(&database.APICall{
		Endpoint:       endpoint,
		RequestURL:     requestURL,
		WatchID:        watchID,
		HTTPStatus:     status,
		ResultCount:    count,
		ResponseTimeMS: elapsedMS,
		ErrorMessage:   errMsg,
	})
	if err != nil {
		log.Printf("failed to log API call: %v", err)
	}
}

func strPtr(s string) *string { return &s }

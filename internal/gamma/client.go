// Package gamma reads events from the Polymarket gamma API.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client handles communication with the gamma API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

// NewClient creates a client that issues at most rps requests per second.
func NewClient(baseURL string, rps float64, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// ListParams selects a page of events.
type ListParams struct {
	Limit  int
	Offset int
	// ActiveOnly restricts the listing to open events.
	ActiveOnly bool
}

// ListEvents fetches one page of events ordered by volume, largest first.
func (c *Client) ListEvents(ctx context.Context, p ListParams) ([]Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/events")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset))
	q.Set("order", "volume")
	q.Set("ascending", "false")
	if p.ActiveOnly {
		q.Set("active", "true")
		q.Set("closed", "false")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return events, nil
}

// ActiveEvents pages through open events until a short page or maxPages.
func (c *Client) ActiveEvents(ctx context.Context, pageSize, maxPages int) ([]Event, error) {
	var all []Event
	for page := 0; page < maxPages; page++ {
		events, err := c.ListEvents(ctx, ListParams{
			Limit:      pageSize,
			Offset:     page * pageSize,
			ActiveOnly: true,
		})
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		c.logger.Debugw("Fetched gamma events page", "page", page, "count", len(events))
		all = append(all, events...)

		if len(events) < pageSize {
			break
		}
	}
	return all, nil
}

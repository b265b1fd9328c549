// Package client is a Go client for the polyscreen HTTP API, plus Session,
// which holds a fetched collection together with its table view state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/polyscreen/polyscreen-backend/internal/markets"
	"github.com/polyscreen/polyscreen-backend/internal/models"
	"github.com/polyscreen/polyscreen-backend/internal/views"
)

var (
	// ErrUnexpectedPayload is returned when the API answers with a
	// non-success envelope or with data of the wrong shape.
	ErrUnexpectedPayload = errors.New("unexpected payload")
	// ErrStaleResponse is returned by Session.Refresh when a newer refresh
	// was issued before this one completed. The response is discarded.
	ErrStaleResponse = errors.New("stale response")
)

const defaultTimeout = 15 * time.Second

// envelope mirrors the API response wrapper. Data is decoded lazily so its
// shape can be checked.
type envelope struct {
	Success    bool            `json:"success"`
	Count      *int            `json:"count"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages *int            `json:"totalPages"`
}

// Collection is one decoded /api/events or /api/markets response.
type Collection[T any] struct {
	Items []T
	// Count is the size of the filtered collection on the server.
	Count      int
	Page       int
	PageSize   int
	TotalPages int
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// New returns a client for the API at baseURL. A nil httpClient gets a
// default one with a 15s timeout.
func New(baseURL string, httpClient *http.Client, logger *zap.SugaredLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Events fetches /api/events with q encoded as query parameters.
func (c *Client) Events(ctx context.Context, q views.Query) (Collection[models.Event], error) {
	return fetchCollection[models.Event](ctx, c, "/api/events", q.Values())
}

// Markets fetches /api/markets with q encoded as query parameters.
func (c *Client) Markets(ctx context.Context, q views.Query) (Collection[models.Market], error) {
	return fetchCollection[models.Market](ctx, c, "/api/markets", q.Values())
}

func (c *Client) Dashboard(ctx context.Context) (markets.Dashboard, error) {
	var d markets.Dashboard
	env, err := c.get(ctx, "/api/dashboard", nil)
	if err != nil {
		return d, err
	}
	if !bytes.HasPrefix(bytes.TrimSpace(env.Data), []byte("{")) {
		return d, fmt.Errorf("%w: dashboard data is not an object", ErrUnexpectedPayload)
	}
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return d, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}
	return d, nil
}

func (c *Client) Categories(ctx context.Context) ([]markets.CategoryCount, error) {
	env, err := c.get(ctx, "/api/categories", nil)
	if err != nil {
		return nil, err
	}
	return decodeArray[markets.CategoryCount](env.Data)
}

func fetchCollection[T any](ctx context.Context, c *Client, path string, params url.Values) (Collection[T], error) {
	env, err := c.get(ctx, path, params)
	if err != nil {
		return Collection[T]{}, err
	}
	items, err := decodeArray[T](env.Data)
	if err != nil {
		return Collection[T]{}, err
	}

	out := Collection[T]{
		Items:    items,
		Count:    len(items),
		Page:     env.Page,
		PageSize: env.PageSize,
	}
	if env.Count != nil {
		out.Count = *env.Count
	}
	if env.TotalPages != nil {
		out.TotalPages = *env.TotalPages
	}
	return out, nil
}

func decodeArray[T any](raw json.RawMessage) ([]T, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return nil, fmt.Errorf("%w: data is not an array", ErrUnexpectedPayload)
	}
	items := []T{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}
	return items, nil
}

// StatusError is a non-200 answer from the API.
type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("GET %s: status %d: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("GET %s: status %d", e.Path, e.Code)
}

// get performs the request and unwraps the envelope. A 200 whose envelope
// is not a success is an ErrUnexpectedPayload.
func (c *Client) get(ctx context.Context, path string, params url.Values) (envelope, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return envelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return envelope{}, fmt.Errorf("read %s: %w", path, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if resp.StatusCode != http.StatusOK {
		se := &StatusError{Path: path, Code: resp.StatusCode}
		if decodeErr == nil {
			se.Message = env.Message
		}
		return envelope{}, se
	}
	if decodeErr != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrUnexpectedPayload, decodeErr)
	}
	if !env.Success {
		c.logger.Debugw("API returned failure envelope", "path", path, "message", env.Message)
		return envelope{}, fmt.Errorf("%w: %s", ErrUnexpectedPayload, env.Message)
	}
	return env, nil
}

package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polyscreen/polyscreen-backend/internal/models"
	"github.com/polyscreen/polyscreen-backend/internal/views"
)

// ErrorPolicy decides what a failed refresh does to the held collection.
type ErrorPolicy int

const (
	// RetainOnError keeps the previously fetched collection.
	RetainOnError ErrorPolicy = iota
	// ClearOnError drops it.
	ClearOnError
)

type SessionOptions struct {
	Policy   ErrorPolicy
	PageSize int
	Now      func() time.Time
	Logger   *zap.SugaredLogger
}

// session is the collection-agnostic core shared by EventSession and
// MarketSession. Every refresh is numbered; only the newest one may apply
// its result.
type session[T any] struct {
	fetch   func(context.Context, views.Query) ([]T, error)
	project func(views.State, []T, time.Time) views.Page[T]
	policy  ErrorPolicy
	now     func() time.Time
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	items   []T
	loaded  bool
	state   views.State
	lastErr error
}

func newSession[T any](
	fetch func(context.Context, views.Query) ([]T, error),
	project func(views.State, []T, time.Time) views.Page[T],
	opts SessionOptions,
) *session[T] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &session[T]{
		fetch:   fetch,
		project: project,
		policy:  opts.Policy,
		now:     now,
		logger:  logger,
		items:   []T{},
		state:   views.NewState(opts.PageSize),
	}
}

// Refresh fetches the collection for the current filter criteria. Starting
// a refresh cancels the one in flight; a refresh overtaken by a newer one
// returns ErrStaleResponse and changes nothing.
//
// A payload of the wrong shape is applied as an empty collection and
// reported as ErrUnexpectedPayload. Other failures follow the error policy,
// except that a failed first load always leaves the collection empty.
func (s *session[T]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	if s.cancel != nil {
		s.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	q := views.Query{Criteria: s.state.Criteria}
	s.mu.Unlock()

	items, err := s.fetch(fetchCtx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		cancel()
		return ErrStaleResponse
	}
	cancel()
	s.cancel = nil
	s.lastErr = err

	switch {
	case err == nil:
		s.replace(items)
		return nil
	case errors.Is(err, ErrUnexpectedPayload):
		s.logger.Warnw("Discarding unexpected payload", "error", err)
		s.replace(nil)
		return err
	default:
		s.logger.Warnw("Refresh failed", "error", err, "retain", s.loaded && s.policy == RetainOnError)
		if !s.loaded || s.policy == ClearOnError {
			s.replace(nil)
			s.loaded = false
		}
		return err
	}
}

func (s *session[T]) replace(items []T) {
	if items == nil {
		items = []T{}
	}
	s.items = items
	s.loaded = true
	s.state = views.Reduce(s.state, views.CollectionReplaced{})
}

// Dispatch applies a table interaction. Filter changes take effect on the
// held collection immediately; call Refresh to re-fetch with them.
func (s *session[T]) Dispatch(a views.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = views.Reduce(s.state, a)
}

// View is the current window: filter, sort, then paginate.
func (s *session[T]) View() views.Page[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project(s.state, s.items, s.now())
}

func (s *session[T]) State() views.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Items returns the held collection, unfiltered.
func (s *session[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

// Err is the outcome of the last applied refresh.
func (s *session[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

type EventSession struct {
	*session[models.Event]
}

func NewEventSession(c *Client, opts SessionOptions) *EventSession {
	fetch := func(ctx context.Context, q views.Query) ([]models.Event, error) {
		col, err := c.Events(ctx, q)
		return col.Items, err
	}
	return &EventSession{newSession(fetch, views.State.Events, opts)}
}

// Dashboard ranks the held events.
func (s *EventSession) Dashboard() views.Dashboard {
	return views.BuildDashboard(s.Items())
}

type MarketSession struct {
	*session[models.Market]
}

func NewMarketSession(c *Client, opts SessionOptions) *MarketSession {
	fetch := func(ctx context.Context, q views.Query) ([]models.Market, error) {
		col, err := c.Markets(ctx, q)
		return col.Items, err
	}
	return &MarketSession{newSession(fetch, views.State.Markets, opts)}
}

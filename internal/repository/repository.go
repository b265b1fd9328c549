package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/polyscreen/polyscreen-backend/internal/db"
	"github.com/polyscreen/polyscreen-backend/internal/metrics"
	"github.com/polyscreen/polyscreen-backend/internal/models"
)

type Repository struct {
	db      *sql.DB
	driver  string
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewRepository(conn *sql.DB, driver string, logger *zap.SugaredLogger, m *metrics.Metrics) *Repository {
	return &Repository{
		db:      conn,
		driver:  driver,
		logger:  logger,
		metrics: m,
	}
}

const eventColumns = `event_id, slug, title, description, end_date, image, new, featured, neg_risk,
	liquidity, volume, volume24hr, categories, fetch_date`

const marketColumns = `market_id, event_id, slug, question, group_item_title, new, featured, neg_risk,
	end_date, liquidity, volume, volume24hr, volume1mo, outcome_yes_price, outcome_no_price,
	one_day_price_change, image, fetch_date`

func (r *Repository) observe(ctx context.Context, table string, start time.Time, err error) {
	if r.metrics != nil {
		r.metrics.RecordDatastoreQuery(ctx, table, time.Since(start), err)
	}
}

// Ping checks datastore connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListEvents returns every event ordered by volume descending, each carrying
// its markets (also by volume descending). Events and markets are read in
// parallel and joined in memory on event_id.
func (r *Repository) ListEvents(ctx context.Context) ([]models.Event, error) {
	var (
		events  []models.Event
		markets []models.Market
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = r.queryEvents(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		markets, err = r.ListMarkets(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byEvent := make(map[string][]models.Market, len(events))
	for _, m := range markets {
		byEvent[m.EventID] = append(byEvent[m.EventID], m)
	}
	for i := range events {
		if ms, ok := byEvent[events[i].EventID]; ok {
			events[i].Markets = ms
		} else {
			events[i].Markets = []models.Market{}
		}
	}

	return events, nil
}

func (r *Repository) queryEvents(ctx context.Context) (events []models.Event, err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "events", start, err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY volume DESC, event_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events = []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// ListMarkets returns every market ordered by volume descending.
func (r *Repository) ListMarkets(ctx context.Context) (markets []models.Market, err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "markets", start, err) }()

	rows, err := r.db.QueryContext(ctx, `SELECT `+marketColumns+` FROM markets ORDER BY volume DESC, market_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	markets = []models.Market{}
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate markets: %w", err)
	}
	return markets, nil
}

func scanEvent(rows *sql.Rows) (models.Event, error) {
	var (
		e          models.Event
		endDate    sql.NullTime
		featured   sql.NullBool
		negRisk    sql.NullBool
		categories string
	)

	err := rows.Scan(
		&e.EventID, &e.Slug, &e.Title, &e.Description, &endDate, &e.Image, &e.New,
		&featured, &negRisk, &e.Liquidity, &e.Volume, &e.Volume24hr, &categories, &e.FetchDate,
	)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to scan event: %w", err)
	}

	e.EndDate = timePtr(endDate)
	e.Featured = boolPtr(featured)
	e.NegRisk = boolPtr(negRisk)

	e.Categories = []string{}
	if categories != "" {
		if err := json.Unmarshal([]byte(categories), &e.Categories); err != nil {
			return models.Event{}, fmt.Errorf("failed to unmarshal categories of event %s: %w", e.EventID, err)
		}
	}
	return e, nil
}

func scanMarket(rows *sql.Rows) (models.Market, error) {
	var (
		m           models.Market
		featured    sql.NullBool
		negRisk     sql.NullBool
		endDate     sql.NullTime
		volume1mo   sql.NullFloat64
		priceChange sql.NullFloat64
	)

	err := rows.Scan(
		&m.MarketID, &m.EventID, &m.Slug, &m.Question, &m.GroupItemTitle, &m.New,
		&featured, &negRisk, &endDate, &m.Liquidity, &m.Volume, &m.Volume24hr, &volume1mo,
		&m.OutcomeYesPrice, &m.OutcomeNoPrice, &priceChange, &m.Image, &m.FetchDate,
	)
	if err != nil {
		return models.Market{}, fmt.Errorf("failed to scan market: %w", err)
	}

	m.Featured = boolPtr(featured)
	m.NegRisk = boolPtr(negRisk)
	m.EndDate = timePtr(endDate)
	m.Volume1mo = floatPtr(volume1mo)
	m.OneDayPriceChange = floatPtr(priceChange)
	return m, nil
}

// UpsertEvents stores events and their markets in a single transaction.
// Existing rows are overwritten field by field.
func (r *Repository) UpsertEvents(ctx context.Context, events []models.Event) (err error) {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { r.observe(ctx, "upsert", start, err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventStmt, err := tx.PrepareContext(ctx, db.Rebind(r.driver, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO UPDATE SET
			slug = excluded.slug,
			title = excluded.title,
			description = excluded.description,
			end_date = excluded.end_date,
			image = excluded.image,
			new = excluded.new,
			featured = excluded.featured,
			neg_risk = excluded.neg_risk,
			liquidity = excluded.liquidity,
			volume = excluded.volume,
			volume24hr = excluded.volume24hr,
			categories = excluded.categories,
			fetch_date = excluded.fetch_date
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare event statement: %w", err)
	}
	defer eventStmt.Close()

	marketStmt, err := tx.PrepareContext(ctx, db.Rebind(r.driver, `
		INSERT INTO markets (`+marketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (market_id) DO UPDATE SET
			event_id = excluded.event_id,
			slug = excluded.slug,
			question = excluded.question,
			group_item_title = excluded.group_item_title,
			new = excluded.new,
			featured = excluded.featured,
			neg_risk = excluded.neg_risk,
			end_date = excluded.end_date,
			liquidity = excluded.liquidity,
			volume = excluded.volume,
			volume24hr = excluded.volume24hr,
			volume1mo = excluded.volume1mo,
			outcome_yes_price = excluded.outcome_yes_price,
			outcome_no_price = excluded.outcome_no_price,
			one_day_price_change = excluded.one_day_price_change,
			image = excluded.image,
			fetch_date = excluded.fetch_date
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare market statement: %w", err)
	}
	defer marketStmt.Close()

	marketCount := 0
	for _, e := range events {
		categories := e.Categories
		if categories == nil {
			categories = []string{}
		}
		categoriesJSON, err := json.Marshal(categories)
		if err != nil {
			return fmt.Errorf("failed to marshal categories: %w", err)
		}

		_, err = eventStmt.ExecContext(ctx,
			e.EventID, e.Slug, e.Title, e.Description, nullTime(e.EndDate), e.Image, e.New,
			nullBool(e.Featured), nullBool(e.NegRisk), e.Liquidity, e.Volume, e.Volume24hr,
			string(categoriesJSON), e.FetchDate.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert event %s: %w", e.EventID, err)
		}

		for _, m := range e.Markets {
			_, err = marketStmt.ExecContext(ctx,
				m.MarketID, m.EventID, m.Slug, m.Question, m.GroupItemTitle, m.New,
				nullBool(m.Featured), nullBool(m.NegRisk), nullTime(m.EndDate), m.Liquidity, m.Volume,
				m.Volume24hr, nullFloat(m.Volume1mo), m.OutcomeYesPrice, m.OutcomeNoPrice,
				nullFloat(m.OneDayPriceChange), m.Image, m.FetchDate.UTC(),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert market %s: %w", m.MarketID, err)
			}
			marketCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debugw("Upserted events", "events", len(events), "markets", marketCount)
	return nil
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

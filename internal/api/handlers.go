package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/polyscreen/polyscreen-backend/internal/markets"
	"github.com/polyscreen/polyscreen-backend/internal/models"
	"github.com/polyscreen/polyscreen-backend/internal/views"
)

// MarketService is what the handlers need from markets.Service.
type MarketService interface {
	Events(ctx context.Context, q views.Query) (markets.Listing[models.Event], error)
	Markets(ctx context.Context, q views.Query) (markets.Listing[models.Market], error)
	Dashboard(ctx context.Context) (markets.Dashboard, error)
	CategoryCounts(ctx context.Context) ([]markets.CategoryCount, error)
	Ready(ctx context.Context) error
}

// RefreshStatus reports the outcome of the last background refresh.
type RefreshStatus interface {
	Status() (lastRun time.Time, lastErr error)
}

type Handler struct {
	svc       MarketService
	ws        http.Handler
	refresher RefreshStatus
	logger    *zap.SugaredLogger
}

// NewHandler wires the handlers. ws serves /api/ws and may be nil.
func NewHandler(svc MarketService, ws http.Handler, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		svc:    svc,
		ws:     ws,
		logger: logger,
	}
}

// WithRefreshStatus makes /readyz report the background refresher.
func (h *Handler) WithRefreshStatus(r RefreshStatus) *Handler {
	h.refresher = r
	return h
}

// ListEvents serves /api/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q, err := views.ParseEventQuery(r.URL.Query())
	if err != nil {
		h.writeParamError(w, r, err)
		return
	}

	listing, err := h.svc.Events(r.Context(), q)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, msgEventsFailed, err)
		return
	}
	writeListing(w, listing)
}

// ListMarkets serves /api/markets.
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q, err := views.ParseMarketQuery(r.URL.Query())
	if err != nil {
		h.writeParamError(w, r, err)
		return
	}

	listing, err := h.svc.Markets(r.Context(), q)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, msgMarketsFailed, err)
		return
	}
	writeListing(w, listing)
}

func writeListing[T any](w http.ResponseWriter, l markets.Listing[T]) {
	items := l.Items
	if items == nil {
		items = []T{}
	}
	count := l.Total

	env := Envelope{Success: true, Count: &count, Data: items}
	if l.Window != nil {
		env.Page = l.Window.Page
		env.PageSize = l.Window.PageSize
		env.TotalPages = &l.Window.TotalPages
	}
	writeJSON(w, http.StatusOK, env)
}

// GetDashboard serves /api/dashboard.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, msgDashboardFailed, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: d})
}

// ListCategories serves /api/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.CategoryCounts(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, msgCategoriesFailed, err)
		return
	}
	n := len(counts)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Count: &n, Data: counts})
}

// Health and ops endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok"})
}

// Readyz pings the datastore and the cache. A failed background refresh
// is reported but does not make the service unready: the previous snapshot
// is still served.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.Ready(ctx); err != nil {
		h.logger.Warnw("Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthDTO{Status: "unavailable", Reason: err.Error()})
		return
	}

	dto := HealthDTO{Status: "ready"}
	if h.refresher != nil {
		lastRun, lastErr := h.refresher.Status()
		if !lastRun.IsZero() {
			dto.LastRefresh = &lastRun
		}
		if lastErr != nil {
			dto.RefreshError = lastErr.Error()
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// HandleWebSocket serves /api/ws.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ws == nil {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{Message: "live feed disabled"})
		return
	}
	h.ws.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeParamError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *views.ParamError
	if !errors.As(err, &pe) {
		h.writeError(w, r, http.StatusBadRequest, "invalid query", err)
		return
	}
	h.logger.Debugw("Rejected query parameter",
		"request_id", middleware.GetReqID(r.Context()),
		"param", pe.Name,
		"error", pe.Err,
	)
	writeJSON(w, http.StatusBadRequest, Envelope{Message: pe.Error()})
}

// writeError logs err with the request id and responds with a generic
// message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	h.logger.Errorw("API error",
		"request_id", middleware.GetReqID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"message", message,
		"error", err,
	)
	writeJSON(w, status, Envelope{Message: message})
}

package api

import "time"

// Envelope wraps every JSON response. Count is set on collection responses;
// the paging fields only when a page was requested.
type Envelope struct {
	Success    bool   `json:"success"`
	Count      *int   `json:"count,omitempty"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"pageSize,omitempty"`
	TotalPages *int   `json:"totalPages,omitempty"`
}

type HealthDTO struct {
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	LastRefresh  *time.Time `json:"lastRefresh,omitempty"`
	RefreshError string     `json:"refreshError,omitempty"`
}

// Generic messages returned on failure. Details are logged, not returned.
const (
	msgEventsFailed     = "Failed to fetch events"
	msgMarketsFailed    = "Failed to fetch markets"
	msgDashboardFailed  = "Failed to build dashboard"
	msgCategoriesFailed = "Failed to fetch categories"
)

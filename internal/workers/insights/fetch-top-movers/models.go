// internal/workers/insights/fetch-top-movers/models.go
package fetchtopmovers

import (
	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/dashboard"
	"influence-dashboard/internal/insights/ranking"
	"influence-dashboard/internal/models"
)

// Input fields left empty fall back to the dashboard defaults.
type Input struct {
	Subcategory   *string       `json:"subcategory,omitempty"`
	Metric        string        `json:"metric,omitempty"`
	Order         ranking.Order `json:"order,omitempty"`
	Limit         int           `json:"limit,omitempty"`
	IncludeAlerts bool          `json:"includeAlerts,omitempty"`
}

// Output reports each list with its own status. When alerts are requested a
// failure of one list is recorded here and the other is still returned.
type Output struct {
	TopMovers      []models.EntitySnapshot  `json:"topMovers"`
	TopMoversError *apperrors.StandardError `json:"topMoversError,omitempty"`
	Status         string                   `json:"status"`
	Alerts         []dashboard.Alert        `json:"alerts,omitempty"`
	AlertsStatus   string                   `json:"alertsStatus,omitempty"`
	AlertsError    *apperrors.StandardError `json:"alertsError,omitempty"`
}

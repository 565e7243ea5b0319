// internal/workers/insights/rank-entities/models.go
package rankentities

import (
	"influence-dashboard/internal/insights/ranking"
	"influence-dashboard/internal/models"
)

// Input accepts entities in any response shape the analytics API produces.
type Input struct {
	Entities    interface{}   `json:"entities"`
	Subcategory *string       `json:"subcategory,omitempty"`
	SortMetric  string        `json:"sortMetric"`
	SortOrder   ranking.Order `json:"sortOrder"`
	Limit       int           `json:"limit"`
}

type Output struct {
	RankedEntities []models.EntitySnapshot `json:"rankedEntities"`
	Count          int                     `json:"count"`
	Status         string                  `json:"status"`
}

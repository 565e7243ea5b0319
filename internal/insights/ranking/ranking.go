// Package ranking filters and orders entity collections for the top movers
// and narrative alert lists.
package ranking

import (
	"errors"
	"fmt"
	"sort"

	"influence-dashboard/internal/models"
)

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

var (
	ErrInvalidLimit  = errors.New("INVALID_LIMIT")
	ErrInvalidOrder  = errors.New("INVALID_SORT_ORDER")
	ErrMissingMetric = errors.New("MISSING_SORT_METRIC")
)

// Request selects which entities to rank and how. A nil Subcategory applies
// no subcategory filter.
type Request struct {
	Subcategory *string `json:"subcategory,omitempty"`
	SortMetric  string  `json:"sortMetric"`
	SortOrder   Order   `json:"sortOrder"`
	Limit       int     `json:"limit"`
}

func (r Request) Validate() error {
	if r.SortMetric == "" {
		return ErrMissingMetric
	}
	if r.SortOrder != OrderAsc && r.SortOrder != OrderDesc {
		return fmt.Errorf("%w: %q", ErrInvalidOrder, r.SortOrder)
	}
	if r.Limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, r.Limit)
	}
	return nil
}

type ranked struct {
	entity models.EntitySnapshot
	value  float64
}

// Rank drops entities without data for the sort metric or outside the
// requested subcategory, sorts the rest stably by that metric and returns at
// most Limit of them. The input slice is never modified.
func Rank(entities []models.EntitySnapshot, req Request) []models.EntitySnapshot {
	if req.Limit <= 0 {
		return []models.EntitySnapshot{}
	}

	eligible := make([]ranked, 0, len(entities))
	for _, e := range entities {
		if req.Subcategory != nil && e.Subcategory != *req.Subcategory {
			continue
		}
		v, ok := e.Metric(req.SortMetric)
		if !ok {
			continue
		}
		eligible = append(eligible, ranked{entity: e, value: v})
	}

	ascending := req.SortOrder == OrderAsc
	sort.SliceStable(eligible, func(i, j int) bool {
		if ascending {
			return eligible[i].value < eligible[j].value
		}
		return eligible[i].value > eligible[j].value
	})

	if len(eligible) > req.Limit {
		eligible = eligible[:req.Limit]
	}

	out := make([]models.EntitySnapshot, len(eligible))
	for i, r := range eligible {
		out[i] = r.entity
	}
	return out
}

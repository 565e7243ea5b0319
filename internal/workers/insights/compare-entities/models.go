// internal/workers/insights/compare-entities/models.go
package compareentities

import "influence-dashboard/internal/insights/comparison"

// Input carries two entity records as returned by the analytics API.
// HigherIsBetter defaults to true when omitted.
type Input struct {
	EntityA        map[string]interface{} `json:"entityA"`
	EntityB        map[string]interface{} `json:"entityB"`
	Metric         string                 `json:"metric,omitempty"`
	HigherIsBetter *bool                  `json:"higherIsBetter,omitempty"`
}

type Output struct {
	Comparison comparison.Result `json:"comparison"`
	Winner     string            `json:"winner"`
	HasData    bool              `json:"hasData"`
}

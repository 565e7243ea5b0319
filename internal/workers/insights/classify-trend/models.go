// internal/workers/insights/classify-trend/models.go
package classifytrend

import "influence-dashboard/internal/insights/trend"

type Input struct {
	Entity   string  `json:"entity"`
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
}

type Output struct {
	Trend         trend.Record  `json:"trend"`
	Urgency       trend.Urgency `json:"urgency"`
	ChangeDisplay string        `json:"changeDisplay"`
	Narrative     string        `json:"narrative"`
}

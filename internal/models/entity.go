// internal/models/entity.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Documented metric names. The set is open: normalized snapshots keep any
// other metric key the API returns.
const (
	MetricHypeScore      = "hype_score"
	MetricRodmnScore     = "rodmn_score"
	MetricMentions       = "mentions"
	MetricTalkTime       = "talk_time"
	MetricSentiment      = "sentiment"
	MetricWikipediaViews = "wikipedia_views"
	MetricRedditMentions = "reddit_mentions"
	MetricGoogleTrends   = "google_trends"
)

// MetricInfo describes how a metric is labelled and compared.
type MetricInfo struct {
	Name           string `json:"name"`
	Label          string `json:"label"`
	HigherIsBetter bool   `json:"higherIsBetter"`
}

var metricCatalog = map[string]MetricInfo{
	MetricHypeScore:      {Name: MetricHypeScore, Label: "JORDN Score", HigherIsBetter: true},
	MetricRodmnScore:     {Name: MetricRodmnScore, Label: "RODMN Score", HigherIsBetter: true},
	MetricMentions:       {Name: MetricMentions, Label: "Mentions", HigherIsBetter: true},
	MetricTalkTime:       {Name: MetricTalkTime, Label: "Talk Time", HigherIsBetter: true},
	MetricSentiment:      {Name: MetricSentiment, Label: "Sentiment", HigherIsBetter: true},
	MetricWikipediaViews: {Name: MetricWikipediaViews, Label: "Wikipedia Views", HigherIsBetter: true},
	MetricRedditMentions: {Name: MetricRedditMentions, Label: "Reddit Mentions", HigherIsBetter: true},
	MetricGoogleTrends:   {Name: MetricGoogleTrends, Label: "Google Trends", HigherIsBetter: true},
}

// LookupMetric returns the catalog entry for name. Unknown metrics are
// labelled with their raw name and treated as higher-is-better.
func LookupMetric(name string) MetricInfo {
	if info, ok := metricCatalog[name]; ok {
		return info
	}
	return MetricInfo{Name: name, Label: name, HigherIsBetter: true}
}

// MetricValue is a metric reading that may be a number, a numeric series
// (sentiment) or no data at all. The zero value means no data.
type MetricValue struct {
	scalar   *float64
	series   []float64
	isSeries bool
}

// Number returns a scalar metric value.
func Number(v float64) MetricValue {
	return MetricValue{scalar: &v}
}

// Series returns a series metric value. An empty series carries no data.
func Series(points ...float64) MetricValue {
	cp := make([]float64, len(points))
	copy(cp, points)
	return MetricValue{series: cp, isSeries: true}
}

// Null returns a value carrying no data.
func Null() MetricValue {
	return MetricValue{}
}

// Value returns the numeric reading and whether there is one. Series values
// read as the mean of their points.
func (m MetricValue) Value() (float64, bool) {
	if m.isSeries {
		if len(m.series) == 0 {
			return 0, false
		}
		sum := 0.0
		for _, p := range m.series {
			sum += p
		}
		return sum / float64(len(m.series)), true
	}
	if m.scalar == nil {
		return 0, false
	}
	return *m.scalar, true
}

// HasData reports whether Value would succeed.
func (m MetricValue) HasData() bool {
	_, ok := m.Value()
	return ok
}

// ValueOrZero is for comparison and display only; filtering must use Value.
func (m MetricValue) ValueOrZero() float64 {
	v, _ := m.Value()
	return v
}

func (m MetricValue) IsSeries() bool {
	return m.isSeries
}

// Points returns a copy of the series points, or nil for scalar values.
func (m MetricValue) Points() []float64 {
	if !m.isSeries {
		return nil
	}
	cp := make([]float64, len(m.series))
	copy(cp, m.series)
	return cp
}

func (m MetricValue) MarshalJSON() ([]byte, error) {
	if m.isSeries {
		if m.series == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(m.series)
	}
	if m.scalar == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*m.scalar)
}

func (m *MetricValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*m = Null()
	case len(trimmed) > 0 && trimmed[0] == '[':
		var points []float64
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return fmt.Errorf("metric series: %w", err)
		}
		*m = Series(points...)
	default:
		var v float64
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return fmt.Errorf("metric value: %w", err)
		}
		*m = Number(v)
	}
	return nil
}

// EntitySnapshot is one entity's metrics at a point in time. Name is the join
// key across endpoints.
type EntitySnapshot struct {
	Name        string                 `json:"name"`
	Category    string                 `json:"category,omitempty"`
	Subcategory string                 `json:"subcategory,omitempty"`
	Metrics     map[string]MetricValue `json:"metrics"`
}

// Metric returns the reading for name; absent and null both report false.
func (e EntitySnapshot) Metric(name string) (float64, bool) {
	if e.Metrics == nil {
		return 0, false
	}
	return e.Metrics[name].Value()
}

// HistoryPoint is one dated reading from a history endpoint.
type HistoryPoint struct {
	Date  string      `json:"date"`
	Value MetricValue `json:"value"`
}

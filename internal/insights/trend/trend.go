// Package trend classifies period-over-period metric movement into severity
// bands.
package trend

import (
	"fmt"

	"influence-dashboard/internal/models"
)

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyElevated Urgency = "elevated"
	UrgencyNormal   Urgency = "normal"
	UrgencyLow      Urgency = "low"
)

// Band is one row of the severity table. A nil Above matches everything.
type Band struct {
	Name    string   `json:"name"`
	Above   *float64 `json:"above"`
	Color   string   `json:"color"`
	Urgency Urgency  `json:"urgency"`
	Phrase  string   `json:"phrase"`
}

func (b Band) matches(pct float64) bool {
	return b.Above == nil || pct > *b.Above
}

func above(v float64) *float64 { return &v }

// bands is evaluated top-down and the first match wins. Each band's range is
// a superset of the ones before it, so order is significant.
var bands = []Band{
	{Name: "surging", Above: above(20), Color: "#dc2626", Urgency: UrgencyCritical, Phrase: "breaking out well above its recent baseline"},
	{Name: "rising", Above: above(10), Color: "#ea580c", Urgency: UrgencyHigh, Phrase: "building strong momentum across coverage"},
	{Name: "climbing", Above: above(5), Color: "#ca8a04", Urgency: UrgencyElevated, Phrase: "trending upward and worth watching"},
	{Name: "steady", Above: above(0), Color: "#16a34a", Urgency: UrgencyNormal, Phrase: "holding slightly above the previous period"},
	{Name: "cooling", Above: above(-10), Color: "#2563eb", Urgency: UrgencyLow, Phrase: "easing off from the previous period"},
	{Name: "fading", Color: "#6b7280", Urgency: UrgencyLow, Phrase: "losing share of the conversation"},
}

// Bands returns a copy of the severity table in evaluation order.
func Bands() []Band {
	out := make([]Band, len(bands))
	for i, b := range bands {
		out[i] = b
		if b.Above != nil {
			out[i].Above = above(*b.Above)
		}
	}
	return out
}

// BandFor returns the first band matching pct.
func BandFor(pct float64) Band {
	for _, b := range bands {
		if b.matches(pct) {
			return b
		}
	}
	return bands[len(bands)-1]
}

// Record is one classified (current, previous) pair.
type Record struct {
	Current       float64   `json:"current"`
	Previous      float64   `json:"previous"`
	PercentChange float64   `json:"percentChange"`
	Direction     Direction `json:"direction"`
	Band          Band      `json:"band"`
	// HasBaseline is false when previous was 0 and PercentChange is the
	// fixed fallback rather than a real ratio.
	HasBaseline bool `json:"hasBaseline"`
}

// Classify computes the percent change from previous to current. A zero
// previous value yields 0 when current is also 0 and ±100 otherwise.
func Classify(current, previous float64) Record {
	rec := Record{Current: current, Previous: previous, HasBaseline: previous != 0}

	switch {
	case previous != 0:
		rec.PercentChange = (current - previous) / previous * 100
	case current > 0:
		rec.PercentChange = 100
	case current < 0:
		rec.PercentChange = -100
	}

	rec.Direction = DirectionDown
	if rec.PercentChange > 0 {
		rec.Direction = DirectionUp
	}
	rec.Band = BandFor(rec.PercentChange)
	return rec
}

// ChangeDisplay renders the percent change like "+16.15%".
func (r Record) ChangeDisplay() string {
	return models.FormatSigned(r.PercentChange) + "%"
}

// Narrative is the one-line business context shown on an alert card.
func (r Record) Narrative(entity string) string {
	return fmt.Sprintf("%s is %s (%s)", entity, r.Band.Phrase, r.ChangeDisplay())
}

// FromHistory classifies the last two points that carry data. It reports
// false when fewer than two such points exist.
func FromHistory(points []models.HistoryPoint) (Record, bool) {
	var values []float64
	for i := len(points) - 1; i >= 0 && len(values) < 2; i-- {
		if v, ok := points[i].Value.Value(); ok {
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return Record{}, false
	}
	return Classify(values[0], values[1]), true
}

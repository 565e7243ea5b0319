package analytics

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"influence-dashboard/internal/models"
)

// shapeMatcher pulls the entity list out of one known response shape.
type shapeMatcher struct {
	name    string
	extract func(payload interface{}) ([]interface{}, bool)
}

// entityShapes is tried in order; the first match wins.
var entityShapes = []shapeMatcher{
	{name: "array", extract: asArray},
	{name: "data", extract: arrayField("data")},
	{name: "items", extract: arrayField("items")},
	{name: "results", extract: arrayField("results")},
}

// historyShapes additionally accepts {history: [...]}.
var historyShapes = append(append([]shapeMatcher{}, entityShapes...), shapeMatcher{name: "history", extract: arrayField("history")})

// reservedKeys are record fields that are never metrics.
var reservedKeys = map[string]bool{
	"id":          true,
	"name":        true,
	"category":    true,
	"subcategory": true,
	"metrics":     true,
}

func asArray(payload interface{}) ([]interface{}, bool) {
	arr, ok := payload.([]interface{})
	return arr, ok
}

func arrayField(key string) func(interface{}) ([]interface{}, bool) {
	return func(payload interface{}) ([]interface{}, bool) {
		obj, ok := payload.(map[string]interface{})
		if !ok {
			return nil, false
		}
		arr, ok := obj[key].([]interface{})
		return arr, ok
	}
}

func extract(payload interface{}, shapes []shapeMatcher) ([]interface{}, string) {
	payload = unwrapEnvelope(payload)
	for _, shape := range shapes {
		if records, ok := shape.extract(payload); ok {
			return records, shape.name
		}
	}
	return nil, ""
}

// Normalize turns any supported entity-list payload into snapshots, keeping
// the API's order. Unrecognised payloads yield an empty, non-nil slice.
func Normalize(raw RawPayload) []models.EntitySnapshot {
	records, _ := extract(raw, entityShapes)
	out := make([]models.EntitySnapshot, 0, len(records))
	for _, r := range records {
		obj, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		if snap, ok := normalizeRecord(obj); ok {
			out = append(out, snap)
		}
	}
	return out
}

func normalizeRecord(rec map[string]interface{}) (models.EntitySnapshot, bool) {
	name, _ := rec["name"].(string)
	if name == "" {
		return models.EntitySnapshot{}, false
	}

	snap := models.EntitySnapshot{
		Name:    name,
		Metrics: make(map[string]models.MetricValue),
	}
	snap.Category, _ = rec["category"].(string)
	snap.Subcategory, _ = rec["subcategory"].(string)

	if nested, ok := rec["metrics"].(map[string]interface{}); ok {
		for k, v := range nested {
			if mv, ok := toMetricValue(v, true); ok {
				snap.Metrics[k] = mv
			}
		}
	}

	// Top-level readings win over nested ones, but a top-level null never
	// erases nested data.
	for k, v := range rec {
		if reservedKeys[k] {
			continue
		}
		mv, ok := toMetricValue(v, false)
		if !ok {
			continue
		}
		if _, exists := snap.Metrics[k]; exists && !mv.HasData() {
			continue
		}
		snap.Metrics[k] = mv
	}

	return snap, true
}

// toMetricValue converts a decoded JSON value. Numeric strings are accepted
// only inside a nested metrics object.
func toMetricValue(v interface{}, allowStrings bool) (models.MetricValue, bool) {
	switch val := v.(type) {
	case nil:
		return models.Null(), true
	case float64:
		return models.Number(val), true
	case int:
		return models.Number(float64(val)), true
	case int64:
		return models.Number(float64(val)), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return models.MetricValue{}, false
		}
		return models.Number(f), true
	case string:
		if !allowStrings {
			return models.MetricValue{}, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return models.MetricValue{}, false
		}
		return models.Number(f), true
	case []interface{}:
		points := make([]float64, 0, len(val))
		for _, p := range val {
			mv, ok := toMetricValue(p, false)
			if !ok {
				return models.MetricValue{}, false
			}
			f, ok := mv.Value()
			if !ok {
				continue
			}
			points = append(points, f)
		}
		return models.Series(points...), true
	case []float64:
		return models.Series(val...), true
	default:
		return models.MetricValue{}, false
	}
}

// NormalizeHistory turns a history payload into points sorted by date.
// Records are read as {date|timestamp, value}.
func NormalizeHistory(raw RawPayload) []models.HistoryPoint {
	records, _ := extract(raw, historyShapes)
	out := make([]models.HistoryPoint, 0, len(records))
	for _, r := range records {
		obj, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		date, _ := obj["date"].(string)
		if date == "" {
			date, _ = obj["timestamp"].(string)
		}
		value, ok := toMetricValue(obj["value"], true)
		if !ok {
			continue
		}
		out = append(out, models.HistoryPoint{Date: date, Value: value})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// Package comparison computes head-to-head metric comparisons between two
// entities.
package comparison

import "influence-dashboard/internal/models"

type Winner string

const (
	WinnerA   Winner = "A"
	WinnerB   Winner = "B"
	WinnerTie Winner = "tie"
)

// Result is derived per request and never stored.
type Result struct {
	Metric               string  `json:"metric"`
	MetricLabel          string  `json:"metricLabel"`
	EntityA              string  `json:"entityA"`
	EntityB              string  `json:"entityB"`
	ValueA               float64 `json:"valueA"`
	ValueB               float64 `json:"valueB"`
	Difference           float64 `json:"difference"`
	PercentageDifference float64 `json:"percentageDifference"`
	Winner               Winner  `json:"winner"`
	DifferenceDisplay    string  `json:"differenceDisplay"`
	PercentageDisplay    string  `json:"percentageDisplay"`
}

// Compare compares metric between a and b. Missing readings count as 0 here
// and nowhere earlier.
func Compare(a, b models.EntitySnapshot, metric string, higherIsBetter bool) Result {
	valueA := a.Metrics[metric].ValueOrZero()
	valueB := b.Metrics[metric].ValueOrZero()

	res := CompareValues(valueA, valueB, higherIsBetter)
	res.Metric = metric
	res.MetricLabel = models.LookupMetric(metric).Label
	res.EntityA = a.Name
	res.EntityB = b.Name
	return res
}

// CompareValues is Compare on bare numbers.
func CompareValues(valueA, valueB float64, higherIsBetter bool) Result {
	diff := valueA - valueB

	// A zero baseline reports the jump in the metric's own scale.
	pct := diff * 100
	if valueB != 0 {
		pct = diff / valueB * 100
	}

	return Result{
		ValueA:               valueA,
		ValueB:               valueB,
		Difference:           diff,
		PercentageDifference: pct,
		Winner:               pickWinner(valueA, valueB, higherIsBetter),
		DifferenceDisplay:    models.FormatSigned(diff),
		PercentageDisplay:    models.FormatSigned(pct) + "%",
	}
}

func pickWinner(valueA, valueB float64, higherIsBetter bool) Winner {
	switch {
	case valueA == valueB:
		return WinnerTie
	case (valueA > valueB) == higherIsBetter:
		return WinnerA
	default:
		return WinnerB
	}
}

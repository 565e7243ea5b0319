// internal/workers/insights/fetch-top-movers/handler_test.go
package fetchtopmovers

import (
	"context"
	"errors"
	"testing"
	"time"

	"influence-dashboard/internal/analytics"
	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/dashboard"
	"influence-dashboard/internal/insights/ranking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trendingSource serves a fixed /trending payload and fails everything else.
// A non-empty failMetric limits err to trending calls for that metric.
type trendingSource struct {
	payload    analytics.RawPayload
	err        error
	failMetric string
	calls      int
}

func (s *trendingSource) Trending(ctx context.Context, p analytics.TrendingParams) (analytics.RawPayload, error) {
	s.calls++
	if s.failMetric != "" && p.Metric != s.failMetric {
		return s.payload, nil
	}
	return s.payload, s.err
}

func (s *trendingSource) Compare(ctx context.Context, p analytics.CompareParams) (analytics.RawPayload, error) {
	return nil, errors.New("not implemented")
}

func (s *trendingSource) MetricHistory(ctx context.Context, name, metric string, p analytics.HistoryParams) (analytics.RawPayload, error) {
	return nil, errors.New("not implemented")
}

func (s *trendingSource) ListEntities(ctx context.Context, page, pageSize int) (analytics.RawPayload, error) {
	return nil, errors.New("not implemented")
}

func createTestHandler(t *testing.T, source dashboard.Source) *Handler {
	return createTestHandlerWithAlertsMetric(t, source, "hype_score")
}

func createTestHandlerWithAlertsMetric(t *testing.T, source dashboard.Source, alertsMetric string) *Handler {
	log := logger.NewTestLogger(t)
	svc := dashboard.NewService(source, nil, dashboard.Config{
		TopMoversMetric:       "hype_score",
		TopMoversLimit:        2,
		NarrativeAlertsMetric: alertsMetric,
		NarrativeAlertsLimit:  5,
		TimePeriod:            "7d",
		FetchLimit:            50,
	}, log)
	return NewHandler(&Config{Timeout: 3 * time.Second}, svc, log)
}

func trendingPayload() analytics.RawPayload {
	return []interface{}{
		map[string]interface{}{"name": "A", "subcategory": "NBA", "hype_score": 50.0, "previous_hype_score": 40.0},
		map[string]interface{}{"name": "B", "subcategory": "NFL", "hype_score": 80.0},
		map[string]interface{}{"name": "C", "subcategory": "NBA", "hype_score": 65.0, "previous_hype_score": 70.0},
	}
}

func TestHandler_Execute_Defaults(t *testing.T) {
	source := &trendingSource{payload: trendingPayload()}
	h := createTestHandler(t, source)

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	require.Len(t, out.TopMovers, 2)
	assert.Equal(t, "B", out.TopMovers[0].Name)
	assert.Equal(t, "C", out.TopMovers[1].Name)
	assert.Nil(t, out.Alerts)
	assert.Empty(t, out.AlertsStatus)
	assert.Equal(t, "ready", out.Status)
	assert.Equal(t, 1, source.calls)
}

func TestHandler_Execute_WithAlerts(t *testing.T) {
	h := createTestHandler(t, &trendingSource{payload: trendingPayload()})
	nba := "NBA"

	out, err := h.Execute(context.Background(), &Input{Subcategory: &nba, Order: ranking.OrderAsc, Limit: 5, IncludeAlerts: true})
	require.NoError(t, err)
	require.Len(t, out.TopMovers, 2)
	assert.Equal(t, "A", out.TopMovers[0].Name)

	require.Len(t, out.Alerts, 2)
	assert.Equal(t, "C", out.Alerts[0].Entity)
	assert.Equal(t, "A", out.Alerts[1].Entity)
	assert.InDelta(t, 25.0, out.Alerts[1].Trend.PercentChange, 1e-9)
	assert.Equal(t, "ready", out.AlertsStatus)
	assert.Nil(t, out.AlertsError)
}

func TestHandler_Execute_AlertsFailureKeepsTopMovers(t *testing.T) {
	source := &trendingSource{
		payload:    trendingPayload(),
		err:        &apperrors.TransportError{Kind: apperrors.KindTimeout, Path: "/trending"},
		failMetric: "rodmn_score",
	}
	h := createTestHandlerWithAlertsMetric(t, source, "rodmn_score")

	out, err := h.Execute(context.Background(), &Input{IncludeAlerts: true})
	require.NoError(t, err)

	assert.Equal(t, "ready", out.Status)
	require.Len(t, out.TopMovers, 2)
	assert.Equal(t, "B", out.TopMovers[0].Name)
	assert.Nil(t, out.TopMoversError)

	assert.Equal(t, "error", out.AlertsStatus)
	assert.Empty(t, out.Alerts)
	require.NotNil(t, out.AlertsError)
	assert.Equal(t, apperrors.ErrCodeAnalyticsTimeout, out.AlertsError.Code)
	assert.Equal(t, 2, source.calls)
}

func TestHandler_Execute_TopMoversFailureKeepsAlerts(t *testing.T) {
	source := &trendingSource{
		payload:    trendingPayload(),
		err:        &apperrors.TransportError{Kind: apperrors.KindTransport, Path: "/trending", StatusCode: 503},
		failMetric: "rodmn_score",
	}
	h := createTestHandler(t, source)

	out, err := h.Execute(context.Background(), &Input{Metric: "rodmn_score", IncludeAlerts: true})
	require.NoError(t, err)

	assert.Equal(t, "error", out.Status)
	assert.Empty(t, out.TopMovers)
	require.NotNil(t, out.TopMoversError)
	assert.Equal(t, apperrors.ErrCodeAnalyticsUnavailable, out.TopMoversError.Code)

	assert.Equal(t, "ready", out.AlertsStatus)
	assert.Len(t, out.Alerts, 2)
}

func TestHandler_Execute_BothListsFail(t *testing.T) {
	source := &trendingSource{err: &apperrors.TransportError{Kind: apperrors.KindPaymentRequired, Path: "/trending", StatusCode: 402}}
	h := createTestHandler(t, source)

	_, err := h.Execute(context.Background(), &Input{IncludeAlerts: true})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAnalyticsAccessRevoked, apperrors.FromTransport(err).Code)
}

func TestHandler_Execute_Empty(t *testing.T) {
	h := createTestHandler(t, &trendingSource{payload: map[string]interface{}{"items": []interface{}{}}})

	out, err := h.Execute(context.Background(), &Input{IncludeAlerts: true})
	require.NoError(t, err)
	assert.Empty(t, out.TopMovers)
	assert.Equal(t, "empty", out.Status)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		source   *trendingSource
		input    *Input
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "access revoked",
			source:   &trendingSource{err: &apperrors.TransportError{Kind: apperrors.KindPaymentRequired, Path: "/trending", StatusCode: 402}},
			input:    &Input{},
			wantCode: apperrors.ErrCodeAnalyticsAccessRevoked,
		},
		{
			name:     "timeout",
			source:   &trendingSource{err: &apperrors.TransportError{Kind: apperrors.KindTimeout, Path: "/trending"}},
			input:    &Input{},
			wantCode: apperrors.ErrCodeAnalyticsTimeout,
		},
		{
			name:     "invalid order",
			source:   &trendingSource{payload: trendingPayload()},
			input:    &Input{Order: "sideways"},
			wantCode: apperrors.ErrCodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, tt.source)
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.FromTransport(err).Code)
		})
	}
}

func TestParseInput(t *testing.T) {
	input, err := parseInput(`{"metric":"rodmn_score","limit":3,"processId":"p-1"}`)
	require.NoError(t, err)
	assert.Equal(t, "rodmn_score", input.Metric)
	assert.Equal(t, 3, input.Limit)

	_, err = parseInput(`{"limit":-1}`)
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, stdErr.Code)
}

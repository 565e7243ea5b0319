package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"influence-dashboard/internal/analytics"
	"influence-dashboard/internal/common/config"
	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/insights/comparison"
	"influence-dashboard/internal/insights/ranking"
	"influence-dashboard/internal/models"
	"influence-dashboard/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int

	trending      func(ctx context.Context, p analytics.TrendingParams) (analytics.RawPayload, error)
	compare       func(ctx context.Context, p analytics.CompareParams) (analytics.RawPayload, error)
	metricHistory func(ctx context.Context, name, metric string, p analytics.HistoryParams) (analytics.RawPayload, error)
	listEntities  func(ctx context.Context, page, pageSize int) (analytics.RawPayload, error)
}

func (f *fakeSource) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeSource) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) Trending(ctx context.Context, p analytics.TrendingParams) (analytics.RawPayload, error) {
	f.record("trending")
	return f.trending(ctx, p)
}

func (f *fakeSource) Compare(ctx context.Context, p analytics.CompareParams) (analytics.RawPayload, error) {
	f.record("compare")
	return f.compare(ctx, p)
}

func (f *fakeSource) MetricHistory(ctx context.Context, name, metric string, p analytics.HistoryParams) (analytics.RawPayload, error) {
	f.record("history")
	return f.metricHistory(ctx, name, metric, p)
}

func (f *fakeSource) ListEntities(ctx context.Context, page, pageSize int) (analytics.RawPayload, error) {
	f.record("entities")
	return f.listEntities(ctx, page, pageSize)
}

func record(name, sub string, metrics map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"name": name, "subcategory": sub, "metrics": metrics}
}

func trendingPayload() analytics.RawPayload {
	return map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"items": []interface{}{
				record("LeBron James", "NBA", map[string]interface{}{"hype_score": 88.0, "rodmn_score": 40.0, "previous_rodmn_score": 30.0}),
				record("Patrick Mahomes", "NFL", map[string]interface{}{"hype_score": 92.0, "rodmn_score": 55.0}),
				record("Caitlin Clark", "WNBA", map[string]interface{}{"hype_score": nil, "rodmn_score": 61.0, "previous_rodmn_score": 60.0}),
				record("Stephen Curry", "NBA", map[string]interface{}{"hype_score": 75.0, "rodmn_score": 20.0, "previous_rodmn_score": 25.0}),
			},
		},
	}
}

func entityNames(in []models.EntitySnapshot) []string {
	out := make([]string, len(in))
	for i, e := range in {
		out[i] = e.Name
	}
	return out
}

func newTestService(t *testing.T, src Source, cache session.Cache) *Service {
	return NewService(src, cache, Config{
		TopMoversMetric:       models.MetricHypeScore,
		TopMoversLimit:        3,
		NarrativeAlertsMetric: models.MetricRodmnScore,
		NarrativeAlertsLimit:  2,
		TimePeriod:            "week",
		FetchLimit:            50,
	}, logger.NewTestLogger(t))
}

func TestService_TopMovers(t *testing.T) {
	src := &fakeSource{trending: func(_ context.Context, p analytics.TrendingParams) (analytics.RawPayload, error) {
		assert.Equal(t, 50, p.Limit)
		assert.Equal(t, "week", p.TimePeriod)
		return trendingPayload(), nil
	}}
	svc := newTestService(t, src, nil)
	nba := "NBA"

	tests := []struct {
		name  string
		query RankQuery
		want  []string
	}{
		{name: "defaults", query: RankQuery{}, want: []string{"Patrick Mahomes", "LeBron James", "Stephen Curry"}},
		{name: "subcategory", query: RankQuery{Subcategory: &nba}, want: []string{"LeBron James", "Stephen Curry"}},
		{name: "ascending with limit", query: RankQuery{Order: ranking.OrderAsc, Limit: 1}, want: []string{"Stephen Curry"}},
		{name: "other metric", query: RankQuery{Metric: models.MetricRodmnScore, Limit: 2}, want: []string{"Caitlin Clark", "Patrick Mahomes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.TopMovers(context.Background(), "s1", tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entityNames(got))
		})
	}
}

func TestService_TopMovers_InvalidQuery(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, nil)

	_, err := svc.TopMovers(context.Background(), "s1", RankQuery{Limit: -1})
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, stdErr.Code)

	_, err = svc.TopMovers(context.Background(), "s1", RankQuery{Order: "random"})
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, stdErr.Code)
}

func TestService_TopMovers_PropagatesTransportError(t *testing.T) {
	src := &fakeSource{trending: func(context.Context, analytics.TrendingParams) (analytics.RawPayload, error) {
		return nil, &apperrors.TransportError{Kind: apperrors.KindPaymentRequired, Path: "/trending", StatusCode: 402}
	}}
	svc := newTestService(t, src, nil)

	_, err := svc.TopMovers(context.Background(), "s1", RankQuery{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindPaymentRequired))
}

func TestService_CachesOnlySuccess(t *testing.T) {
	fail := true
	src := &fakeSource{trending: func(context.Context, analytics.TrendingParams) (analytics.RawPayload, error) {
		if fail {
			return nil, &apperrors.TransportError{Kind: apperrors.KindTimeout}
		}
		return trendingPayload(), nil
	}}
	cache := session.NewMemoryCache(0)
	svc := newTestService(t, src, cache)
	ctx := context.Background()

	_, err := svc.TopMovers(ctx, "s1", RankQuery{})
	require.Error(t, err)

	fail = false
	first, err := svc.TopMovers(ctx, "s1", RankQuery{})
	require.NoError(t, err)
	second, err := svc.TopMovers(ctx, "s1", RankQuery{Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, 2, src.count("trending"), "failed call is not cached, successful one is")
	assert.Equal(t, entityNames(first)[:1], entityNames(second))

	_, err = svc.TopMovers(ctx, "s2", RankQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, src.count("trending"), "sessions have separate caches")
}

func TestService_NarrativeAlerts(t *testing.T) {
	src := &fakeSource{trending: func(_ context.Context, p analytics.TrendingParams) (analytics.RawPayload, error) {
		assert.Equal(t, models.MetricRodmnScore, p.Metric)
		return trendingPayload(), nil
	}}
	svc := newTestService(t, src, nil)

	alerts, err := svc.NarrativeAlerts(context.Background(), "s1", RankQuery{})
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Equal(t, "Caitlin Clark", alerts[0].Entity)
	assert.Equal(t, "steady", alerts[0].Trend.Band.Name)
	assert.Equal(t, "RODMN Score", alerts[0].MetricLabel)

	assert.Equal(t, "LeBron James", alerts[1].Entity)
	assert.Equal(t, "surging", alerts[1].Trend.Band.Name)
	assert.Equal(t, "LeBron James is breaking out well above its recent baseline (+33.33%)", alerts[1].Message)

	nba := "NBA"
	alerts, err = svc.NarrativeAlerts(context.Background(), "s1", RankQuery{Subcategory: &nba, Limit: 5})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Stephen Curry", alerts[1].Entity)
	assert.Equal(t, "fading", alerts[1].Trend.Band.Name)
}

func TestService_NarrativeAlerts_Empty(t *testing.T) {
	src := &fakeSource{trending: func(context.Context, analytics.TrendingParams) (analytics.RawPayload, error) {
		return map[string]interface{}{"unexpected": true}, nil
	}}
	svc := newTestService(t, src, nil)

	alerts, err := svc.NarrativeAlerts(context.Background(), "s1", RankQuery{})
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestService_Compare(t *testing.T) {
	src := &fakeSource{compare: func(_ context.Context, p analytics.CompareParams) (analytics.RawPayload, error) {
		assert.Equal(t, []string{"A", "B"}, p.Entities)
		assert.Equal(t, []string{models.MetricHypeScore}, p.Metrics)
		return []interface{}{
			map[string]interface{}{"name": "B", "hype_score": 60.0},
			map[string]interface{}{"name": "A", "hype_score": 80.0},
		}, nil
	}}
	svc := newTestService(t, src, nil)

	res, err := svc.Compare(context.Background(), "s1", " A ", "B", "", true)
	require.NoError(t, err)

	assert.Equal(t, comparison.WinnerA, res.Winner)
	assert.Equal(t, 20.0, res.Difference)
	assert.Equal(t, "+33.33%", res.PercentageDisplay)
}

func TestService_Compare_MissingEntityHasNoData(t *testing.T) {
	src := &fakeSource{compare: func(context.Context, analytics.CompareParams) (analytics.RawPayload, error) {
		return []interface{}{map[string]interface{}{"name": "A", "mentions": 10.0}}, nil
	}}
	svc := newTestService(t, src, nil)

	res, err := svc.Compare(context.Background(), "s1", "A", "Ghost", models.MetricMentions, true)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.ValueB)
	assert.Equal(t, 1000.0, res.PercentageDifference)
}

func TestService_Compare_RequiresBothEntities(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, nil)

	_, err := svc.Compare(context.Background(), "s1", "A", "  ", models.MetricHypeScore, true)
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInvalidRequest, stdErr.Code)
}

func TestService_Trend(t *testing.T) {
	src := &fakeSource{metricHistory: func(_ context.Context, name, metric string, p analytics.HistoryParams) (analytics.RawPayload, error) {
		assert.Equal(t, "Caitlin Clark", name)
		assert.Equal(t, models.MetricHypeScore, metric)
		assert.Equal(t, 30, p.Limit)
		return map[string]interface{}{"history": []interface{}{
			map[string]interface{}{"date": "2026-03-02", "value": 89.2},
			map[string]interface{}{"date": "2026-03-01", "value": 76.8},
		}}, nil
	}}
	svc := newTestService(t, src, nil)

	res, err := svc.Trend(context.Background(), "s1", "Caitlin Clark", "")
	require.NoError(t, err)
	require.Len(t, res.Points, 2)
	require.NotNil(t, res.Trend)
	assert.Equal(t, "rising", res.Trend.Band.Name)
	assert.Equal(t, "2026-03-01", res.Points[0].Date)
}

func TestService_Trend_UsesConfiguredHistoryLimit(t *testing.T) {
	src := &fakeSource{metricHistory: func(_ context.Context, _, _ string, p analytics.HistoryParams) (analytics.RawPayload, error) {
		assert.Equal(t, 90, p.Limit)
		return []interface{}{}, nil
	}}
	cfg := ConfigFrom(config.DashboardConfig{
		TopMoversMetric:       models.MetricHypeScore,
		NarrativeAlertsMetric: models.MetricRodmnScore,
		HistoryLimit:          90,
	})
	assert.Equal(t, 90, cfg.HistoryLimit)

	svc := NewService(src, nil, cfg, logger.NewTestLogger(t))
	_, err := svc.Trend(context.Background(), "s1", "A", "")
	require.NoError(t, err)
	assert.Equal(t, 1, src.count("history"))
}

func TestService_Trend_SinglePoint(t *testing.T) {
	src := &fakeSource{metricHistory: func(context.Context, string, string, analytics.HistoryParams) (analytics.RawPayload, error) {
		return []interface{}{map[string]interface{}{"date": "2026-03-01", "value": 10.0}}, nil
	}}
	svc := newTestService(t, src, nil)

	res, err := svc.Trend(context.Background(), "s1", "A", models.MetricMentions)
	require.NoError(t, err)
	assert.Nil(t, res.Trend)
	assert.Len(t, res.Points, 1)
}

func TestService_Entities(t *testing.T) {
	src := &fakeSource{listEntities: func(_ context.Context, page, pageSize int) (analytics.RawPayload, error) {
		assert.Equal(t, 2, page)
		assert.Equal(t, 20, pageSize)
		return map[string]interface{}{"results": []interface{}{
			map[string]interface{}{"name": "A", "category": "sports"},
		}}, nil
	}}
	svc := newTestService(t, src, nil)

	got, err := svc.Entities(context.Background(), "s1", 2, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, entityNames(got))

	_, err = svc.Entities(context.Background(), "s1", -1, 20)
	assert.Error(t, err)
}

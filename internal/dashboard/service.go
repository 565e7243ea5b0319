// Package dashboard composes analytics fetches with the comparison, trend and
// ranking engines, and tracks per-session panel state.
package dashboard

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"influence-dashboard/internal/analytics"
	"influence-dashboard/internal/common/config"
	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/insights/comparison"
	"influence-dashboard/internal/insights/ranking"
	"influence-dashboard/internal/insights/trend"
	"influence-dashboard/internal/models"
	"influence-dashboard/internal/session"
)

// PreviousPrefix marks the prior-period reading of a metric in a trending
// record, e.g. "previous_rodmn_score".
const PreviousPrefix = "previous_"

// Source is the subset of the analytics client the dashboard reads from.
type Source interface {
	Compare(ctx context.Context, p analytics.CompareParams) (analytics.RawPayload, error)
	MetricHistory(ctx context.Context, name, metric string, p analytics.HistoryParams) (analytics.RawPayload, error)
	Trending(ctx context.Context, p analytics.TrendingParams) (analytics.RawPayload, error)
	ListEntities(ctx context.Context, page, pageSize int) (analytics.RawPayload, error)
}

type Config struct {
	TopMoversMetric       string
	TopMoversLimit        int
	NarrativeAlertsMetric string
	NarrativeAlertsLimit  int
	TimePeriod            string
	FetchLimit            int
	HistoryLimit          int
}

func (c Config) withDefaults() Config {
	if c.TopMoversMetric == "" {
		c.TopMoversMetric = models.MetricHypeScore
	}
	if c.TopMoversLimit <= 0 {
		c.TopMoversLimit = 10
	}
	if c.NarrativeAlertsMetric == "" {
		c.NarrativeAlertsMetric = models.MetricRodmnScore
	}
	if c.NarrativeAlertsLimit <= 0 {
		c.NarrativeAlertsLimit = 5
	}
	if c.TimePeriod == "" {
		c.TimePeriod = "week"
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = 50
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 30
	}
	return c
}

// ConfigFrom maps the dashboard section of the application config.
func ConfigFrom(c config.DashboardConfig) Config {
	return Config{
		TopMoversMetric:       c.TopMoversMetric,
		TopMoversLimit:        c.TopMoversLimit,
		NarrativeAlertsMetric: c.NarrativeAlertsMetric,
		NarrativeAlertsLimit:  c.NarrativeAlertsLimit,
		TimePeriod:            c.TimePeriod,
		FetchLimit:            c.FetchLimit,
		HistoryLimit:          c.HistoryLimit,
	}
}

type Service struct {
	source Source
	cache  session.Cache
	config Config
	logger logger.Logger
}

// NewService builds a Service. cache may be nil to disable result caching.
func NewService(source Source, cache session.Cache, config Config, log logger.Logger) *Service {
	return &Service{
		source: source,
		cache:  cache,
		config: config.withDefaults(),
		logger: log.WithFields(map[string]interface{}{"component": "dashboard"}),
	}
}

func (s *Service) Config() Config {
	return s.config
}

// fetch serves key from the session cache or calls load, caching only a
// successful result.
func (s *Service) fetch(ctx context.Context, sessionID, key string, load func() (analytics.RawPayload, error)) (analytics.RawPayload, error) {
	if s.cache != nil && sessionID != "" {
		data, ok, err := s.cache.Get(ctx, sessionID, key)
		if err == nil && ok {
			var payload interface{}
			if err := json.Unmarshal(data, &payload); err == nil {
				return payload, nil
			}
		}
	}

	payload, err := load()
	if err != nil {
		return nil, err
	}

	if s.cache != nil && sessionID != "" {
		if data, err := json.Marshal(payload); err == nil {
			if err := s.cache.Set(ctx, sessionID, key, data); err != nil {
				s.logger.Warn("failed to cache result", map[string]interface{}{
					"sessionId": sessionID,
					"key":       key,
					"error":     err.Error(),
				})
			}
		}
	}
	return payload, nil
}

func (s *Service) trending(ctx context.Context, sessionID, metric string) ([]models.EntitySnapshot, error) {
	params := analytics.TrendingParams{
		Metric:     metric,
		Limit:      s.config.FetchLimit,
		TimePeriod: s.config.TimePeriod,
	}
	key := session.CacheKey("/trending", url.Values{
		"metric":      {params.Metric},
		"limit":       {strconv.Itoa(params.Limit)},
		"time_period": {params.TimePeriod},
	})

	raw, err := s.fetch(ctx, sessionID, key, func() (analytics.RawPayload, error) {
		return s.source.Trending(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	return analytics.Normalize(raw), nil
}

// RankQuery parameterises a top movers list. Zero values fall back to the
// configured defaults.
type RankQuery struct {
	Subcategory *string
	Metric      string
	Order       ranking.Order
	Limit       int
}

func (s *Service) rankingRequest(q RankQuery, defaultMetric string, defaultLimit int) (ranking.Request, error) {
	req := ranking.Request{
		Subcategory: q.Subcategory,
		SortMetric:  q.Metric,
		SortOrder:   q.Order,
		Limit:       q.Limit,
	}
	if req.SortMetric == "" {
		req.SortMetric = defaultMetric
	}
	if req.SortOrder == "" {
		req.SortOrder = ranking.OrderDesc
	}
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	if err := req.Validate(); err != nil {
		return ranking.Request{}, apperrors.NewInvalidRequestError(err.Error())
	}
	return req, nil
}

// TopMovers fetches the trending collection and ranks it.
func (s *Service) TopMovers(ctx context.Context, sessionID string, q RankQuery) ([]models.EntitySnapshot, error) {
	req, err := s.rankingRequest(q, s.config.TopMoversMetric, s.config.TopMoversLimit)
	if err != nil {
		return nil, err
	}

	entities, err := s.trending(ctx, sessionID, req.SortMetric)
	if err != nil {
		return nil, err
	}
	return ranking.Rank(entities, req), nil
}

// Alert is one narrative alert card.
type Alert struct {
	Entity      string       `json:"entity"`
	Category    string       `json:"category,omitempty"`
	Subcategory string       `json:"subcategory,omitempty"`
	Metric      string       `json:"metric"`
	MetricLabel string       `json:"metricLabel"`
	Trend       trend.Record `json:"trend"`
	Message     string       `json:"message"`
}

// NarrativeAlerts ranks the trending collection by the alerts metric and
// classifies each entity against its previous-period reading. Entities
// without a previous reading produce no alert.
func (s *Service) NarrativeAlerts(ctx context.Context, sessionID string, q RankQuery) ([]Alert, error) {
	req, err := s.rankingRequest(q, s.config.NarrativeAlertsMetric, s.config.NarrativeAlertsLimit)
	if err != nil {
		return nil, err
	}

	entities, err := s.trending(ctx, sessionID, req.SortMetric)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	req.Limit = len(entities)
	candidates := ranking.Rank(entities, req)

	label := models.LookupMetric(req.SortMetric).Label
	alerts := make([]Alert, 0, limit)
	for _, e := range candidates {
		if len(alerts) == limit {
			break
		}
		previous, ok := e.Metric(PreviousPrefix + req.SortMetric)
		if !ok {
			continue
		}
		current, _ := e.Metric(req.SortMetric)
		rec := trend.Classify(current, previous)
		alerts = append(alerts, Alert{
			Entity:      e.Name,
			Category:    e.Category,
			Subcategory: e.Subcategory,
			Metric:      req.SortMetric,
			MetricLabel: label,
			Trend:       rec,
			Message:     rec.Narrative(e.Name),
		})
	}
	return alerts, nil
}

// Compare loads both entities in one /compare call and compares them on
// metric. An entity missing from the response compares as having no data.
func (s *Service) Compare(ctx context.Context, sessionID, entityA, entityB, metric string, higherIsBetter bool) (comparison.Result, error) {
	entityA, entityB = strings.TrimSpace(entityA), strings.TrimSpace(entityB)
	if entityA == "" || entityB == "" {
		return comparison.Result{}, apperrors.NewInvalidRequestError("entity1 and entity2 are required")
	}
	if metric == "" {
		metric = s.config.TopMoversMetric
	}

	params := analytics.CompareParams{
		Entities:   []string{entityA, entityB},
		Metrics:    []string{metric},
		TimePeriod: s.config.TimePeriod,
	}
	key := session.CacheKey("/compare", url.Values{
		"entities":    {strings.Join(params.Entities, ",")},
		"metrics":     {metric},
		"time_period": {params.TimePeriod},
	})

	raw, err := s.fetch(ctx, sessionID, key, func() (analytics.RawPayload, error) {
		return s.source.Compare(ctx, params)
	})
	if err != nil {
		return comparison.Result{}, err
	}

	a, b := models.EntitySnapshot{Name: entityA}, models.EntitySnapshot{Name: entityB}
	for _, e := range analytics.Normalize(raw) {
		switch e.Name {
		case entityA:
			a = e
		case entityB:
			b = e
		}
	}
	if entityA == entityB {
		b = a
	}
	return comparison.Compare(a, b, metric, higherIsBetter), nil
}

// TrendResult is the history for one entity and metric plus its latest
// classification. Trend is nil with fewer than two readings.
type TrendResult struct {
	Entity string                `json:"entity"`
	Metric string                `json:"metric"`
	Points []models.HistoryPoint `json:"points"`
	Trend  *trend.Record         `json:"trend,omitempty"`
}

func (s *Service) Trend(ctx context.Context, sessionID, entity, metric string) (TrendResult, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return TrendResult{}, apperrors.NewInvalidRequestError("entity is required")
	}
	if metric == "" {
		metric = s.config.TopMoversMetric
	}

	params := analytics.HistoryParams{Limit: s.config.HistoryLimit}
	key := session.CacheKey("/entities/"+url.PathEscape(entity)+"/metrics/"+url.PathEscape(metric)+"/history", url.Values{
		"limit": {strconv.Itoa(params.Limit)},
	})

	raw, err := s.fetch(ctx, sessionID, key, func() (analytics.RawPayload, error) {
		return s.source.MetricHistory(ctx, entity, metric, params)
	})
	if err != nil {
		return TrendResult{}, err
	}

	res := TrendResult{Entity: entity, Metric: metric, Points: analytics.NormalizeHistory(raw)}
	if rec, ok := trend.FromHistory(res.Points); ok {
		res.Trend = &rec
	}
	return res, nil
}

// Entities returns one page of the entity directory.
func (s *Service) Entities(ctx context.Context, sessionID string, page, pageSize int) ([]models.EntitySnapshot, error) {
	if page < 0 || pageSize < 0 {
		return nil, apperrors.NewInvalidRequestError("page and page_size must not be negative")
	}
	key := session.CacheKey("/entities", url.Values{
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(pageSize)},
	})

	raw, err := s.fetch(ctx, sessionID, key, func() (analytics.RawPayload, error) {
		return s.source.ListEntities(ctx, page, pageSize)
	})
	if err != nil {
		return nil, err
	}
	return analytics.Normalize(raw), nil
}

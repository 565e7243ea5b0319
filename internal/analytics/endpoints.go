package analytics

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

type CompareParams struct {
	Entities       []string
	Metrics        []string
	TimePeriod     string
	IncludeHistory bool
}

// Compare calls GET /compare.
func (c *Client) Compare(ctx context.Context, p CompareParams) (RawPayload, error) {
	params := url.Values{}
	params.Set("entities", strings.Join(p.Entities, ","))
	if len(p.Metrics) > 0 {
		params.Set("metrics", strings.Join(p.Metrics, ","))
	}
	if p.TimePeriod != "" {
		params.Set("time_period", p.TimePeriod)
	}
	if p.IncludeHistory {
		params.Set("include_history", "true")
	}
	return c.Request(ctx, "/compare", params)
}

type HistoryParams struct {
	Limit     int
	StartDate string
	EndDate   string
}

func (p HistoryParams) values() url.Values {
	params := url.Values{}
	if p.Limit > 0 {
		params.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.StartDate != "" {
		params.Set("start_date", p.StartDate)
	}
	if p.EndDate != "" {
		params.Set("end_date", p.EndDate)
	}
	return params
}

// EntityHistory calls GET /entities/{name}/history.
func (c *Client) EntityHistory(ctx context.Context, name string, p HistoryParams) (RawPayload, error) {
	return c.Request(ctx, "/entities/"+url.PathEscape(name)+"/history", p.values())
}

// MetricHistory calls GET /entities/{name}/metrics/{metric}/history.
func (c *Client) MetricHistory(ctx context.Context, name, metric string, p HistoryParams) (RawPayload, error) {
	path := "/entities/" + url.PathEscape(name) + "/metrics/" + url.PathEscape(metric) + "/history"
	return c.Request(ctx, path, p.values())
}

type TrendingParams struct {
	Metric      string
	Limit       int
	TimePeriod  string
	Category    string
	Subcategory string
}

// Trending calls GET /trending.
func (c *Client) Trending(ctx context.Context, p TrendingParams) (RawPayload, error) {
	params := url.Values{}
	if p.Metric != "" {
		params.Set("metric", p.Metric)
	}
	if p.Limit > 0 {
		params.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.TimePeriod != "" {
		params.Set("time_period", p.TimePeriod)
	}
	if p.Category != "" {
		params.Set("category", p.Category)
	}
	if p.Subcategory != "" {
		params.Set("subcategory", p.Subcategory)
	}
	return c.Request(ctx, "/trending", params)
}

// ListEntities calls the paginated GET /entities.
func (c *Client) ListEntities(ctx context.Context, page, pageSize int) (RawPayload, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		params.Set("page_size", strconv.Itoa(pageSize))
	}
	return c.Request(ctx, "/entities", params)
}

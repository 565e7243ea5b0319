// Package analytics talks to the remote influence-analytics API and turns its
// loosely shaped responses into entity snapshots.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "influence-dashboard/internal/common/errors"
	commonhttp "influence-dashboard/internal/common/http"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/common/metrics"
	"influence-dashboard/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	APIKeyHeader   = "X-API-Key"
	DefaultTimeout = 30 * time.Second
)

// RawPayload is a decoded JSON document exactly as the API returned it, minus
// a success envelope. Callers must pass it through Normalize.
type RawPayload = interface{}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	http    *commonhttp.Client
	logger  logger.Logger
	tracer  trace.Tracer
}

func NewClient(cfg Config, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: commonhttp.NewClient(timeout, map[string]string{
			APIKeyHeader: cfg.APIKey,
			"Accept":     "application/json",
		}),
		logger: log.WithFields(map[string]interface{}{"component": "analytics-client"}),
		tracer: observability.Tracer("influence-dashboard/analytics"),
	}
}

// Request performs a GET against path and returns the decoded payload. Every
// failure is a *errors.TransportError; nothing is retried.
func (c *Client) Request(ctx context.Context, path string, params url.Values) (RawPayload, error) {
	endpoint := endpointLabel(path)
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "analytics.request", trace.WithAttributes(
		attribute.String("analytics.endpoint", endpoint),
	))
	defer span.End()

	payload, err := c.do(ctx, path, params)
	metrics.AnalyticsRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		var te *apperrors.TransportError
		kind := string(apperrors.KindTransport)
		if errors.As(err, &te) {
			kind = string(te.Kind)
		}
		metrics.AnalyticsRequests.WithLabelValues(endpoint, kind).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)

		c.logger.Error("analytics request failed", map[string]interface{}{
			"endpoint":   endpoint,
			"path":       path,
			"params":     params.Encode(),
			"kind":       kind,
			"error":      err.Error(),
			"durationMs": time.Since(start).Milliseconds(),
		})
		return nil, err
	}

	metrics.AnalyticsRequests.WithLabelValues(endpoint, "success").Inc()
	return payload, nil
}

func (c *Client) do(ctx context.Context, path string, params url.Values) (RawPayload, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &apperrors.TransportError{Kind: apperrors.KindTransport, Path: path, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		return nil, &apperrors.TransportError{Kind: apperrors.KindPaymentRequired, Path: path, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperrors.TransportError{Kind: apperrors.KindTransport, Path: path, StatusCode: resp.StatusCode}
	}

	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if te := classify(ctx, path, err); te.Kind == apperrors.KindTimeout {
			return nil, te
		}
		return nil, &apperrors.TransportError{Kind: apperrors.KindTransport, Path: path, Err: fmt.Errorf("decode response: %w", err)}
	}

	return unwrapEnvelope(payload), nil
}

func classify(ctx context.Context, path string, err error) *apperrors.TransportError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &apperrors.TransportError{Kind: apperrors.KindTimeout, Path: path, Err: err}
	}
	return &apperrors.TransportError{Kind: apperrors.KindTransport, Path: path, Err: err}
}

// unwrapEnvelope returns X for {status: "success", data: X} and the payload
// unchanged otherwise.
func unwrapEnvelope(payload interface{}) interface{} {
	obj, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	status, _ := obj["status"].(string)
	data, hasData := obj["data"]
	if status == "success" && hasData {
		return data
	}
	return payload
}

// endpointLabel collapses entity and metric names out of the path so metric
// labels stay low-cardinality.
func endpointLabel(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(segments) == 1:
		return segments[0]
	case len(segments) == 3 && segments[0] == "entities" && segments[2] == "history":
		return "entity_history"
	case len(segments) == 5 && segments[0] == "entities" && segments[2] == "metrics":
		return "metric_history"
	default:
		return "other"
	}
}

// internal/workers/insights/fetch-top-movers/handler.go
package fetchtopmovers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"influence-dashboard/internal/common/camunda"
	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/common/metrics"
	"influence-dashboard/internal/common/validation"
	"influence-dashboard/internal/dashboard"
	"influence-dashboard/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "fetch-top-movers"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

var inputSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"subcategory":   {Type: []string{"string", "null"}},
		"metric":        {Type: "string"},
		"order":         {Type: "string", Enum: []interface{}{"", "asc", "desc"}},
		"limit":         {Type: "integer", Minimum: validation.Float(0)},
		"includeAlerts": {Type: "boolean"},
	},
}

type Handler struct {
	config       *Config
	service      *dashboard.Service
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, service *dashboard.Service, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		service:      service,
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.WithError(err).Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func parseInput(variables string) (*Input, error) {
	result, err := validation.ValidateJSON(variables, inputSchema)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidRequestError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute runs without a session, so every job reads fresh data.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}

	start := time.Now()
	query := dashboard.RankQuery{
		Subcategory: input.Subcategory,
		Metric:      input.Metric,
		Order:       input.Order,
		Limit:       input.Limit,
	}

	out := &Output{Status: "ready"}

	movers, err := h.service.TopMovers(ctx, "", query)
	switch {
	case err != nil:
		stdErr := apperrors.FromTransport(err)
		if !input.IncludeAlerts || stdErr.Code == apperrors.ErrCodeInvalidRequest {
			return nil, fmt.Errorf("top movers: %w", err)
		}
		out.TopMovers = []models.EntitySnapshot{}
		out.TopMoversError = stdErr
		out.Status = "error"
	case len(movers) == 0:
		out.TopMovers = movers
		out.Status = "empty"
	default:
		out.TopMovers = movers
	}

	if input.IncludeAlerts {
		h.loadAlerts(ctx, input, out)
		if out.Status == "error" && out.AlertsStatus == "error" {
			return nil, fmt.Errorf("top movers: %w", err)
		}
	}

	h.logger.Info("top movers fetched", map[string]interface{}{
		"status":       out.Status,
		"count":        len(out.TopMovers),
		"alerts":       len(out.Alerts),
		"alertsStatus": out.AlertsStatus,
		"durationMs":   time.Since(start).Milliseconds(),
	})
	return out, nil
}

// loadAlerts fills the alerts fields of out. Its failure is recorded in out
// and does not fail the job.
func (h *Handler) loadAlerts(ctx context.Context, input *Input, out *Output) {
	alerts, err := h.service.NarrativeAlerts(ctx, "", dashboard.RankQuery{Subcategory: input.Subcategory})
	if err != nil {
		out.AlertsStatus = "error"
		out.AlertsError = apperrors.FromTransport(err)
		h.logger.Warn("narrative alerts failed, returning top movers only", map[string]interface{}{
			"errorCode": string(out.AlertsError.Code),
			"details":   out.AlertsError.Details,
		})
		return
	}

	out.Alerts = alerts
	out.AlertsStatus = "ready"
	if len(alerts) == 0 {
		out.AlertsStatus = "empty"
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.FromTransport(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

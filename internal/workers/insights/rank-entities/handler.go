// internal/workers/insights/rank-entities/handler.go
package rankentities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"influence-dashboard/internal/analytics"
	"influence-dashboard/internal/common/camunda"
	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/common/metrics"
	"influence-dashboard/internal/common/validation"
	"influence-dashboard/internal/insights/ranking"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "rank-entities"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

var inputSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"entities":    {Type: []string{"array", "object"}},
		"subcategory": {Type: []string{"string", "null"}},
		"sortMetric":  {Type: "string", MinLength: validation.Int(1)},
		"sortOrder":   {Type: "string", Enum: []interface{}{"asc", "desc"}},
		"limit":       {Type: "integer", Minimum: validation.Float(1)},
	},
	Required: []string{"entities", "sortMetric", "sortOrder", "limit"},
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	req := ranking.Request{
		Subcategory: input.Subcategory,
		SortMetric:  input.SortMetric,
		SortOrder:   input.SortOrder,
		Limit:       input.Limit,
	}
	if h.config.MaxItems > 0 && req.Limit > h.config.MaxItems {
		req.Limit = h.config.MaxItems
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewInvalidRequestError(err.Error())
	}

	ranked := ranking.Rank(analytics.Normalize(input.Entities), req)

	status := "ready"
	if len(ranked) == 0 {
		status = "empty"
	}

	h.logger.Info("entities ranked", map[string]interface{}{
		"sortMetric": req.SortMetric,
		"sortOrder":  req.SortOrder,
		"count":      len(ranked),
		"durationMs": time.Since(start).Milliseconds(),
	})

	return &Output{RankedEntities: ranked, Count: len(ranked), Status: status}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.FromTransport(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

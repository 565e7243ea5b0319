// internal/workers/insights/compare-entities/handler.go
package compareentities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"influence-dashboard/internal/analytics"
	"influence-dashboard/internal/common/camunda"
	apperrors "influence-dashboard/internal/common/errors"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/common/metrics"
	"influence-dashboard/internal/common/validation"
	"influence-dashboard/internal/insights/comparison"
	"influence-dashboard/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "compare-entities"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

var entitySchema = validation.Property{
	Type:       "object",
	Properties: map[string]validation.Property{"name": {Type: "string", MinLength: validation.Int(1)}},
	Required:   []string{"name"},
}

var inputSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"entityA":        entitySchema,
		"entityB":        entitySchema,
		"metric":         {Type: "string"},
		"higherIsBetter": {Type: "boolean"},
	},
	Required: []string{"entityA", "entityB"},
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

	a, err := snapshot(input.EntityA, "entityA")
	if err != nil {
		return nil, err
	}
	b, err := snapshot(input.EntityB, "entityB")
	if err != nil {
		return nil, err
	}

	metric := input.Metric
	if metric == "" {
		metric = h.config.DefaultMetric
	}
	higherIsBetter := true
	if input.HigherIsBetter != nil {
		higherIsBetter = *input.HigherIsBetter
	}

	res := comparison.Compare(a, b, metric, higherIsBetter)

	h.logger.Info("entities compared", map[string]interface{}{
		"entityA": a.Name,
		"entityB": b.Name,
		"metric":  metric,
		"winner":  res.Winner,
	})

	return &Output{
		Comparison: res,
		Winner:     winnerName(res),
		HasData:    a.Metrics[metric].HasData() || b.Metrics[metric].HasData(),
	}, nil
}

func snapshot(record map[string]interface{}, field string) (models.EntitySnapshot, error) {
	snaps := analytics.Normalize([]interface{}{record})
	if len(snaps) == 0 {
		return models.EntitySnapshot{}, apperrors.NewInvalidRequestError(field + ": record has no name")
	}
	return snaps[0], nil
}

func winnerName(res comparison.Result) string {
	switch res.Winner {
	case comparison.WinnerA:
		return res.EntityA
	case comparison.WinnerB:
		return res.EntityB
	default:
		return ""
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.FromTransport(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

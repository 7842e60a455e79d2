package graduatewidget

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"proof-engine/internal/common/camunda"
	"proof-engine/internal/common/errors"
	"proof-engine/internal/common/logger"
	"proof-engine/internal/common/metrics"
	"proof-engine/internal/engine/graduation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// TaskType is the BPMN service task this worker serves.
const TaskType = "graduate-widget"

// Graduator is the slice of the graduation controller the worker drives.
type Graduator interface {
	AutoGraduate(ctx context.Context, widgetID string) (*graduation.Outcome, error)
}

type Handler struct {
	config       *Config
	graduator    Graduator
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	jobWorker    worker.JobWorker
}

func NewHandler(cfg *Config, graduator Graduator, log logger.Logger) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})
	return &Handler{
		config:       cfg,
		graduator:    graduator,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing graduation job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job.GetVariables())
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	result := inputSchema.ValidateBytes([]byte(variables))
	if !result.Valid {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("%v", result.GetErrorMessages()))
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

// Execute runs one graduation cycle for the widget. Losing the lock to a
// concurrent cycle is not a failure; the job completes unchanged.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	outcome, err := h.graduator.AutoGraduate(ctx, input.WidgetID)
	if errors.Is(err, errors.ErrCodeLockNotAcquired) {
		h.logger.Info("Graduation already in progress", map[string]interface{}{
			"widgetId": input.WidgetID,
		})
		return &Output{WidgetID: input.WidgetID}, nil
	}
	if err != nil {
		return nil, err
	}

	out := &Output{
		WidgetID:    outcome.WidgetID,
		Graduated:   outcome.Graduated,
		Changed:     outcome.Changed,
		TargetRatio: outcome.TargetRatio,
	}
	if outcome.Status != nil {
		out.Ready = outcome.Status.Ready
		out.GraduationProgress = outcome.Status.GraduationProgress
		out.HealthScore = outcome.Status.Health.Score
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("Graduation job completed", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"widgetId":  output.WidgetID,
		"changed":   output.Changed,
		"graduated": output.Graduated,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

// Register opens the job worker on the broker.
func (h *Handler) Register(client *camunda.Client) {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return
	}
	h.jobWorker = camunda.OpenWorker(client.GetClient(), camunda.WorkerOptions{
		TaskType:      TaskType,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
	}, h)

	h.logger.Info("Graduation worker registered", map[string]interface{}{
		"maxJobsActive": h.config.MaxJobsActive,
		"timeout":       h.config.Timeout.String(),
	})
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.jobWorker.Close()
		h.jobWorker = nil
	}
}

// internal/workers/dispatch/plan-emergency-diversion/handler.go
package planemergencydiversion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/common/metrics"
	"dispatch-workers/internal/common/validation"
	"dispatch-workers/internal/models"
	"dispatch-workers/internal/notify"
	"dispatch-workers/internal/repository"
	"dispatch-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "plan-emergency-diversion"
)

type Planner interface {
	Plan(ctx context.Context, job *models.Job, technicians []models.Technician) models.DiversionDecision
}

type Dispatcher interface {
	Dispatch(ctx context.Context, actions []models.NotificationAction) []notify.Result
}

type AuditLog interface {
	RecordDecision(ctx context.Context, decision models.DiversionDecision, delivery []notify.Result) error
}

// Dependencies lists the optional collaborators; nil members are skipped.
type Dependencies struct {
	Technicians repository.TechnicianRepository
	Dispatcher  Dispatcher
	Audit       AuditLog
}

type Handler struct {
	config       *Config
	planner      Planner
	deps         Dependencies
	schema       map[string]interface{}
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, planner Planner, deps Dependencies, log logger.Logger) (*Handler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var schema map[string]interface{}
	if activity, ok := registry.MustDefault().Find(TaskType); ok {
		schema = activity.InputSchema
	}

	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		planner:      planner,
		deps:         deps,
		schema:       schema,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output := h.execute(ctx, input)
	h.completeJob(client, job, output)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}

	result, err := validation.ValidateInput(raw, h.schema)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	// Bad coordinates still reach the planner, which answers with a Failed decision.
	if strings.TrimSpace(input.Job.ID) == "" {
		return nil, errors.NewInvalidJobError("job.id is blank")
	}
	return &input, nil
}

// execute always yields a decision. A roster that cannot be loaded is planned
// as an empty pool so the process still receives a Failed decision.
func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	pool := input.Technicians
	if len(pool) == 0 && len(input.TechnicianIDs) > 0 && h.deps.Technicians != nil {
		loaded, err := h.deps.Technicians.LoadByIDs(ctx, input.TechnicianIDs)
		if err != nil {
			h.logger.Error("failed to load technicians for diversion", map[string]interface{}{
				"jobId":     input.Job.ID,
				"errorCode": string(errors.CodeOf(err)),
				"error":     err.Error(),
			})
		}
		pool = loaded
	}

	job := input.Job
	decision := h.planner.Plan(ctx, &job, pool)
	output := &Output{Decision: decision}

	if input.SendNotifications && h.deps.Dispatcher != nil && len(decision.Notifications) > 0 {
		output.Delivery = h.deps.Dispatcher.Dispatch(ctx, decision.Notifications)
	}

	if h.deps.Audit != nil {
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.AuditTimeout)
		if err := h.deps.Audit.RecordDecision(auditCtx, decision, output.Delivery); err != nil {
			h.logger.Warn("failed to record diversion decision", map[string]interface{}{
				"decisionId": decision.ID,
				"error":      err.Error(),
			})
		}
		cancel()
	}

	h.logger.Info("diversion planned", map[string]interface{}{
		"jobId":         job.ID,
		"decisionId":    decision.ID,
		"status":        string(decision.Status),
		"diversionType": string(decision.DiversionType),
		"technicianId":  decision.TechnicianID,
	})

	return output
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) *Output {
	return h.execute(ctx, input)
}

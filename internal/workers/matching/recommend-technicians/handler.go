// internal/workers/matching/recommend-technicians/handler.go
package recommendtechnicians

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/common/metrics"
	"dispatch-workers/internal/common/validation"
	"dispatch-workers/internal/matching/geo"
	"dispatch-workers/internal/models"
	"dispatch-workers/internal/repository"
	"dispatch-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "recommend-technicians"
)

// Recommender ranks a technician pool for a job.
type Recommender interface {
	Recommend(ctx context.Context, job *models.Job, technicians []models.Technician, maxResults int) []models.Recommendation
}

type Handler struct {
	config       *Config
	recommender  Recommender
	technicians  repository.TechnicianRepository
	schema       map[string]interface{}
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

// NewHandler accepts a nil repository; jobs must then carry the full pool.
func NewHandler(config *Config, recommender Recommender, technicians repository.TechnicianRepository, log logger.Logger) (*Handler, error) {
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
		recommender:  recommender,
		technicians:  technicians,
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

	output, err := h.execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

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
	if strings.TrimSpace(input.Job.ID) == "" {
		return nil, errors.NewInvalidJobError("job.id is blank")
	}
	if !geo.ValidCoordinates(input.Job.Location) {
		return nil, errors.NewInvalidJobError(fmt.Sprintf("job %s: location lat=%v lon=%v is out of range",
			input.Job.ID, input.Job.Location.Latitude, input.Job.Location.Longitude))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	pool := input.Technicians
	if len(pool) == 0 && len(input.TechnicianIDs) > 0 {
		if h.technicians == nil {
			return nil, errors.NewInvalidInputError("technicianIds given but no technician store is configured")
		}
		loaded, err := h.technicians.LoadByIDs(ctx, input.TechnicianIDs)
		if err != nil {
			return nil, err
		}
		pool = loaded
	}

	job := input.Job
	if job.TenantID == "" {
		job.TenantID = input.TenantID
	}

	maxResults := input.MaxRecommendations
	if maxResults <= 0 {
		maxResults = h.config.DefaultMaxRecommendations
	}

	recs := h.recommender.Recommend(ctx, &job, pool, maxResults)

	h.logger.Info("technicians recommended", map[string]interface{}{
		"jobId":    job.ID,
		"poolSize": len(pool),
		"count":    len(recs),
	})

	return &Output{
		JobID:           job.ID,
		Recommendations: recs,
		Count:           len(recs),
	}, nil
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

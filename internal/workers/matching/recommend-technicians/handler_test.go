package recommendtechnicians

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/matching/predictor"
	"dispatch-workers/internal/matching/recommend"
	"dispatch-workers/internal/matching/scoring"
	"dispatch-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockRecommender struct {
	mock.Mock
}

func (m *MockRecommender) Recommend(ctx context.Context, job *models.Job, technicians []models.Technician, maxResults int) []models.Recommendation {
	args := m.Called(ctx, job, technicians, maxResults)
	return args.Get(0).([]models.Recommendation)
}

type MockTechnicianRepository struct {
	mock.Mock
}

func (m *MockTechnicianRepository) LoadByIDs(ctx context.Context, ids []string) ([]models.Technician, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Technician), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "dispatch-process",
		ElementId:          "Activity_RecommendTechnicians",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

func validVariables() map[string]interface{} {
	return map[string]interface{}{
		"job": map[string]interface{}{
			"id":             "job-1",
			"serviceType":    "hvac",
			"priority":       "high",
			"requiredSkills": map[string]interface{}{"hvac": 3},
			"location":       map[string]interface{}{"latitude": 40.7128, "longitude": -74.006},
		},
		"technicians": []interface{}{
			map[string]interface{}{
				"id":           "tech-1",
				"isAvailable":  true,
				"skills":       map[string]interface{}{"hvac": 4},
				"baseLocation": map[string]interface{}{"latitude": 40.72, "longitude": -74.0},
			},
		},
		"maxRecommendations": 3,
		"tenantId":           "tenant-a",
	}
}

func newHandler(t *testing.T, rec Recommender, repo *MockTechnicianRepository) *Handler {
	var h *Handler
	var err error
	if repo == nil {
		h, err = NewHandler(DefaultConfig(), rec, nil, logger.NewTestLogger(t))
	} else {
		h, err = NewHandler(DefaultConfig(), rec, repo, logger.NewTestLogger(t))
	}
	require.NoError(t, err)
	return h
}

// ==========================
// Handler Creation
// ==========================

func TestNewHandler_InvalidConfig(t *testing.T) {
	_, err := NewHandler(&Config{Timeout: -time.Second, DefaultMaxRecommendations: 5}, &MockRecommender{}, nil, logger.NewNoOpLogger())
	assert.EqualError(t, err, "timeout must be positive")

	_, err = NewHandler(&Config{Timeout: time.Second}, &MockRecommender{}, nil, logger.NewNoOpLogger())
	assert.EqualError(t, err, "default_max_recommendations must be positive")
}

// ==========================
// Input Parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newHandler(t, &MockRecommender{}, nil)

	input, err := h.parseInput(createMockJob(1, validVariables()).Variables)
	require.NoError(t, err)
	assert.Equal(t, "job-1", input.Job.ID)
	assert.Equal(t, models.PriorityHigh, input.Job.Priority)
	assert.Equal(t, models.Level(3), input.Job.RequiredSkills["hvac"])
	require.Len(t, input.Technicians, 1)
	assert.Equal(t, 3, input.MaxRecommendations)
}

func TestHandler_ParseInput_Invalid(t *testing.T) {
	h := newHandler(t, &MockRecommender{}, nil)

	missingJob := validVariables()
	delete(missingJob, "job")

	missingLocation := validVariables()
	delete(missingLocation["job"].(map[string]interface{}), "location")

	negativeMax := validVariables()
	negativeMax["maxRecommendations"] = -1

	tests := []struct {
		name      string
		variables string
		contains  string
	}{
		{"malformed json", `{"job":`, "parse input"},
		{"missing job", mustJSON(missingJob), "job"},
		{"missing location", mustJSON(missingLocation), "job.location"},
		{"negative max", mustJSON(negativeMax), "maxRecommendations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput(tt.variables)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
			var stdErr *errors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Contains(t, stdErr.Details, tt.contains)
		})
	}
}

func TestHandler_ParseInput_InvalidJob(t *testing.T) {
	h := newHandler(t, &MockRecommender{}, nil)

	blankID := validVariables()
	blankID["job"].(map[string]interface{})["id"] = "   "

	offMap := validVariables()
	offMap["job"].(map[string]interface{})["location"] = map[string]interface{}{"latitude": 95.0, "longitude": -74.006}

	tests := []struct {
		name      string
		variables map[string]interface{}
		contains  string
	}{
		{"blank id", blankID, "job.id is blank"},
		{"latitude out of range", offMap, "job job-1: location lat=95"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput(mustJSON(tt.variables))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidJob, errors.CodeOf(err))
			var stdErr *errors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Contains(t, stdErr.Details, tt.contains)
			assert.Equal(t, "INVALID_JOB", errors.ConvertToBPMNError(stdErr).Code)
		})
	}
}

func mustJSON(v interface{}) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_InlinePool(t *testing.T) {
	rec := &MockRecommender{}
	expected := []models.Recommendation{{TechnicianID: "tech-1", OverallScore: 0.9}}
	rec.On("Recommend", mock.Anything,
		mock.MatchedBy(func(job *models.Job) bool { return job.ID == "job-1" && job.TenantID == "tenant-a" }),
		mock.MatchedBy(func(pool []models.Technician) bool { return len(pool) == 1 }),
		5,
	).Return(expected)

	h := newHandler(t, rec, nil)
	output, err := h.Execute(context.Background(), &Input{
		Job:         models.Job{ID: "job-1"},
		Technicians: []models.Technician{{ID: "tech-1"}},
		TenantID:    "tenant-a",
	})

	require.NoError(t, err)
	assert.Equal(t, "job-1", output.JobID)
	assert.Equal(t, expected, output.Recommendations)
	assert.Equal(t, 1, output.Count)
	rec.AssertExpectations(t)
}

func TestHandler_Execute_LoadsPoolByID(t *testing.T) {
	rec := &MockRecommender{}
	repo := &MockTechnicianRepository{}
	pool := []models.Technician{{ID: "tech-1"}, {ID: "tech-2"}}

	repo.On("LoadByIDs", mock.Anything, []string{"tech-1", "tech-2"}).Return(pool, nil)
	rec.On("Recommend", mock.Anything, mock.Anything, pool, 2).Return([]models.Recommendation{})

	h := newHandler(t, rec, repo)
	output, err := h.Execute(context.Background(), &Input{
		Job:                models.Job{ID: "job-1", TenantID: "tenant-b"},
		TechnicianIDs:      []string{"tech-1", "tech-2"},
		MaxRecommendations: 2,
	})

	require.NoError(t, err)
	assert.Zero(t, output.Count)
	assert.NotNil(t, output.Recommendations)
	repo.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestHandler_Execute_RepositoryFailure(t *testing.T) {
	repo := &MockTechnicianRepository{}
	repo.On("LoadByIDs", mock.Anything, []string{"tech-1"}).
		Return(nil, errors.NewQueryExecutionFailedError("load_technicians", assert.AnError))

	h := newHandler(t, &MockRecommender{}, repo)
	_, err := h.Execute(context.Background(), &Input{Job: models.Job{ID: "job-1"}, TechnicianIDs: []string{"tech-1"}})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, errors.CodeOf(err))
}

func TestHandler_Execute_IDsWithoutRepository(t *testing.T) {
	h := newHandler(t, &MockRecommender{}, nil)
	_, err := h.Execute(context.Background(), &Input{Job: models.Job{ID: "job-1"}, TechnicianIDs: []string{"tech-1"}})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestHandler_Execute_WithOrchestrator(t *testing.T) {
	log := logger.NewTestLogger(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	engine := scoring.NewEngine(scoring.DefaultConfig(), log, scoring.WithClock(func() time.Time { return now }))
	orchestrator := recommend.NewOrchestrator(engine, predictor.NewBlender(nil, predictor.Config{}, log), recommend.Config{}, log)

	h := newHandler(t, orchestrator, nil)
	input, err := h.parseInput(mustJSON(validVariables()))
	require.NoError(t, err)

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, 1, output.Count)
	assert.Equal(t, "tech-1", output.Recommendations[0].TechnicianID)
	assert.Equal(t, 1.0, output.Recommendations[0].Scores.Skills)
}

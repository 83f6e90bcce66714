package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/matching/scoring"
	"dispatch-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPredictor struct {
	mock.Mock
}

func (m *MockPredictor) Predict(ctx context.Context, tenantID string, features Features) (float64, error) {
	args := m.Called(ctx, tenantID, features)
	return args.Get(0).(float64), args.Error(1)
}

type slowPredictor struct{}

func (slowPredictor) Predict(ctx context.Context, tenantID string, features Features) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func fixture() (*models.Job, *models.Technician, scoring.Result) {
	job := &models.Job{ID: "job-1", TenantID: "tenant-a", Priority: models.PriorityHigh}
	tech := &models.Technician{ID: "tech-1", CurrentWorkload: 1}
	res := scoring.Result{
		TechnicianID: "tech-1",
		Scores: models.ComponentScores{
			Skills:       0.8,
			Distance:     0.9,
			Availability: 0.6,
			SLA:          0.9,
			Geographic:   0.64,
		},
		Overall: 0.77,
		Geo:     models.GeographicMatch{DistanceKm: 8},
	}
	return job, tech, res
}

func TestBlender_WithPredictor(t *testing.T) {
	job, tech, res := fixture()
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, "tenant-a", mock.Anything).Return(0.5, nil)

	blender := NewBlender(p, Config{Timeout: time.Second}, logger.NewTestLogger(t))
	out := blender.Blend(context.Background(), "tenant-a", job, tech, res, 20)

	expected := 0.35*0.5 + 0.25*0.8 + 0.10*0.9 + 0.15*0.64 + 0.10*0.6 + 0.03*0.9 + 0.02*(1-0.2)
	assert.Equal(t, SourcePredictor, out.Source)
	require.NotNil(t, out.Predicted)
	assert.Equal(t, 0.5, *out.Predicted)
	assert.InDelta(t, expected, out.Score, 1e-9)
	p.AssertExpectations(t)
}

func TestBlender_FeaturesAreNormalised(t *testing.T) {
	job, tech, res := fixture()
	tech.CurrentWorkload = 12
	res.Geo.DistanceKm = 500

	blender := NewBlender(nil, Config{MaxDistanceKm: 200, MaxWorkload: 5}, logger.NewNoOpLogger())
	f := blender.BuildFeatures(job, tech, res, 300)

	assert.Equal(t, 1.0, f.NormalizedDistance)
	assert.Equal(t, 1.0, f.NormalizedWorkload)
	assert.Equal(t, 1.0, f.NormalizedTravel)
	assert.Equal(t, 0.75, f.Priority)
}

func TestBlender_PredictorErrorFallsBackToRuleScore(t *testing.T) {
	job, tech, res := fixture()
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, mock.Anything, mock.Anything).Return(0.0, errors.New("model not loaded"))

	blender := NewBlender(p, Config{}, logger.NewTestLogger(t))
	out := blender.Blend(context.Background(), "tenant-a", job, tech, res, 20)

	assert.Equal(t, SourceRuleOnly, out.Source)
	assert.Nil(t, out.Predicted)
	assert.Equal(t, res.Overall, out.Score)
}

func TestBlender_OutOfRangePredictionFallsBack(t *testing.T) {
	job, tech, res := fixture()
	p := new(MockPredictor)
	p.On("Predict", mock.Anything, mock.Anything, mock.Anything).Return(1.7, nil)

	blender := NewBlender(p, Config{}, logger.NewTestLogger(t))
	out := blender.Blend(context.Background(), "tenant-a", job, tech, res, 20)

	assert.Equal(t, SourceRuleOnly, out.Source)
	assert.Equal(t, res.Overall, out.Score)
}

func TestBlender_PredictorTimeoutFallsBack(t *testing.T) {
	job, tech, res := fixture()

	blender := NewBlender(slowPredictor{}, Config{Timeout: 10 * time.Millisecond}, logger.NewTestLogger(t))

	start := time.Now()
	out := blender.Blend(context.Background(), "tenant-a", job, tech, res, 20)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, SourceRuleOnly, out.Source)
	assert.Equal(t, res.Overall, out.Score)
}

func TestBlender_NoPredictorUsesApproximation(t *testing.T) {
	job, tech, res := fixture()
	blender := NewBlender(nil, Config{}, logger.NewNoOpLogger())

	out := blender.Blend(context.Background(), "tenant-a", job, tech, res, 20)
	again := blender.Blend(context.Background(), "tenant-a", job, tech, res, 20)

	assert.Equal(t, SourceApproximation, out.Source)
	require.NotNil(t, out.Predicted)
	assert.Equal(t, res.Overall, out.Score, "the rule-based overall score ranks without a predictor")
	assert.InDelta(t, Approximate(blender.BuildFeatures(job, tech, res, 20)), *out.Predicted, 1e-9)
	assert.Equal(t, out.Score, again.Score)
}

func TestBlender_FailedScoreStaysZero(t *testing.T) {
	job, tech, res := fixture()
	res.Err = apperrors.NewScoringFailedError("tech-1", errors.New("boom"))
	res.Overall = 0

	out := NewBlender(nil, Config{}, logger.NewNoOpLogger()).Blend(context.Background(), "", job, tech, res, 0)
	assert.Equal(t, 0.0, out.Score)
}

func TestApproximate_Monotonic(t *testing.T) {
	base := Features{Skills: 0.5, NormalizedDistance: 0.5, NormalizedWorkload: 0.5, SLA: 0.5, NormalizedTravel: 0.5, Priority: 0.5}

	better := base
	better.Skills = 0.9
	assert.Greater(t, Approximate(better), Approximate(base))

	farther := base
	farther.NormalizedDistance = 0.9
	assert.Less(t, Approximate(farther), Approximate(base))

	assert.InDelta(t, 1.0, Approximate(Features{Skills: 1, SLA: 1, Priority: 1}), 1e-9)
}

// ==========================
// HTTP predictor
// ==========================

func TestHTTPPredictor_Predict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/predict", r.URL.Path)
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tenant-a", req.TenantID)
		assert.Equal(t, 0.8, req.Features.Skills)
		_ = json.NewEncoder(w).Encode(predictResponse{Score: 0.66})
	}))
	defer server.Close()

	p := NewHTTPPredictor(server.URL, "", time.Second)
	score, err := p.Predict(context.Background(), "tenant-a", Features{Skills: 0.8})
	require.NoError(t, err)
	assert.Equal(t, 0.66, score)
}

func TestHTTPPredictor_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewHTTPPredictor(server.URL, "", time.Second)
	_, err := p.Predict(context.Background(), "tenant-a", Features{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePredictorUnavailable, apperrors.CodeOf(err))
}

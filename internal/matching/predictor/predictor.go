// Package predictor blends an optional learned score with the rule-based score.
package predictor

import (
	"context"
	stderrors "errors"
	"time"

	"dispatch-workers/internal/common/errors"
	commonhttp "dispatch-workers/internal/common/http"
)

// Features is the model input for one (job, technician) pair. All values are
// normalised to [0,1] except where noted.
type Features struct {
	Skills             float64 `json:"skills"`
	NormalizedDistance float64 `json:"normalizedDistance"`
	NormalizedWorkload float64 `json:"normalizedWorkload"`
	SLA                float64 `json:"sla"`
	NormalizedTravel   float64 `json:"normalizedTravel"`
	Priority           float64 `json:"priority"`
	Availability       float64 `json:"availability"`
	Geographic         float64 `json:"geographic"`
}

// Predictor returns a learned match score in [0,1]. Implementations may be slow
// or fail; callers bound them with a context deadline.
type Predictor interface {
	Predict(ctx context.Context, tenantID string, features Features) (float64, error)
}

type predictRequest struct {
	TenantID string   `json:"tenantId"`
	Features Features `json:"features"`
}

type predictResponse struct {
	Score float64 `json:"score"`
}

// HTTPPredictor calls a remote scoring service.
type HTTPPredictor struct {
	client  *commonhttp.Client
	timeout time.Duration
}

func NewHTTPPredictor(baseURL, apiKey string, timeout time.Duration) *HTTPPredictor {
	return &HTTPPredictor{
		client:  commonhttp.NewClient(baseURL, apiKey, timeout),
		timeout: timeout,
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, tenantID string, features Features) (float64, error) {
	var resp predictResponse
	err := p.client.PostJSON(ctx, "/v1/predict", predictRequest{TenantID: tenantID, Features: features}, &resp)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return 0, errors.NewPredictorTimeoutError(p.timeout)
		}
		return 0, errors.NewPredictorUnavailableError(err)
	}
	return resp.Score, nil
}

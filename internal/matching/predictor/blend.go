package predictor

import (
	"context"
	"fmt"
	"math"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/common/metrics"
	"dispatch-workers/internal/matching/scoring"
	"dispatch-workers/internal/models"
)

const (
	predictorWeight    = 0.35
	skillsWeight       = 0.25
	distanceWeight     = 0.10
	geographicWeight   = 0.15
	availabilityWeight = 0.10
	slaWeight          = 0.03
	workloadWeight     = 0.02

	// Travel time that normalises to 1.0.
	maxTravelMinutes = 120.0
)

// Source records which path produced a blended score.
type Source string

const (
	SourcePredictor     Source = "predictor"
	SourceApproximation Source = "approximation"
	SourceRuleOnly      Source = "rule_only"
)

type Blended struct {
	Score     float64
	Predicted *float64
	Source    Source
}

type Config struct {
	Timeout       time.Duration
	MaxDistanceKm float64
	MaxWorkload   int
}

// Blender combines the rule-based result with a learned or approximated score.
type Blender struct {
	predictor Predictor
	cfg       Config
	logger    logger.Logger
}

// NewBlender accepts a nil predictor, in which case Blend keeps the rule-based
// overall score and reports the closed-form approximation as the prediction.
func NewBlender(p Predictor, cfg Config, log logger.Logger) *Blender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 800 * time.Millisecond
	}
	if cfg.MaxDistanceKm <= 0 {
		cfg.MaxDistanceKm = 200
	}
	if cfg.MaxWorkload <= 0 {
		cfg.MaxWorkload = 5
	}
	return &Blender{predictor: p, cfg: cfg, logger: log}
}

// BuildFeatures normalises the scoring inputs for the predictor.
func (b *Blender) BuildFeatures(job *models.Job, tech *models.Technician, res scoring.Result, travelMinutes float64) Features {
	return Features{
		Skills:             res.Scores.Skills,
		NormalizedDistance: ratio(res.Geo.DistanceKm, b.cfg.MaxDistanceKm),
		NormalizedWorkload: ratio(float64(tech.CurrentWorkload), float64(b.cfg.MaxWorkload)),
		SLA:                res.Scores.SLA,
		NormalizedTravel:   ratio(travelMinutes, maxTravelMinutes),
		Priority:           float64(job.EffectivePriority().Weight()) / float64(models.PriorityEmergency.Weight()),
		Availability:       res.Scores.Availability,
		Geographic:         res.Scores.Geographic,
	}
}

// Approximate is the deterministic stand-in for a learned predictor.
func Approximate(f Features) float64 {
	score := 0.35*f.Skills +
		0.20*(1-f.NormalizedDistance) +
		0.15*(1-f.NormalizedWorkload) +
		0.15*f.SLA +
		0.10*(1-f.NormalizedTravel) +
		0.05*f.Priority
	return clamp01(score)
}

// Blend never fails: predictor errors degrade to the rule-only overall score.
func (b *Blender) Blend(ctx context.Context, tenantID string, job *models.Job, tech *models.Technician, res scoring.Result, travelMinutes float64) Blended {
	if res.Err != nil {
		return Blended{Score: 0, Source: SourceRuleOnly}
	}

	features := b.BuildFeatures(job, tech, res, travelMinutes)

	// Without a learned model the priority-weighted rule score ranks; the
	// approximation is reported alongside it.
	if b.predictor == nil {
		approx := Approximate(features)
		return Blended{Score: res.Overall, Predicted: &approx, Source: SourceApproximation}
	}

	predCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	predicted, err := b.predictor.Predict(predCtx, tenantID, features)
	if err == nil && (math.IsNaN(predicted) || predicted < 0 || predicted > 1) {
		err = errors.NewPredictorUnavailableError(fmt.Errorf("score %v outside [0,1]", predicted))
	}
	if err != nil {
		if predCtx.Err() == context.DeadlineExceeded {
			err = errors.NewPredictorTimeoutError(b.cfg.Timeout)
		}
		reason := "error"
		if errors.CodeOf(err) == errors.ErrCodePredictorTimeout {
			reason = "timeout"
		}
		metrics.PredictorFallbacks.WithLabelValues(reason).Inc()
		b.logger.Warn("Predictor failed, using rule-based score", map[string]interface{}{
			"technician_id": tech.ID,
			"tenant_id":     tenantID,
			"reason":        reason,
			"error":         err.Error(),
		})
		return Blended{Score: res.Overall, Source: SourceRuleOnly}
	}

	return Blended{Score: combine(predicted, res.Scores, features), Predicted: &predicted, Source: SourcePredictor}
}

func combine(predicted float64, s models.ComponentScores, f Features) float64 {
	score := predictorWeight*predicted +
		skillsWeight*s.Skills +
		distanceWeight*s.Distance +
		geographicWeight*s.Geographic +
		availabilityWeight*s.Availability +
		slaWeight*s.SLA +
		workloadWeight*(1-f.NormalizedWorkload)
	return clamp01(score)
}

func ratio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp01(v / max)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

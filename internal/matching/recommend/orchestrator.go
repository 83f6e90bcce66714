// Package recommend produces the ranked technician list for a job.
package recommend

import (
	"context"
	"sort"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/common/observability"
	"dispatch-workers/internal/explain"
	"dispatch-workers/internal/matching/predictor"
	"dispatch-workers/internal/matching/scoring"
	"dispatch-workers/internal/models"
)

type Config struct {
	DefaultMaxResults int
	AverageSpeedKmh   float64
	ExplainTimeout    time.Duration
}

type Orchestrator struct {
	engine    *scoring.Engine
	blender   *predictor.Blender
	explainer explain.Explainer
	obs       *observability.Observability
	cfg       Config
	logger    logger.Logger
}

type Option func(*Orchestrator)

// WithExplainer fills Recommendation.Explanation after ranking.
func WithExplainer(e explain.Explainer) Option {
	return func(o *Orchestrator) { o.explainer = e }
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func NewOrchestrator(engine *scoring.Engine, blender *predictor.Blender, cfg Config, log logger.Logger, opts ...Option) *Orchestrator {
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = 5
	}
	if cfg.AverageSpeedKmh <= 0 {
		cfg.AverageSpeedKmh = 40
	}
	if cfg.ExplainTimeout <= 0 {
		cfg.ExplainTimeout = 2 * time.Second
	}
	o := &Orchestrator{
		engine:  engine,
		blender: blender,
		cfg:     cfg,
		logger:  log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Recommend ranks the pool for a job. It never fails: invalid input or an empty
// pool yields an empty list.
func (o *Orchestrator) Recommend(ctx context.Context, job *models.Job, technicians []models.Technician, maxResults int) []models.Recommendation {
	if job == nil {
		o.logger.Warn("Recommendation requested without a job", nil)
		return []models.Recommendation{}
	}
	if maxResults <= 0 {
		maxResults = o.cfg.DefaultMaxResults
	}

	candidates := make([]models.Technician, 0, len(technicians))
	for _, tech := range technicians {
		if tech.IsAvailable || tech.Interruptible {
			candidates = append(candidates, tech)
		}
	}
	if o.obs != nil {
		o.obs.RecordCandidates(ctx, "recommend", len(candidates))
	}
	if len(candidates) == 0 {
		o.logger.Info("No candidate technicians for job", map[string]interface{}{
			"job_id":     job.ID,
			"error_code": string(errors.ErrCodeEmptyPool),
			"pool_size":  len(technicians),
		})
		return []models.Recommendation{}
	}

	results := o.engine.ScoreBatch(job, candidates)

	recs := make([]models.Recommendation, 0, len(candidates))
	for i, res := range results {
		if res.Err != nil {
			continue
		}
		tech := &candidates[i]
		travel := o.travelMinutes(res.Geo.DistanceKm)
		blended := o.blender.Blend(ctx, job.TenantID, job, tech, res, travel)
		if blended.Score <= 0 {
			continue
		}
		recs = append(recs, models.Recommendation{
			TechnicianID:   tech.ID,
			TechnicianName: tech.Name,
			OverallScore:   blended.Score,
			RuleScore:      res.Overall,
			PredictedScore: blended.Predicted,
			Scores:         res.Scores,
			DistanceKm:     res.Geo.DistanceKm,
			TravelMinutes:  travel,
			Geo:            res.Geo,
		})
	}

	Rank(recs)
	if len(recs) > maxResults {
		recs = recs[:maxResults]
	}

	if o.explainer != nil {
		o.explain(ctx, job, candidates, recs)
	}

	o.logger.Debug("Recommendations ranked", map[string]interface{}{
		"job_id":     job.ID,
		"candidates": len(candidates),
		"returned":   len(recs),
	})
	return recs
}

// Rank orders by score descending, then distance ascending, then id.
func Rank(recs []models.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.OverallScore != b.OverallScore {
			return a.OverallScore > b.OverallScore
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.TechnicianID < b.TechnicianID
	})
}

func (o *Orchestrator) travelMinutes(distanceKm float64) float64 {
	return distanceKm / o.cfg.AverageSpeedKmh * 60
}

func (o *Orchestrator) explain(ctx context.Context, job *models.Job, pool []models.Technician, recs []models.Recommendation) {
	byID := make(map[string]*models.Technician, len(pool))
	for i := range pool {
		byID[pool[i].ID] = &pool[i]
	}

	for i := range recs {
		tech, ok := byID[recs[i].TechnicianID]
		if !ok {
			continue
		}
		explainCtx, cancel := context.WithTimeout(ctx, o.cfg.ExplainTimeout)
		text, err := o.explainer.Explain(explainCtx, job, tech, recs[i])
		cancel()
		if err != nil {
			o.logger.Warn("Explanation unavailable", map[string]interface{}{
				"job_id":        job.ID,
				"technician_id": tech.ID,
				"error":         err.Error(),
			})
			continue
		}
		recs[i].Explanation = text
	}
}

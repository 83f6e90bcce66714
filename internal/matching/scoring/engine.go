// Package scoring rates technicians against a job using five weighted criteria.
package scoring

import (
	"fmt"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/common/metrics"
	"dispatch-workers/internal/matching/geo"
	"dispatch-workers/internal/models"
)

// Config carries the weight table and thresholds as data.
type Config struct {
	Weights              map[models.Priority]Weights
	Multipliers          map[models.Priority]float64
	DefaultMaxDistanceKm float64
}

func DefaultConfig() Config {
	return Config{
		Weights:              DefaultWeights,
		Multipliers:          DefaultMultipliers,
		DefaultMaxDistanceKm: 200,
	}
}

// Result is the score of one technician for one job.
type Result struct {
	TechnicianID string
	Scores       models.ComponentScores
	Overall      float64
	Geo          models.GeographicMatch
	// Err is set when scoring failed; Overall is then 0.
	Err error
}

type Engine struct {
	cfg    Config
	now    func() time.Time
	logger logger.Logger
}

type Option func(*Engine)

// WithClock replaces time.Now for lead-time calculations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(cfg Config, log logger.Logger, opts ...Option) *Engine {
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights
	}
	if cfg.Multipliers == nil {
		cfg.Multipliers = DefaultMultipliers
	}
	if cfg.DefaultMaxDistanceKm <= 0 {
		cfg.DefaultMaxDistanceKm = 200
	}

	e := &Engine{cfg: cfg, now: time.Now, logger: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now exposes the engine clock so collaborators share one notion of time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Weights returns the row used for a priority, falling back to Normal.
func (e *Engine) Weights(p models.Priority) Weights {
	if w, ok := e.cfg.Weights[p]; ok {
		return w
	}
	return e.cfg.Weights[models.PriorityNormal]
}

func (e *Engine) multiplier(p models.Priority) float64 {
	if m, ok := e.cfg.Multipliers[p]; ok {
		return m
	}
	return 1.0
}

// Score computes the component and overall scores for one technician.
func (e *Engine) Score(job *models.Job, tech *models.Technician) (res Result, err error) {
	if tech != nil {
		res.TechnicianID = tech.ID
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{TechnicianID: res.TechnicianID}
			err = errors.NewScoringFailedError(res.TechnicianID, fmt.Errorf("panic: %v", r))
			res.Err = err
		}
	}()

	if job == nil || tech == nil {
		err = errors.NewInvalidInputError("job and technician are required")
		res.Err = err
		return res, err
	}
	if !geo.ValidCoordinates(job.Location) {
		err = errors.NewInvalidLocationError("job "+job.ID, job.Location.Latitude, job.Location.Longitude)
		res.Err = err
		return res, err
	}
	if !geo.ValidCoordinates(tech.BaseLocation) {
		err = errors.NewInvalidLocationError("technician "+tech.ID, tech.BaseLocation.Latitude, tech.BaseLocation.Longitude)
		res.Err = err
		return res, err
	}

	match := geo.Match(job, tech)

	maxDistance := tech.Coverage.MaxTravelDistanceKm
	if maxDistance <= 0 {
		maxDistance = e.cfg.DefaultMaxDistanceKm
	}

	scores := models.ComponentScores{
		Skills:       SkillsScore(job.RequiredSkills, tech.Skills),
		Distance:     DistanceScore(match.DistanceKm, maxDistance),
		Availability: AvailabilityScore(job, tech, e.now()),
		SLA:          SLAScore(tech),
		Geographic:   GeographicScore(match),
	}

	priority := job.EffectivePriority()
	overall := e.Weights(priority).Apply(scores) * e.multiplier(priority)

	res.Scores = scores
	res.Geo = match
	res.Overall = clamp01(overall)
	return res, nil
}

// ScoreBatch scores every technician. A failure for one technician is logged and
// recorded as a zero score so the rest of the pool is still ranked.
func (e *Engine) ScoreBatch(job *models.Job, techs []models.Technician) []Result {
	results := make([]Result, len(techs))
	for i := range techs {
		res, err := e.Score(job, &techs[i])
		if err != nil {
			metrics.ScoringFailures.Inc()
			e.logger.Warn("Technician scoring failed", map[string]interface{}{
				"technician_id": techs[i].ID,
				"error_code":    string(errors.CodeOf(err)),
				"error":         err.Error(),
			})
		}
		results[i] = res
	}
	return results
}

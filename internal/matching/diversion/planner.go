// Package diversion picks the technician to send to an emergency job, including
// technicians that must be pulled off their current assignment.
package diversion

import (
	"context"
	"math"
	"sort"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/common/metrics"
	"dispatch-workers/internal/matching/geo"
	"dispatch-workers/internal/matching/scoring"
	"dispatch-workers/internal/models"
	"dispatch-workers/internal/routing"

	"github.com/google/uuid"
)

// SnapshotSource supplies live technician positions.
type SnapshotSource interface {
	Snapshots(ids []string) map[string]models.TrackingSnapshot
}

// RouteFinder supplies travel times to the emergency.
type RouteFinder interface {
	Route(ctx context.Context, req routing.Request) (models.CachedRoute, error)
}

type Config struct {
	NotifyCustomerOnFailure bool
	CustomerService         models.Contact
	AverageSpeedKmh         float64
}

type Planner struct {
	engine  *scoring.Engine
	routes  RouteFinder
	tracker SnapshotSource
	cfg     Config
	logger  logger.Logger
	now     func() time.Time
	newID   func() string
}

type Option func(*Planner)

func WithTracking(src SnapshotSource) Option {
	return func(p *Planner) { p.tracker = src }
}

func WithRoutes(r RouteFinder) Option {
	return func(p *Planner) { p.routes = r }
}

func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

func NewPlanner(engine *scoring.Engine, cfg Config, log logger.Logger, opts ...Option) *Planner {
	if cfg.AverageSpeedKmh <= 0 {
		cfg.AverageSpeedKmh = 40
	}
	p := &Planner{
		engine: engine,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type candidate struct {
	tech     models.Technician
	free     bool
	status   models.TechnicianStatus
	location models.Location
	eta      *float64
	cost     float64
	score    float64
	adjusted float64
	distance float64
}

// Plan always returns a decision. When nobody can be sent the decision is Failed
// and carries at most a customer notice.
func (p *Planner) Plan(ctx context.Context, job *models.Job, technicians []models.Technician) models.DiversionDecision {
	decision := models.DiversionDecision{
		ID:            p.newID(),
		Notifications: []models.NotificationAction{},
		DecidedAt:     p.now().UTC(),
	}

	if job == nil {
		return p.fail(decision, nil, "emergency job is missing")
	}
	decision.EmergencyJobID = job.ID
	if !geo.ValidCoordinates(job.Location) {
		return p.fail(decision, job, errors.NewInvalidLocationError("job "+job.ID, job.Location.Latitude, job.Location.Longitude).Error())
	}

	candidates := p.collect(job, technicians)
	p.score(job, candidates)

	viable := candidates[:0]
	for _, c := range candidates {
		if c.adjusted > 0 {
			viable = append(viable, c)
		}
	}
	if len(viable) == 0 {
		return p.fail(decision, job, "no free or interruptible technician available")
	}

	sort.SliceStable(viable, func(i, j int) bool {
		a, b := viable[i], viable[j]
		if a.adjusted != b.adjusted {
			return a.adjusted > b.adjusted
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.tech.ID < b.tech.ID
	})
	chosen := viable[0]

	travel := p.travelMinutes(ctx, job, chosen)
	diversionType := Classify(chosen.free, chosen.status)

	var delay float64
	if diversionType != models.DiversionAvailable {
		outstanding := 0.0
		if chosen.eta != nil {
			outstanding = *chosen.eta
		}
		delay = math.Max(0, travel-outstanding)
	}

	decision.Status = models.DecisionSucceeded
	decision.TechnicianID = chosen.tech.ID
	decision.TechnicianName = chosen.tech.Name
	decision.DiversionType = diversionType
	decision.EstimatedDelayMinutes = delay
	decision.TravelMinutes = travel
	decision.DistanceKm = chosen.distance
	decision.Score = chosen.adjusted
	decision.InterruptionCost = chosen.cost
	if chosen.tech.CurrentAssignment != nil && !chosen.free {
		decision.PreviousJobID = chosen.tech.CurrentAssignment.JobID
	}
	decision.Notifications = p.notifications(job, &chosen.tech, decision)

	metrics.DiversionDecisions.WithLabelValues(string(diversionType)).Inc()
	p.logger.Info("Emergency diversion planned", map[string]interface{}{
		"decision_id":       decision.ID,
		"job_id":            job.ID,
		"technician_id":     chosen.tech.ID,
		"diversion_type":    string(diversionType),
		"interruption_cost": chosen.cost,
		"delay_minutes":     delay,
		"candidates":        len(viable),
	})
	return decision
}

// collect splits the pool into free and interruptible candidates, overlaying the
// live tracking snapshot where tracking is enabled.
func (p *Planner) collect(job *models.Job, technicians []models.Technician) []candidate {
	var live map[string]models.TrackingSnapshot
	if p.tracker != nil {
		ids := make([]string, 0, len(technicians))
		for _, t := range technicians {
			ids = append(ids, t.ID)
		}
		live = p.tracker.Snapshots(ids)
	}

	emergency := job.EffectivePriority()
	out := make([]candidate, 0, len(technicians))

	for _, tech := range technicians {
		c := candidate{tech: tech, status: tech.Status, location: tech.BaseLocation}
		if c.status == "" {
			c.status = models.StatusAvailable
		}
		if tech.CurrentAssignment != nil {
			eta := tech.CurrentAssignment.ETAMinutes
			c.eta = &eta
		}
		if snap, ok := live[tech.ID]; ok && snap.TrackingEnabled {
			c.location = snap.Location
			c.status = snap.Status
			if snap.EstimatedArrivalMinutes != nil {
				eta := *snap.EstimatedArrivalMinutes
				c.eta = &eta
			}
		}

		engaged := c.status.Engaged() || tech.CurrentAssignment != nil
		switch {
		case !engaged && tech.IsAvailable:
			c.free = true
		case engaged && tech.Interruptible:
			current := models.PriorityNormal
			if tech.CurrentAssignment != nil && tech.CurrentAssignment.Priority != "" {
				current = tech.CurrentAssignment.Priority
			}
			c.cost = InterruptionCost(emergency, Engagement{
				Status:          c.status,
				CurrentPriority: current,
				ETAMinutes:      c.eta,
				SLASuccessRate:  tech.SLASuccessRate,
			})
			if c.cost >= ExclusionCost {
				p.logger.Debug("Technician too costly to interrupt", map[string]interface{}{
					"technician_id":     tech.ID,
					"interruption_cost": c.cost,
				})
				continue
			}
		default:
			continue
		}
		out = append(out, c)
	}
	return out
}

// score rates each candidate from where it is now. Interruptible technicians are
// scored as available for the emergency; the interruption cost carries their
// engagement instead.
func (p *Planner) score(job *models.Job, candidates []candidate) {
	for i := range candidates {
		c := &candidates[i]
		tech := c.tech
		tech.BaseLocation = c.location
		tech.IsAvailable = true

		res, err := p.engine.Score(job, &tech)
		if err != nil {
			metrics.ScoringFailures.Inc()
			p.logger.Warn("Diversion candidate excluded", map[string]interface{}{
				"technician_id": tech.ID,
				"error_code":    string(errors.CodeOf(err)),
				"error":         err.Error(),
			})
			continue
		}

		c.score = res.Overall
		c.distance = res.Geo.DistanceKm
		c.adjusted = res.Overall
		if !c.free {
			c.adjusted = AdjustedScore(res.Overall, c.cost)
		}
	}
}

func (p *Planner) travelMinutes(ctx context.Context, job *models.Job, c candidate) float64 {
	if p.routes != nil {
		route, err := p.routes.Route(ctx, routing.Request{
			TechnicianID: c.tech.ID,
			Origin:       c.location,
			Destination:  job.Location,
			Emergency:    true,
		})
		if err == nil {
			return route.TravelMinutes()
		}
		p.logger.Warn("Route unavailable for diversion, using straight-line estimate", map[string]interface{}{
			"technician_id": c.tech.ID,
			"error":         err.Error(),
		})
	}
	return c.distance / p.cfg.AverageSpeedKmh * 60
}

func (p *Planner) fail(decision models.DiversionDecision, job *models.Job, reason string) models.DiversionDecision {
	decision.Status = models.DecisionFailed
	decision.DiversionType = models.DiversionFailed
	decision.Reason = reason

	if p.cfg.NotifyCustomerOnFailure && job != nil && job.Customer.HasChannel() {
		decision.Notifications = append(decision.Notifications, p.noTechnicianNotice(job))
	}

	err := errors.NewNoDiversionCandidateError(decision.EmergencyJobID, reason)
	metrics.DiversionDecisions.WithLabelValues(string(models.DiversionFailed)).Inc()
	p.logger.Warn("Emergency diversion failed", map[string]interface{}{
		"decision_id": decision.ID,
		"job_id":      decision.EmergencyJobID,
		"error_code":  string(err.Code),
		"error":       err.Error(),
		"reason":      reason,
	})
	return decision
}

package diversion

import (
	"math"

	"dispatch-workers/internal/models"
)

const (
	// ExclusionCost and above means a technician is too costly to pull off their job.
	ExclusionCost = 0.8
	// InterruptionDiscount scales how much the cost reduces a candidate's score.
	InterruptionDiscount = 0.3

	lowETAMinutes     = 30.0
	highPerformerRate = 0.9
)

var progressCost = map[models.TechnicianStatus]float64{
	models.StatusEnRoute: 0.2,
	models.StatusOnSite:  0.5,
	models.StatusBusy:    0.8,
}

// Engagement describes what an interruptible technician is doing right now.
type Engagement struct {
	Status          models.TechnicianStatus
	CurrentPriority models.Priority
	ETAMinutes      *float64
	SLASuccessRate  *float64
}

// InterruptionCost estimates in [0,1] how disruptive a diversion would be.
func InterruptionCost(emergency models.Priority, e Engagement) float64 {
	current := e.CurrentPriority
	if current == "" {
		current = models.PriorityNormal
	}

	var cost float64
	if emergency.Weight() <= current.Weight() {
		cost += 0.4
	}

	if progress, ok := progressCost[e.Status]; ok {
		cost += progress
	} else {
		cost += 0.1
	}

	if e.ETAMinutes != nil && *e.ETAMinutes < lowETAMinutes {
		cost += 0.3
	}
	if e.SLASuccessRate != nil && *e.SLASuccessRate > highPerformerRate {
		cost += 0.1
	}

	// Round away float noise so 0.5+0.3 compares equal to the exclusion threshold.
	cost = math.Round(cost*1000) / 1000
	return math.Min(1.0, cost)
}

// AdjustedScore discounts a raw score by the interruption cost.
func AdjustedScore(score, cost float64) float64 {
	return score * (1 - cost*InterruptionDiscount)
}

// Classify maps the pre-diversion state of the chosen technician to a diversion type.
func Classify(free bool, status models.TechnicianStatus) models.DiversionType {
	if free {
		return models.DiversionAvailable
	}
	switch status {
	case models.StatusOnSite, models.StatusBusy:
		return models.DiversionInterrupted
	default:
		return models.DiversionRerouted
	}
}

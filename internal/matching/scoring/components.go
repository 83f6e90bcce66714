package scoring

import (
	"math"
	"strings"
	"time"

	"dispatch-workers/internal/models"
)

// Distance step thresholds in km and their scores.
var distanceSteps = []struct {
	maxKm float64
	score float64
}{
	{5, 1.0},
	{10, 0.9},
	{20, 0.7},
	{50, 0.5},
	{100, 0.3},
}

// Hours-until-job thresholds and their availability scores.
var leadTimeSteps = []struct {
	minHours float64
	score    float64
}{
	{24, 1.0},
	{12, 0.9},
	{6, 0.8},
	{2, 0.6},
	{1, 0.4},
}

// Workload penalty indexed by current job count; the last entry covers 4+.
var workloadPenalty = []float64{0, 0.1, 0.3, 0.5, 0.7}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// SkillsScore averages per-skill credit: full credit when the technician meets the
// level, 70% of the level ratio otherwise. Non-numeric requirements always match.
func SkillsScore(required map[string]models.RequiredLevel, skills map[string]int) float64 {
	if len(required) == 0 {
		return 1.0
	}
	if len(skills) == 0 {
		return 0.0
	}

	normalized := make(map[string]int, len(skills))
	for name, level := range skills {
		normalized[strings.ToLower(strings.TrimSpace(name))] = level
	}

	var total float64
	for name, req := range required {
		if !req.Numeric {
			total += 1.0
			continue
		}
		level := normalized[strings.ToLower(strings.TrimSpace(name))]
		if level >= req.Level {
			total += 1.0
			continue
		}
		total += math.Max(0, float64(level)/float64(req.Level)*0.7)
	}

	return clamp01(total / float64(len(required)))
}

// DistanceScore is non-increasing in distance. Beyond 100 km it decays linearly
// towards maxDistanceKm, bounded to [0.1, 0.3] so it never exceeds the last step.
func DistanceScore(distanceKm, maxDistanceKm float64) float64 {
	if distanceKm < 0 || math.IsNaN(distanceKm) {
		return 0
	}
	for _, step := range distanceSteps {
		if distanceKm <= step.maxKm {
			return step.score
		}
	}
	if maxDistanceKm <= 0 {
		return 0.1
	}
	tail := math.Max(0.1, 1-distanceKm/maxDistanceKm)
	return math.Min(distanceSteps[len(distanceSteps)-1].score, tail)
}

// AvailabilityScore combines lead time until the job with a workload penalty.
func AvailabilityScore(job *models.Job, tech *models.Technician, now time.Time) float64 {
	if !tech.IsAvailable {
		return 0.0
	}

	scheduled := job.ScheduledAt
	if scheduled.IsZero() {
		scheduled = now
	}
	if !tech.Availability.Contains(scheduled) {
		return 0.1
	}

	hours := scheduled.Sub(now).Hours()
	score := 0.2
	for _, step := range leadTimeSteps {
		if hours >= step.minHours {
			score = step.score
			break
		}
	}

	workload := tech.CurrentWorkload
	if workload < 0 {
		workload = 0
	}
	if workload >= len(workloadPenalty) {
		workload = len(workloadPenalty) - 1
	}

	return math.Max(0, score-workloadPenalty[workload])
}

// SLAScore is the historical success rate, 0.5 when unknown.
func SLAScore(tech *models.Technician) float64 {
	if tech.SLASuccessRate == nil || math.IsNaN(*tech.SLASuccessRate) {
		return 0.5
	}
	return clamp01(*tech.SLASuccessRate)
}

var coverageMultiplier = map[models.CoverageType]float64{
	models.CoveragePrimary:   1.0,
	models.CoverageSecondary: 0.8,
	models.CoverageExtended:  0.6,
}

// GeographicScore credits the strongest coverage tier, adds 0.1 per matching
// preferred region and scales by the coverage type.
func GeographicScore(m models.GeographicMatch) float64 {
	var base float64
	switch {
	case m.InPrimaryCity:
		base = 1.0
	case m.InSecondaryCity:
		base = 0.8
	case m.PostalCodeMatch:
		base = 0.7
	case m.WithinServiceRadius:
		base = 0.6
	}
	base += 0.1 * float64(len(m.MatchingRegions))

	multiplier, ok := coverageMultiplier[m.CoverageType]
	if !ok {
		multiplier = 0.2
	}

	return clamp01(base * multiplier)
}

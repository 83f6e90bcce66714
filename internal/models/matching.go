// internal/models/matching.go
package models

// CoverageType classifies how well a technician's area covers a job location.
type CoverageType string

const (
	CoveragePrimary    CoverageType = "Primary"
	CoverageSecondary  CoverageType = "Secondary"
	CoverageExtended   CoverageType = "Extended"
	CoverageOutOfRange CoverageType = "OutOfRange"
)

// GeographicMatch is derived per (job, technician) pair and never persisted.
type GeographicMatch struct {
	WithinServiceRadius bool         `json:"withinServiceRadius"`
	InPrimaryCity       bool         `json:"inPrimaryCity"`
	InSecondaryCity     bool         `json:"inSecondaryCity"`
	PostalCodeMatch     bool         `json:"postalCodeMatch"`
	InPreferredRegion   bool         `json:"inPreferredRegion"`
	MatchingRegions     []string     `json:"matchingRegions,omitempty"`
	DistanceKm          float64      `json:"distanceKm"`
	CoverageType        CoverageType `json:"coverageType"`
}

// ComponentScores holds the five per-criterion scores, each in [0,1].
type ComponentScores struct {
	Skills       float64 `json:"skills"`
	Distance     float64 `json:"distance"`
	Availability float64 `json:"availability"`
	SLA          float64 `json:"sla"`
	Geographic   float64 `json:"geographic"`
}

// Recommendation is an immutable ranked match result.
type Recommendation struct {
	TechnicianID   string          `json:"technicianId"`
	TechnicianName string          `json:"technicianName,omitempty"`
	OverallScore   float64         `json:"overallScore"`
	RuleScore      float64         `json:"ruleScore"`
	PredictedScore *float64        `json:"predictedScore,omitempty"`
	Scores         ComponentScores `json:"scores"`
	DistanceKm     float64         `json:"distanceKm"`
	TravelMinutes  float64         `json:"travelMinutes"`
	Geo            GeographicMatch `json:"geographicMatch"`
	Explanation    string          `json:"explanation,omitempty"`
}

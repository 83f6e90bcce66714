package scoring

import "dispatch-workers/internal/models"

// Weights is one row of the priority weight table. Each row sums to 1.0.
type Weights struct {
	Skills       float64 `mapstructure:"skills" json:"skills"`
	Distance     float64 `mapstructure:"distance" json:"distance"`
	Availability float64 `mapstructure:"availability" json:"availability"`
	SLA          float64 `mapstructure:"sla" json:"sla"`
	Geographic   float64 `mapstructure:"geographic" json:"geographic"`
}

// Sum returns the total weight of the row.
func (w Weights) Sum() float64 {
	return w.Skills + w.Distance + w.Availability + w.SLA + w.Geographic
}

// Apply returns the weighted sum of the component scores.
func (w Weights) Apply(s models.ComponentScores) float64 {
	return w.Skills*s.Skills +
		w.Distance*s.Distance +
		w.Availability*s.Availability +
		w.SLA*s.SLA +
		w.Geographic*s.Geographic
}

// DefaultWeights: Emergency leans on skills and distance, Low on SLA and geography.
var DefaultWeights = map[models.Priority]Weights{
	models.PriorityEmergency: {Skills: 0.30, Distance: 0.30, Availability: 0.20, SLA: 0.10, Geographic: 0.10},
	models.PriorityHigh:      {Skills: 0.30, Distance: 0.20, Availability: 0.20, SLA: 0.15, Geographic: 0.15},
	models.PriorityNormal:    {Skills: 0.25, Distance: 0.20, Availability: 0.20, SLA: 0.15, Geographic: 0.20},
	models.PriorityLow:       {Skills: 0.20, Distance: 0.10, Availability: 0.15, SLA: 0.25, Geographic: 0.30},
}

var DefaultMultipliers = map[models.Priority]float64{
	models.PriorityEmergency: 1.2,
	models.PriorityHigh:      1.1,
	models.PriorityNormal:    1.0,
	models.PriorityLow:       0.9,
}

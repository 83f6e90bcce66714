// internal/models/route.go
package models

import "time"

type TrafficCondition string

const (
	TrafficLight    TrafficCondition = "Light"
	TrafficModerate TrafficCondition = "Moderate"
	TrafficHeavy    TrafficCondition = "Heavy"
	TrafficSevere   TrafficCondition = "Severe"
)

// ClassifyTraffic derives a condition from the congested/free-flow duration ratio.
func ClassifyTraffic(freeFlowMinutes, trafficMinutes float64) TrafficCondition {
	if freeFlowMinutes <= 0 {
		return TrafficLight
	}
	ratio := trafficMinutes / freeFlowMinutes
	switch {
	case ratio < 1.1:
		return TrafficLight
	case ratio < 1.3:
		return TrafficModerate
	case ratio < 1.6:
		return TrafficHeavy
	default:
		return TrafficSevere
	}
}

type Incident struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Description string   `json:"description,omitempty"`
	Location    Location `json:"location"`
}

type RouteSource string

const (
	RouteSourceProvider RouteSource = "provider"
	RouteSourceEstimate RouteSource = "estimate"
)

// CachedRoute is a computed route and its traffic picture.
type CachedRoute struct {
	RouteID                  string           `json:"routeId"`
	DistanceKm               float64          `json:"distanceKm"`
	DurationMinutes          float64          `json:"durationMinutes"`
	DurationInTrafficMinutes float64          `json:"durationInTrafficMinutes"`
	TrafficCondition         TrafficCondition `json:"trafficCondition"`
	Incidents                []Incident       `json:"incidents,omitempty"`
	LastUpdated              time.Time        `json:"lastUpdated"`
	Source                   RouteSource      `json:"source"`
	EmergencyOptimized       bool             `json:"emergencyOptimized,omitempty"`
}

// TravelMinutes prefers the traffic-aware duration.
func (r CachedRoute) TravelMinutes() float64 {
	if r.DurationInTrafficMinutes > 0 {
		return r.DurationInTrafficMinutes
	}
	return r.DurationMinutes
}

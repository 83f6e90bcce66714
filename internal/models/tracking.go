// internal/models/tracking.go
package models

import "time"

// LocationUpdate is a single position report from a technician device.
type LocationUpdate struct {
	TechnicianID            string           `json:"technicianId"`
	Location                Location         `json:"location"`
	Timestamp               time.Time        `json:"timestamp"`
	Status                  TechnicianStatus `json:"status"`
	EstimatedArrivalMinutes *float64         `json:"estimatedArrivalMinutes,omitempty"`
	TrackingEnabled         bool             `json:"trackingEnabled"`
}

// TrackingSnapshot is the live, mutable half of a Technician.
type TrackingSnapshot struct {
	TechnicianID            string           `json:"technicianId"`
	Location                Location         `json:"location"`
	Timestamp               time.Time        `json:"timestamp"`
	Status                  TechnicianStatus `json:"status"`
	EstimatedArrivalMinutes *float64         `json:"estimatedArrivalMinutes,omitempty"`
	TrackingEnabled         bool             `json:"trackingEnabled"`
	SpeedKmh                float64          `json:"speedKmh"`
}

// internal/models/technician.go
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// TechnicianStatus is the live status of a technician.
type TechnicianStatus string

const (
	StatusAvailable TechnicianStatus = "Available"
	StatusEnRoute   TechnicianStatus = "EnRoute"
	StatusOnSite    TechnicianStatus = "OnSite"
	StatusBusy      TechnicianStatus = "Busy"
)

// ParseStatus accepts the spellings device clients send ("en_route", "on-site", "BUSY").
// Unknown values map to Available.
func ParseStatus(s string) TechnicianStatus {
	normalized := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(s))
	switch normalized {
	case "enroute":
		return StatusEnRoute
	case "onsite":
		return StatusOnSite
	case "busy":
		return StatusBusy
	default:
		return StatusAvailable
	}
}

func (s *TechnicianStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}

// Engaged reports whether the status means the technician is working another job.
func (s TechnicianStatus) Engaged() bool {
	return s == StatusEnRoute || s == StatusOnSite || s == StatusBusy
}

// AvailabilityWindow bounds when a technician accepts work. A zero window is open.
type AvailabilityWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window. Open ends are unbounded.
func (w AvailabilityWindow) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// PreferredRegion is a named circular area a technician prefers to serve.
type PreferredRegion struct {
	Name     string   `json:"name"`
	Center   Location `json:"center"`
	RadiusKm float64  `json:"radiusKm"`
	Priority int      `json:"priority"`
}

// GeographicCoverage is the static service area of a technician.
type GeographicCoverage struct {
	ServiceRadiusKm     float64           `json:"serviceRadiusKm"`
	MaxTravelDistanceKm float64           `json:"maxTravelDistanceKm"`
	PrimaryCities       []string          `json:"primaryCities,omitempty"`
	SecondaryCities     []string          `json:"secondaryCities,omitempty"`
	PostalCodes         []string          `json:"postalCodes,omitempty"`
	PreferredRegions    []PreferredRegion `json:"preferredRegions,omitempty"`
}

// Assignment is the job a technician is currently working or travelling to.
type Assignment struct {
	JobID      string   `json:"jobId"`
	Priority   Priority `json:"priority"`
	ETAMinutes float64  `json:"etaMinutes"`
	Customer   *Contact `json:"customer,omitempty"`
}

// Technician is read-only to the matching core.
type Technician struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Phone             string             `json:"phone,omitempty"`
	Email             string             `json:"email,omitempty"`
	BaseLocation      Location           `json:"baseLocation"`
	Skills            map[string]int     `json:"skills,omitempty"`
	Availability      AvailabilityWindow `json:"availability"`
	IsAvailable       bool               `json:"isAvailable"`
	CurrentWorkload   int                `json:"currentWorkload"`
	SLASuccessRate    *float64           `json:"slaSuccessRate,omitempty"`
	Coverage          GeographicCoverage `json:"coverage"`
	Status            TechnicianStatus   `json:"status,omitempty"`
	Interruptible     bool               `json:"interruptible"`
	CurrentAssignment *Assignment        `json:"currentAssignment,omitempty"`
}

// Contact returns the technician as a notification recipient.
func (t *Technician) Contact() Contact {
	return Contact{ID: t.ID, Name: t.Name, Phone: t.Phone, Email: t.Email}
}

// internal/models/job.go
package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Priority is the closed set of job priorities understood by the matching core.
type Priority string

const (
	PriorityLow       Priority = "Low"
	PriorityNormal    Priority = "Normal"
	PriorityHigh      Priority = "High"
	PriorityEmergency Priority = "Emergency"
)

// ParsePriority normalizes free-form priority strings. Unknown values map to Normal.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "emergency", "urgent", "critical":
		return PriorityEmergency
	default:
		return PriorityNormal
	}
}

// UnmarshalJSON accepts any casing of the priority name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParsePriority(s)
	return nil
}

// Weight ranks priorities for interruption decisions: Low 1 .. Emergency 4.
func (p Priority) Weight() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 3
	case PriorityEmergency:
		return 4
	default:
		return 2
	}
}

// Location is a point with an optional free-text address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Contact describes someone who can receive a notification.
type Contact struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// HasChannel reports whether the contact can be reached at all.
func (c *Contact) HasChannel() bool {
	return c != nil && (c.Phone != "" || c.Email != "")
}

// RequiredLevel is a required skill level. Non-numeric requirements (e.g. "any",
// "certified") decode with Numeric=false and are always satisfied.
type RequiredLevel struct {
	Level   int
	Numeric bool
}

// Level builds a numeric requirement.
func Level(n int) RequiredLevel {
	return RequiredLevel{Level: n, Numeric: true}
}

func (r RequiredLevel) MarshalJSON() ([]byte, error) {
	if !r.Numeric {
		return []byte(`"any"`), nil
	}
	return []byte(strconv.Itoa(r.Level)), nil
}

func (r *RequiredLevel) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*r = RequiredLevel{Level: int(n), Numeric: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		*r = RequiredLevel{Level: v, Numeric: true}
		return nil
	}
	*r = RequiredLevel{}
	return nil
}

// Job is a service job to be matched. It is treated as immutable for the lifetime of
// a matching request.
type Job struct {
	ID             string                   `json:"id"`
	TenantID       string                   `json:"tenantId,omitempty"`
	ServiceType    string                   `json:"serviceType"`
	RequiredSkills map[string]RequiredLevel `json:"requiredSkills,omitempty"`
	Location       Location                 `json:"location"`
	ScheduledAt    time.Time                `json:"scheduledAt"`
	SLAHours       int                      `json:"slaHours,omitempty"`
	Priority       Priority                 `json:"priority"`
	IsEmergency    bool                     `json:"isEmergency,omitempty"`
	Customer       *Contact                 `json:"customer,omitempty"`
}

// EffectivePriority treats the emergency flag as Emergency priority.
func (j *Job) EffectivePriority() Priority {
	if j.IsEmergency {
		return PriorityEmergency
	}
	if j.Priority == "" {
		return PriorityNormal
	}
	return j.Priority
}

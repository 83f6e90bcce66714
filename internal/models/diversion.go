// internal/models/diversion.go
package models

import "time"

// DiversionType is the outcome category of an emergency assignment.
type DiversionType string

const (
	DiversionAvailable   DiversionType = "Available"
	DiversionRerouted    DiversionType = "Rerouted"
	DiversionInterrupted DiversionType = "Interrupted"
	DiversionFailed      DiversionType = "Failed"
)

// DecisionStatus tells callers whether a technician was found.
type DecisionStatus string

const (
	DecisionSucceeded DecisionStatus = "Succeeded"
	DecisionFailed    DecisionStatus = "Failed"
)

type NotificationType string

const (
	NotifyTechnicianDiversion    NotificationType = "technician_diversion"
	NotifyCustomerETA            NotificationType = "customer_eta"
	NotifyCustomerServiceHandoff NotificationType = "customer_service_handoff"
	NotifyCustomerNoTechnician   NotificationType = "customer_no_technician"
)

type RecipientRole string

const (
	RoleTechnician      RecipientRole = "technician"
	RoleCustomer        RecipientRole = "customer"
	RoleCustomerService RecipientRole = "customer_service"
)

type Urgency string

const (
	UrgencyUrgent Urgency = "urgent"
	UrgencyNormal Urgency = "normal"
)

// Recipient is the addressee of a NotificationAction.
type Recipient struct {
	Contact
	Role RecipientRole `json:"role"`
}

// NotificationAction is produced by the core; delivery belongs to a notify.Sender.
type NotificationAction struct {
	ID        string            `json:"id"`
	Type      NotificationType  `json:"type"`
	Recipient Recipient         `json:"recipient"`
	Subject   string            `json:"subject,omitempty"`
	Message   string            `json:"message"`
	Urgency   Urgency           `json:"urgency"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DiversionDecision is produced once per emergency request.
type DiversionDecision struct {
	ID                    string               `json:"id"`
	EmergencyJobID        string               `json:"emergencyJobId"`
	Status                DecisionStatus       `json:"status"`
	TechnicianID          string               `json:"technicianId,omitempty"`
	TechnicianName        string               `json:"technicianName,omitempty"`
	DiversionType         DiversionType        `json:"diversionType"`
	PreviousJobID         string               `json:"previousJobId,omitempty"`
	EstimatedDelayMinutes float64              `json:"estimatedDelayMinutes"`
	TravelMinutes         float64              `json:"travelMinutes"`
	DistanceKm            float64              `json:"distanceKm"`
	Score                 float64              `json:"score"`
	InterruptionCost      float64              `json:"interruptionCost"`
	Notifications         []NotificationAction `json:"notifications"`
	Reason                string               `json:"reason,omitempty"`
	DecidedAt             time.Time            `json:"decidedAt"`
}

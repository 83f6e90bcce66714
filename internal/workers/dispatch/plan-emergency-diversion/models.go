// internal/workers/dispatch/plan-emergency-diversion/models.go
package planemergencydiversion

import (
	"dispatch-workers/internal/models"
	"dispatch-workers/internal/notify"
)

type Input struct {
	Job               models.Job          `json:"job"`
	Technicians       []models.Technician `json:"technicians,omitempty"`
	TechnicianIDs     []string            `json:"technicianIds,omitempty"`
	SendNotifications bool                `json:"sendNotifications,omitempty"`
}

type Output struct {
	Decision models.DiversionDecision `json:"decision"`
	Delivery []notify.Result          `json:"delivery,omitempty"`
}

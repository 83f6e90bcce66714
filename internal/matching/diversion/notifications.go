package diversion

import (
	"fmt"
	"math"

	"dispatch-workers/internal/models"
)

func (p *Planner) notifications(job *models.Job, tech *models.Technician, d models.DiversionDecision) []models.NotificationAction {
	actions := []models.NotificationAction{p.technicianNotice(job, tech, d)}

	if job.Customer.HasChannel() {
		actions = append(actions, models.NotificationAction{
			ID:        p.newID(),
			Type:      models.NotifyCustomerETA,
			Recipient: models.Recipient{Contact: *job.Customer, Role: models.RoleCustomer},
			Subject:   "Your emergency technician is on the way",
			Message: fmt.Sprintf("%s has been dispatched to your emergency and should arrive in about %d minutes.",
				displayName(tech), minutes(d.TravelMinutes)),
			Urgency:  models.UrgencyUrgent,
			Metadata: map[string]string{"jobId": job.ID, "technicianId": tech.ID},
		})
	}

	if d.DiversionType == models.DiversionInterrupted {
		handoff := models.NotificationAction{
			ID:        p.newID(),
			Type:      models.NotifyCustomerServiceHandoff,
			Recipient: models.Recipient{Contact: p.cfg.CustomerService, Role: models.RoleCustomerService},
			Subject:   fmt.Sprintf("Job %s interrupted for emergency %s", d.PreviousJobID, job.ID),
			Message: fmt.Sprintf("Technician %s was pulled from job %s for emergency job %s. Estimated delay: %d minutes. Please contact the affected customer.",
				displayName(tech), d.PreviousJobID, job.ID, minutes(d.EstimatedDelayMinutes)),
			Urgency: models.UrgencyUrgent,
			Metadata: map[string]string{
				"previousJobId":  d.PreviousJobID,
				"emergencyJobId": job.ID,
				"delayMinutes":   fmt.Sprintf("%d", minutes(d.EstimatedDelayMinutes)),
			},
		}
		if prior := tech.CurrentAssignment; prior != nil && prior.Customer.HasChannel() {
			handoff.Metadata["previousCustomerPhone"] = prior.Customer.Phone
			handoff.Metadata["previousCustomerEmail"] = prior.Customer.Email
		}
		actions = append(actions, handoff)
	}

	return actions
}

func (p *Planner) technicianNotice(job *models.Job, tech *models.Technician, d models.DiversionDecision) models.NotificationAction {
	address := job.Location.Address
	if address == "" {
		address = fmt.Sprintf("%.5f,%.5f", job.Location.Latitude, job.Location.Longitude)
	}

	var message string
	switch d.DiversionType {
	case models.DiversionRerouted:
		message = fmt.Sprintf("EMERGENCY: stop travelling to job %s and go to %s for emergency job %s. ETA %d min.",
			d.PreviousJobID, address, job.ID, minutes(d.TravelMinutes))
	case models.DiversionInterrupted:
		message = fmt.Sprintf("EMERGENCY: pause job %s and proceed to %s for emergency job %s. ETA %d min.",
			d.PreviousJobID, address, job.ID, minutes(d.TravelMinutes))
	default:
		message = fmt.Sprintf("EMERGENCY: you are assigned to emergency job %s at %s. ETA %d min.",
			job.ID, address, minutes(d.TravelMinutes))
	}

	return models.NotificationAction{
		ID:        p.newID(),
		Type:      models.NotifyTechnicianDiversion,
		Recipient: models.Recipient{Contact: tech.Contact(), Role: models.RoleTechnician},
		Subject:   "Emergency assignment " + job.ID,
		Message:   message,
		Urgency:   models.UrgencyUrgent,
		Metadata: map[string]string{
			"jobId":         job.ID,
			"diversionType": string(d.DiversionType),
		},
	}
}

func (p *Planner) noTechnicianNotice(job *models.Job) models.NotificationAction {
	return models.NotificationAction{
		ID:        p.newID(),
		Type:      models.NotifyCustomerNoTechnician,
		Recipient: models.Recipient{Contact: *job.Customer, Role: models.RoleCustomer},
		Subject:   "We are still looking for a technician",
		Message:   "No technician is free to reach your emergency right now. Our team has been alerted and will contact you shortly.",
		Urgency:   models.UrgencyUrgent,
		Metadata:  map[string]string{"jobId": job.ID},
	}
}

func displayName(tech *models.Technician) string {
	if tech.Name != "" {
		return tech.Name
	}
	return tech.ID
}

func minutes(v float64) int {
	return int(math.Ceil(v))
}

// internal/workers/matching/recommend-technicians/models.go
package recommendtechnicians

import "dispatch-workers/internal/models"

type Input struct {
	Job                models.Job          `json:"job"`
	Technicians        []models.Technician `json:"technicians,omitempty"`
	TechnicianIDs      []string            `json:"technicianIds,omitempty"`
	MaxRecommendations int                 `json:"maxRecommendations,omitempty"`
	TenantID           string              `json:"tenantId,omitempty"`
}

type Output struct {
	JobID           string                  `json:"jobId"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Count           int                     `json:"count"`
}

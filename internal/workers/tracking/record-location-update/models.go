// internal/workers/tracking/record-location-update/models.go
package recordlocationupdate

import "dispatch-workers/internal/models"

type Input struct {
	models.LocationUpdate
}

type Output struct {
	Snapshot models.TrackingSnapshot `json:"snapshot"`
}

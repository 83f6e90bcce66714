package routing

import (
	"fmt"
	"math"

	"dispatch-workers/internal/models"
)

const DefaultPrecision = 4

// Key identifies a cached route. Coordinates are rounded so that nearby requests
// share an entry.
type Key struct {
	Origin      string
	Destination string
	Emergency   bool
}

// NewKey uses the technician id as the origin when present, the rounded origin
// coordinates otherwise.
func NewKey(technicianID string, origin, destination models.Location, emergency bool, precision int) Key {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	from := technicianID
	if from == "" {
		from = formatPoint(origin, precision)
	}
	return Key{
		Origin:      from,
		Destination: formatPoint(destination, precision),
		Emergency:   emergency,
	}
}

func (k Key) String() string {
	mode := "std"
	if k.Emergency {
		mode = "emg"
	}
	return fmt.Sprintf("route:%s:%s:%s", k.Origin, k.Destination, mode)
}

func formatPoint(loc models.Location, precision int) string {
	return fmt.Sprintf("%.*f,%.*f",
		precision, round(loc.Latitude, precision),
		precision, round(loc.Longitude, precision))
}

func round(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0 // normalise -0
	}
	return r
}

// Package geo computes distances and geographic coverage for technician matching.
package geo

import (
	"math"
	"regexp"
	"strings"

	"dispatch-workers/internal/models"

	"github.com/umahmood/haversine"
)

// EarthRadiusKm is the mean radius used by the haversine formula.
const EarthRadiusKm = 6371.0

var postalCodePattern = regexp.MustCompile(`\b(\d{5,}|[A-Za-z]{3}\d{3})\b`)

// Distance returns the great-circle distance in kilometres.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: lat1, Lon: lon1},
		haversine.Coord{Lat: lat2, Lon: lon2},
	)
	return km
}

// Between is Distance for two locations.
func Between(a, b models.Location) float64 {
	return Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// ValidCoordinates reports whether loc is a finite point on the globe.
func ValidCoordinates(loc models.Location) bool {
	lat, lon := loc.Latitude, loc.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// PostalCodes extracts postal code tokens from free-text addresses.
func PostalCodes(address string) []string {
	return postalCodePattern.FindAllString(address, -1)
}

// Match classifies how well the technician's coverage serves the job location.
// Missing or invalid input yields a zeroed OutOfRange match.
func Match(job *models.Job, tech *models.Technician) models.GeographicMatch {
	if job == nil || tech == nil || !ValidCoordinates(job.Location) || !ValidCoordinates(tech.BaseLocation) {
		return models.GeographicMatch{CoverageType: models.CoverageOutOfRange}
	}

	cov := tech.Coverage
	m := models.GeographicMatch{
		DistanceKm: Between(job.Location, tech.BaseLocation),
	}
	m.WithinServiceRadius = m.DistanceKm <= cov.ServiceRadiusKm

	address := strings.ToLower(job.Location.Address)
	m.InPrimaryCity = containsAny(address, cov.PrimaryCities)
	m.InSecondaryCity = containsAny(address, cov.SecondaryCities)
	m.PostalCodeMatch = postalMatch(job.Location.Address, cov.PostalCodes)

	for _, region := range cov.PreferredRegions {
		if !ValidCoordinates(region.Center) {
			continue
		}
		if Between(job.Location, region.Center) <= region.RadiusKm {
			m.MatchingRegions = append(m.MatchingRegions, region.Name)
		}
	}
	m.InPreferredRegion = len(m.MatchingRegions) > 0

	switch {
	case m.InPrimaryCity || m.PostalCodeMatch:
		m.CoverageType = models.CoveragePrimary
	case m.InSecondaryCity || m.InPreferredRegion:
		m.CoverageType = models.CoverageSecondary
	case m.WithinServiceRadius || (cov.MaxTravelDistanceKm > 0 && m.DistanceKm <= cov.MaxTravelDistanceKm):
		m.CoverageType = models.CoverageExtended
	default:
		m.CoverageType = models.CoverageOutOfRange
	}

	return m
}

func containsAny(address string, cities []string) bool {
	if address == "" {
		return false
	}
	for _, city := range cities {
		city = strings.ToLower(strings.TrimSpace(city))
		if city != "" && strings.Contains(address, city) {
			return true
		}
	}
	return false
}

func postalMatch(address string, codes []string) bool {
	if len(codes) == 0 {
		return false
	}
	for _, token := range PostalCodes(address) {
		for _, code := range codes {
			if strings.EqualFold(token, strings.TrimSpace(code)) {
				return true
			}
		}
	}
	return false
}

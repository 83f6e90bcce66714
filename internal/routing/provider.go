package routing

import (
	"context"
	"time"

	commonhttp "dispatch-workers/internal/common/http"
	"dispatch-workers/internal/matching/geo"
	"dispatch-workers/internal/models"
)

// Preferences tune a directions request.
type Preferences struct {
	Emergency    bool `json:"emergency"`
	AvoidTolls   bool `json:"avoidTolls,omitempty"`
	AvoidHighway bool `json:"avoidHighways,omitempty"`
}

// Directions is a provider answer before caching.
type Directions struct {
	DistanceKm               float64           `json:"distanceKm"`
	DurationMinutes          float64           `json:"durationMinutes"`
	DurationInTrafficMinutes float64           `json:"durationInTrafficMinutes"`
	Incidents                []models.Incident `json:"incidents,omitempty"`
}

// Provider is the external map and traffic service.
type Provider interface {
	Directions(ctx context.Context, origin, destination models.Location, prefs Preferences) (Directions, error)
	Incidents(ctx context.Context, center models.Location, radiusKm float64) ([]models.Incident, error)
}

// HTTPProvider talks to a JSON maps gateway.
type HTTPProvider struct {
	client *commonhttp.Client
}

func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{client: commonhttp.NewClient(baseURL, apiKey, timeout)}
}

type directionsRequest struct {
	Origin      models.Location `json:"origin"`
	Destination models.Location `json:"destination"`
	Preferences Preferences     `json:"preferences"`
}

type incidentsRequest struct {
	Center   models.Location `json:"center"`
	RadiusKm float64         `json:"radiusKm"`
}

type incidentsResponse struct {
	Incidents []models.Incident `json:"incidents"`
}

func (p *HTTPProvider) Directions(ctx context.Context, origin, destination models.Location, prefs Preferences) (Directions, error) {
	var out Directions
	err := p.client.PostJSON(ctx, "/v1/directions", directionsRequest{
		Origin:      origin,
		Destination: destination,
		Preferences: prefs,
	}, &out)
	return out, err
}

func (p *HTTPProvider) Incidents(ctx context.Context, center models.Location, radiusKm float64) ([]models.Incident, error) {
	var out incidentsResponse
	if err := p.client.PostJSON(ctx, "/v1/incidents", incidentsRequest{Center: center, RadiusKm: radiusKm}, &out); err != nil {
		return nil, err
	}
	return out.Incidents, nil
}

// FixtureProvider answers from fixed data: road distance is the crow-flies
// distance times RoadFactor at SpeedKmh, slowed by TrafficFactor. It is used in
// tests and local runs without a maps gateway.
type FixtureProvider struct {
	RoadFactor    float64
	SpeedKmh      float64
	TrafficFactor float64
	IncidentList  []models.Incident
	Err           error
}

func (p *FixtureProvider) Directions(ctx context.Context, origin, destination models.Location, prefs Preferences) (Directions, error) {
	if p.Err != nil {
		return Directions{}, p.Err
	}
	if err := ctx.Err(); err != nil {
		return Directions{}, err
	}

	roadFactor, speed, traffic := p.RoadFactor, p.SpeedKmh, p.TrafficFactor
	if roadFactor <= 0 {
		roadFactor = 1.3
	}
	if speed <= 0 {
		speed = 40
	}
	if traffic <= 0 {
		traffic = 1
	}

	distance := geo.Between(origin, destination) * roadFactor
	duration := distance / speed * 60
	return Directions{
		DistanceKm:               distance,
		DurationMinutes:          duration,
		DurationInTrafficMinutes: duration * traffic,
	}, nil
}

func (p *FixtureProvider) Incidents(ctx context.Context, center models.Location, radiusKm float64) ([]models.Incident, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	var out []models.Incident
	for _, incident := range p.IncidentList {
		if geo.Between(center, incident.Location) <= radiusKm {
			out = append(out, incident)
		}
	}
	return out, nil
}

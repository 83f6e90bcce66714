package geo

import (
	"math"
	"testing"

	"dispatch-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		wantKm     float64
		tolerance  float64
	}{
		{"same point", 40.7128, -74.0060, 40.7128, -74.0060, 0, 1e-9},
		{"manhattan short hop", 40.7128, -74.0060, 40.7200, -74.0000, 0.95, 0.05},
		{"new york to philadelphia", 40.7128, -74.0060, 39.9526, -75.1652, 129.6, 1.0},
		{"london to paris", 51.5074, -0.1278, 48.8566, 2.3522, 343.5, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.wantKm, got, tt.tolerance)
		})
	}
}

func TestDistance_DeterministicAndSymmetric(t *testing.T) {
	a := Distance(40.7128, -74.0060, 34.0522, -118.2437)
	b := Distance(40.7128, -74.0060, 34.0522, -118.2437)
	c := Distance(34.0522, -118.2437, 40.7128, -74.0060)

	assert.Equal(t, a, b)
	assert.InDelta(t, a, c, 1e-9)
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(models.Location{Latitude: 0, Longitude: 0}))
	assert.True(t, ValidCoordinates(models.Location{Latitude: -90, Longitude: 180}))
	assert.False(t, ValidCoordinates(models.Location{Latitude: 91, Longitude: 0}))
	assert.False(t, ValidCoordinates(models.Location{Latitude: 0, Longitude: -181}))
	assert.False(t, ValidCoordinates(models.Location{Latitude: math.NaN(), Longitude: 0}))
	assert.False(t, ValidCoordinates(models.Location{Latitude: 0, Longitude: math.Inf(1)}))
}

func TestPostalCodes(t *testing.T) {
	assert.Equal(t, []string{"10001"}, PostalCodes("350 5th Ave, New York, NY 10001"))
	assert.Equal(t, []string{"ABC123"}, PostalCodes("Unit 4, ABC123 Industrial Park"))
	assert.Empty(t, PostalCodes("12 Main St"))
}

func newTech() *models.Technician {
	return &models.Technician{
		ID:           "tech-1",
		BaseLocation: models.Location{Latitude: 40.7128, Longitude: -74.0060},
		Coverage: models.GeographicCoverage{
			ServiceRadiusKm:     25,
			MaxTravelDistanceKm: 80,
			PrimaryCities:       []string{"Manhattan"},
			SecondaryCities:     []string{"Brooklyn"},
			PostalCodes:         []string{"10001"},
			PreferredRegions: []models.PreferredRegion{
				{Name: "queens", Center: models.Location{Latitude: 40.7282, Longitude: -73.7949}, RadiusKm: 10, Priority: 1},
			},
		},
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		job      *models.Job
		validate func(t *testing.T, m models.GeographicMatch)
	}{
		{
			name: "primary city by case-insensitive substring",
			job:  &models.Job{Location: models.Location{Latitude: 40.7580, Longitude: -73.9855, Address: "Times Square, MANHATTAN"}},
			validate: func(t *testing.T, m models.GeographicMatch) {
				assert.True(t, m.InPrimaryCity)
				assert.True(t, m.WithinServiceRadius)
				assert.Equal(t, models.CoveragePrimary, m.CoverageType)
			},
		},
		{
			name: "postal code match is primary",
			job:  &models.Job{Location: models.Location{Latitude: 40.7506, Longitude: -73.9971, Address: "W 33rd St, NY 10001"}},
			validate: func(t *testing.T, m models.GeographicMatch) {
				assert.True(t, m.PostalCodeMatch)
				assert.False(t, m.InPrimaryCity)
				assert.Equal(t, models.CoveragePrimary, m.CoverageType)
			},
		},
		{
			name: "secondary city",
			job:  &models.Job{Location: models.Location{Latitude: 40.6782, Longitude: -73.9442, Address: "Brooklyn, NY"}},
			validate: func(t *testing.T, m models.GeographicMatch) {
				assert.True(t, m.InSecondaryCity)
				assert.Equal(t, models.CoverageSecondary, m.CoverageType)
			},
		},
		{
			name: "preferred region is secondary",
			job:  &models.Job{Location: models.Location{Latitude: 40.7300, Longitude: -73.8000, Address: "Flushing Meadows"}},
			validate: func(t *testing.T, m models.GeographicMatch) {
				assert.True(t, m.InPreferredRegion)
				assert.Equal(t, []string{"queens"}, m.MatchingRegions)
				assert.Equal(t, models.CoverageSecondary, m.CoverageType)
			},
		},
		{
			name: "within max travel only is extended",
			job:  &models.Job{Location: models.Location{Latitude: 41.0534, Longitude: -73.5387, Address: "Stamford, CT"}},
			validate: func(t *testing.T, m models.GeographicMatch) {
				assert.False(t, m.WithinServiceRadius)
				assert.Less(t, m.DistanceKm, 80.0)
				assert.Equal(t, models.CoverageExtended, m.CoverageType)
			},
		},
		{
			name: "far away is out of range",
			job:  &models.Job{Location: models.Location{Latitude: 42.3601, Longitude: -71.0589, Address: "Boston, MA"}},
			validate: func(t *testing.T, m models.GeographicMatch) {
				assert.Greater(t, m.DistanceKm, 250.0)
				assert.Equal(t, models.CoverageOutOfRange, m.CoverageType)
			},
		},
		{
			name: "invalid job coordinates yield zeroed match",
			job:  &models.Job{Location: models.Location{Latitude: 200, Longitude: 0, Address: "Manhattan"}},
			validate: func(t *testing.T, m models.GeographicMatch) {
				assert.Equal(t, models.GeographicMatch{CoverageType: models.CoverageOutOfRange}, m)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, Match(tt.job, newTech()))
		})
	}
}

func TestMatch_NilInputs(t *testing.T) {
	assert.Equal(t, models.CoverageOutOfRange, Match(nil, newTech()).CoverageType)
	assert.Equal(t, models.CoverageOutOfRange, Match(&models.Job{}, nil).CoverageType)
}

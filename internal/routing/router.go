package routing

import (
	"context"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/matching/geo"
	"dispatch-workers/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Request asks for a route from a technician (or bare origin) to a destination.
type Request struct {
	TechnicianID string
	Origin       models.Location
	Destination  models.Location
	Emergency    bool
}

type RouterConfig struct {
	Timeout          time.Duration
	Precision        int
	IncidentRadiusKm float64
	AverageSpeedKmh  float64
}

// Router serves routes from the cache and collapses concurrent misses for the
// same key into one provider call.
type Router struct {
	cache    Cache
	provider Provider
	group    singleflight.Group
	cfg      RouterConfig
	now      func() time.Time
	logger   logger.Logger
}

type RouterOption func(*Router)

func WithRouterClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// NewRouter accepts a nil provider; every miss is then answered by a haversine
// estimate.
func NewRouter(cache Cache, provider Provider, cfg RouterConfig, log logger.Logger, opts ...RouterOption) *Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Precision <= 0 {
		cfg.Precision = DefaultPrecision
	}
	if cfg.IncidentRadiusKm <= 0 {
		cfg.IncidentRadiusKm = 5
	}
	if cfg.AverageSpeedKmh <= 0 {
		cfg.AverageSpeedKmh = 40
	}
	r := &Router{
		cache:    cache,
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
		logger:   log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route returns a cached or freshly computed route. Provider failures fall back
// to an uncached estimate; only invalid coordinates are reported as errors.
func (r *Router) Route(ctx context.Context, req Request) (models.CachedRoute, error) {
	if !geo.ValidCoordinates(req.Origin) {
		return models.CachedRoute{}, errors.NewInvalidLocationError("route origin", req.Origin.Latitude, req.Origin.Longitude)
	}
	if !geo.ValidCoordinates(req.Destination) {
		return models.CachedRoute{}, errors.NewInvalidLocationError("route destination", req.Destination.Latitude, req.Destination.Longitude)
	}

	key := NewKey(req.TechnicianID, req.Origin, req.Destination, req.Emergency, r.cfg.Precision)
	if route, ok := r.cache.Get(ctx, key); ok {
		return route, nil
	}

	if r.provider == nil {
		return r.Estimate(req), nil
	}

	v, err, _ := r.group.Do(key.String(), func() (interface{}, error) {
		return r.fetch(ctx, key, req)
	})
	if err != nil {
		r.logger.Warn("Route lookup failed, using distance estimate", map[string]interface{}{
			"key":   key.String(),
			"error": errors.NewRouteLookupFailedError(err).Error(),
		})
		return r.Estimate(req), nil
	}
	return v.(models.CachedRoute), nil
}

func (r *Router) fetch(ctx context.Context, key Key, req Request) (models.CachedRoute, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	dir, err := r.provider.Directions(callCtx, req.Origin, req.Destination, Preferences{Emergency: req.Emergency})
	if err != nil {
		return models.CachedRoute{}, err
	}

	incidents := dir.Incidents
	if len(incidents) == 0 {
		found, err := r.provider.Incidents(callCtx, req.Destination, r.cfg.IncidentRadiusKm)
		if err != nil {
			r.logger.Debug("Incident lookup failed", map[string]interface{}{"key": key.String(), "error": err.Error()})
		}
		incidents = found
	}

	route := prepare(key, models.CachedRoute{
		RouteID:                  uuid.NewString(),
		DistanceKm:               dir.DistanceKm,
		DurationMinutes:          dir.DurationMinutes,
		DurationInTrafficMinutes: dir.DurationInTrafficMinutes,
		TrafficCondition:         models.ClassifyTraffic(dir.DurationMinutes, dir.DurationInTrafficMinutes),
		Incidents:                incidents,
		LastUpdated:              r.now(),
		Source:                   models.RouteSourceProvider,
	})

	// Cancellation of the caller must not leave a half-written entry behind.
	if err := r.cache.Put(context.WithoutCancel(ctx), key, route); err != nil {
		r.logger.Warn("Route cache write failed", map[string]interface{}{"key": key.String(), "error": err.Error()})
	}
	return route, nil
}

// Estimate is the straight-line fallback used when no provider answer exists.
func (r *Router) Estimate(req Request) models.CachedRoute {
	distance := geo.Between(req.Origin, req.Destination)
	minutes := distance / r.cfg.AverageSpeedKmh * 60
	route := models.CachedRoute{
		RouteID:                  uuid.NewString(),
		DistanceKm:               distance,
		DurationMinutes:          minutes,
		DurationInTrafficMinutes: minutes,
		TrafficCondition:         models.TrafficLight,
		LastUpdated:              r.now(),
		Source:                   models.RouteSourceEstimate,
	}
	if req.Emergency {
		route = OptimizeForEmergency(route)
	}
	return route
}

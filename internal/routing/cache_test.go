package routing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	origin      = models.Location{Latitude: 40.71284, Longitude: -74.00601}
	destination = models.Location{Latitude: 40.75803, Longitude: -73.98552}
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func sampleRoute(at time.Time) models.CachedRoute {
	return models.CachedRoute{
		RouteID:                  "r-1",
		DistanceKm:               6.4,
		DurationMinutes:          12,
		DurationInTrafficMinutes: 20,
		TrafficCondition:         models.TrafficSevere,
		LastUpdated:              at,
		Source:                   models.RouteSourceProvider,
	}
}

// ==========================
// Keys
// ==========================

func TestNewKey(t *testing.T) {
	k := NewKey("tech-1", origin, destination, false, 4)
	assert.Equal(t, "route:tech-1:40.7580,-73.9855:std", k.String())

	byOrigin := NewKey("", origin, destination, true, 4)
	assert.Equal(t, "route:40.7128,-74.0060:40.7580,-73.9855:emg", byOrigin.String())

	nearby := NewKey("", models.Location{Latitude: 40.712836, Longitude: -74.006014}, destination, true, 4)
	assert.Equal(t, byOrigin, nearby)

	assert.NotEqual(t, NewKey("tech-1", origin, destination, true, 4), k)
	assert.Equal(t, "route:tech-1:0.0000,0.0000:std", NewKey("tech-1", origin, models.Location{Latitude: -0.00001}, false, 4).String())
}

// ==========================
// Memory cache
// ==========================

func TestMemoryCache_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(5*time.Minute, WithMemoryClock(clock.Now))
	ctx := context.Background()
	key := NewKey("tech-1", origin, destination, false, 4)

	require.NoError(t, cache.Put(ctx, key, sampleRoute(clock.Now())))

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "r-1", got.RouteID)

	clock.Advance(4*time.Minute + 59*time.Second)
	_, ok = cache.Get(ctx, key)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = cache.Get(ctx, key)
	assert.False(t, ok, "entry at exactly the TTL must be a miss")
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_StaleEntryIsMissEvenWhenPresent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(5*time.Minute, WithMemoryClock(clock.Now))
	key := NewKey("tech-1", origin, destination, false, 4)

	require.NoError(t, cache.Put(context.Background(), key, sampleRoute(clock.Now().Add(-6*time.Minute))))
	_, ok := cache.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestMemoryCache_PutOverwrites(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	key := NewKey("tech-1", origin, destination, false, 4)
	ctx := context.Background()

	first := sampleRoute(time.Now())
	second := sampleRoute(time.Now())
	second.RouteID = "r-2"

	require.NoError(t, cache.Put(ctx, key, first))
	require.NoError(t, cache.Put(ctx, key, second))

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "r-2", got.RouteID)
}

func TestMemoryCache_EmergencyTransformAppliedOnce(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()
	key := NewKey("tech-1", origin, destination, true, 4)

	require.NoError(t, cache.Put(ctx, key, sampleRoute(time.Now())))
	got, ok := cache.Get(ctx, key)
	require.True(t, ok)

	assert.True(t, got.EmergencyOptimized)
	assert.Equal(t, 9.0, got.DurationInTrafficMinutes)
	assert.Equal(t, models.TrafficLight, got.TrafficCondition)

	// Re-inserting an optimised route must not shrink it again.
	require.NoError(t, cache.Put(ctx, key, got))
	again, _ := cache.Get(ctx, key)
	assert.Equal(t, 9.0, again.DurationInTrafficMinutes)

	standard := NewKey("tech-1", origin, destination, false, 4)
	require.NoError(t, cache.Put(ctx, standard, sampleRoute(time.Now())))
	plain, _ := cache.Get(ctx, standard)
	assert.False(t, plain.EmergencyOptimized)
	assert.Equal(t, 20.0, plain.DurationInTrafficMinutes)
}

func TestMemoryCache_SweepsExpiredWhenFull(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(time.Minute, WithMemoryClock(clock.Now), WithMaxEntries(2))
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, NewKey("a", origin, destination, false, 4), sampleRoute(clock.Now())))
	require.NoError(t, cache.Put(ctx, NewKey("b", origin, destination, false, 4), sampleRoute(clock.Now())))
	clock.Advance(2 * time.Minute)
	require.NoError(t, cache.Put(ctx, NewKey("c", origin, destination, false, 4), sampleRoute(clock.Now())))

	assert.Equal(t, 1, cache.Len())
}

// ==========================
// Redis cache
// ==========================

func TestRedisCache_RoundTripWithMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, 5*time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()
	key := NewKey("tech-1", origin, destination, true, 4)

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, key, sampleRoute(time.Now())))
	assert.Equal(t, 5*time.Minute, mr.TTL(key.String()))

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.True(t, got.EmergencyOptimized)
	assert.Equal(t, 9.0, got.DurationInTrafficMinutes)

	mr.FastForward(5 * time.Minute)
	_, ok = cache.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedisCache_StaleLastUpdatedIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, 5*time.Minute, logger.NewTestLogger(t))
	key := NewKey("tech-1", origin, destination, false, 4)

	require.NoError(t, cache.Put(context.Background(), key, sampleRoute(time.Now().Add(-10*time.Minute))))
	_, ok := cache.Get(context.Background(), key)
	assert.False(t, ok)
}

func TestRedisCache_ErrorsAreMisses(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCache(db, time.Minute, logger.NewTestLogger(t))
	key := NewKey("tech-1", origin, destination, false, 4)

	mock.ExpectGet(key.String()).SetErr(errors.New("connection refused"))
	_, ok := cache.Get(context.Background(), key)
	assert.False(t, ok)

	mock.ExpectGet(key.String()).SetVal("{not json")
	_, ok = cache.Get(context.Background(), key)
	assert.False(t, ok)

	mock.ExpectGet(key.String()).RedisNil()
	_, ok = cache.Get(context.Background(), key)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_PutFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCache(db, time.Minute, logger.NewTestLogger(t))
	key := NewKey("tech-1", origin, destination, false, 4)
	route := sampleRoute(time.Now())

	data, err := json.Marshal(route)
	require.NoError(t, err)
	mock.ExpectSet(key.String(), data, time.Minute).SetErr(errors.New("READONLY"))

	err = cache.Put(context.Background(), key, route)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_UNAVAILABLE")
	assert.NoError(t, mock.ExpectationsWereMet())
}

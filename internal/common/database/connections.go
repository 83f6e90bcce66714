// internal/common/database/connections.go
package database

import (
	"context"
	"database/sql"

	"dispatch-workers/internal/common/config"
	"dispatch-workers/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
)

// Connections holds the optional backing stores. A nil field means the store
// is not configured and callers fall back to in-process behaviour.
type Connections struct {
	Postgres      *sql.DB
	Redis         *redis.Client
	Elasticsearch *elasticsearch.Client
}

// Open connects every configured store. A store that is configured but
// unreachable is logged and left nil.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) *Connections {
	conns := &Connections{}

	if cfg.Database.Postgres.Enabled() {
		db, err := NewPostgres(ctx, cfg.Database.Postgres)
		if err != nil {
			log.Warn("Postgres unavailable, technician ids cannot be resolved", map[string]interface{}{"error": err.Error()})
		} else {
			conns.Postgres = db
		}
	}

	if cfg.Routing.Backend == "redis" {
		rdb, err := NewRedis(ctx, cfg.Database.Redis)
		if err != nil {
			log.Warn("Redis unavailable, using in-memory route cache", map[string]interface{}{"error": err.Error()})
		} else {
			conns.Redis = rdb
		}
	}

	if cfg.Database.Elasticsearch.AuditEnable {
		es, err := NewElasticsearch(ctx, cfg.Database.Elasticsearch)
		if err != nil {
			log.Warn("Elasticsearch unavailable, decision audit disabled", map[string]interface{}{"error": err.Error()})
		} else {
			conns.Elasticsearch = es
		}
	}

	return conns
}

// Close releases every open store.
func (c *Connections) Close() {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
}

package tracking

import (
	"fmt"
	"time"

	"dispatch-workers/internal/common/logger"

	cron "github.com/robfig/cron/v3"
)

// ScheduleEviction registers a cron job on c that drops technicians silent for
// longer than maxAge.
func ScheduleEviction(c *cron.Cron, store *Store, spec string, maxAge time.Duration, now func() time.Time, log logger.Logger) (cron.EntryID, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("tracking eviction max age must be positive")
	}
	if now == nil {
		now = time.Now
	}

	return c.AddFunc(spec, func() {
		if n := store.EvictStale(now().Add(-maxAge)); n > 0 {
			log.Info("Evicted silent technicians from tracking", map[string]interface{}{
				"evicted":   n,
				"remaining": store.Len(),
			})
		}
	})
}

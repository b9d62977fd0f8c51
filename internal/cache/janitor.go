package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner is implemented by caches with expiring entries.
type Cleaner interface {
	CleanExpired() int
}

// RunJanitor cleans every cache each interval until ctx is done.
func RunJanitor(ctx context.Context, interval time.Duration, caches ...Cleaner) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleaned := 0
			for _, c := range caches {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				slog.DebugContext(ctx, "Expired cache entries removed", "count", cleaned)
			}
		}
	}
}

package cache

import (
	"context"
	"time"
)

// Expirer is a cache that can drop its expired entries.
type Expirer interface {
	CleanExpired() int
}

// RunJanitor cleans every cache on each tick until ctx is done.
func RunJanitor(ctx context.Context, interval time.Duration, caches ...Expirer) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range caches {
				c.CleanExpired()
			}
		}
	}
}

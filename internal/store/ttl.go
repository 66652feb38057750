package store

import (
	"context"
	"log/slog"
	"time"
)

// TTLWorkerInterval is how often expired view state is swept.
const TTLWorkerInterval = 10 * time.Minute

// StartTTLWorker runs a background goroutine that periodically deletes view
// state not seen within ttl. It stops when ctx is cancelled.
func StartTTLWorker(ctx context.Context, repo Repository, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				cleanupExpiredSessions(ctx, repo, ttl)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func cleanupExpiredSessions(ctx context.Context, repo Repository, ttl time.Duration) {
	deleted, err := repo.DeleteExpiredSessions(ctx, ttl)
	if err != nil {
		slog.Error("TTL worker failed to delete expired sessions", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("TTL worker deleted expired sessions", "count", deleted)
	}
}

package database

import (
	"context"
	"fmt"
	"time"

	"digital-will/common/logger"

	"go.uber.org/zap"
)

// WaitForDB retries connect every interval until it succeeds and the store
// answers a ping, attempts run out, or ctx ends.
func WaitForDB(ctx context.Context, connect func() (Database, error), attempts int, interval time.Duration) (Database, error) {
	log := logger.Named("database")

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := connect()
		if err == nil {
			if err = db.Ping(); err == nil {
				if i > 1 {
					log.Info("database is ready", zap.Int("attempt", i))
				}
				return db, nil
			}
			db.Close()
		}
		lastErr = err
		log.Warn("database not ready yet", zap.Int("attempt", i), zap.Error(lastErr))

		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("database not ready after %d attempts: %w", attempts, lastErr)
}

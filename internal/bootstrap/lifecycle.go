package bootstrap

import (
	"context"
	"time"

	"hermes/pkg/logger"
)

const shutdownTimeout = 2 * time.Minute

// Shutdown performs coordinated cleanup: workers drain first, buffered
// usage logs flush next, outbound producers close, and database
// connections go last because everything above may still need them.
func (c *Container) Shutdown() {
	log := logger.Get()
	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if c.Scheduler != nil && c.Scheduler.IsRunning() {
		if err := c.Scheduler.Stop(); err != nil {
			log.Warnf("Scheduler shutdown: %v", err)
		}
	}

	c.cancel()

	if c.Usage != nil {
		if err := c.Usage.Stop(ctx); err != nil {
			log.Warnf("Usage sink shutdown: %v", err)
		}
	}

	if c.Producer != nil {
		if err := c.Producer.Close(); err != nil {
			log.Warnf("Kafka producer close: %v", err)
		}
	}

	if c.ErrorTracker != nil {
		if err := c.ErrorTracker.Flush(ctx); err != nil {
			log.Warnf("Error tracker flush: %v", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warnf("Redis close: %v", err)
		}
	}
	if c.CH != nil {
		if err := c.CH.Close(); err != nil {
			log.Warnf("ClickHouse close: %v", err)
		}
	}
	if c.PG != nil {
		if err := c.PG.Close(); err != nil {
			log.Warnf("Postgres close: %v", err)
		}
	}

	log.Info("Shutdown complete")
}

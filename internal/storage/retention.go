package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Pruner is the part of Store the retention cleaner needs
type Pruner interface {
	DeleteOlderThan(days int) (int64, error)
}

// RetentionCleaner periodically prunes readings older than the retention window
type RetentionCleaner struct {
	store         Pruner
	logger        zerolog.Logger
	retentionDays int
	period        time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	mu          sync.RWMutex
	deleted     int64
	runs        int64
	lastRun     time.Time
	lastDeleted int64
}

// RetentionCleanerConfig holds configuration for the cleaner
type RetentionCleanerConfig struct {
	RetentionDays int
	CleanupPeriod time.Duration
}

// DefaultRetentionCleanerConfig keeps a week of history on the device
func DefaultRetentionCleanerConfig() RetentionCleanerConfig {
	return RetentionCleanerConfig{
		RetentionDays: 7,
		CleanupPeriod: time.Hour,
	}
}

// RetentionCleanerStats contains statistics about the cleaner
type RetentionCleanerStats struct {
	Deleted       int64     `json:"deleted"`
	Runs          int64     `json:"runs"`
	LastRun       time.Time `json:"last_run,omitempty"`
	LastDeleted   int64     `json:"last_deleted"`
	RetentionDays int       `json:"retention_days"`
}

// NewRetentionCleaner prunes once immediately and then every CleanupPeriod
func NewRetentionCleaner(store Pruner, config RetentionCleanerConfig, logger zerolog.Logger) *RetentionCleaner {
	def := DefaultRetentionCleanerConfig()
	if config.CleanupPeriod <= 0 {
		logger.Warn().
			Dur("provided_period", config.CleanupPeriod).
			Dur("default_period", def.CleanupPeriod).
			Msg("Invalid cleanup period, using default")
		config.CleanupPeriod = def.CleanupPeriod
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = def.RetentionDays
	}

	c := &RetentionCleaner{
		store:         store,
		logger:        logger,
		retentionDays: config.RetentionDays,
		period:        config.CleanupPeriod,
		stop:          make(chan struct{}),
	}

	c.wg.Add(1)
	go c.loop()

	logger.Debug().
		Int("retention_days", c.retentionDays).
		Dur("cleanup_period", c.period).
		Msg("Retention cleaner started")

	return c
}

func (c *RetentionCleaner) loop() {
	defer c.wg.Done()

	c.RunNow()

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.RunNow()
		case <-c.stop:
			return
		}
	}
}

// RunNow prunes immediately
func (c *RetentionCleaner) RunNow() {
	deleted, err := c.store.DeleteOlderThan(c.retentionDays)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	c.lastRun = time.Now()
	if err != nil {
		c.logger.Error().Err(err).Msg("Retention cleanup failed")
		return
	}
	c.deleted += deleted
	c.lastDeleted = deleted
	if deleted > 0 {
		c.logger.Info().Int64("deleted", deleted).Int("retention_days", c.retentionDays).Msg("Pruned old readings")
	}
}

// Stop stops the cleaner. Safe to call twice.
func (c *RetentionCleaner) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}

// Stats returns current cleaner statistics
func (c *RetentionCleaner) Stats() RetentionCleanerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return RetentionCleanerStats{
		Deleted:       c.deleted,
		Runs:          c.runs,
		LastRun:       c.lastRun,
		LastDeleted:   c.lastDeleted,
		RetentionDays: c.retentionDays,
	}
}

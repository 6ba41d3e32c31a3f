package storage

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingPruner struct {
	calls atomic.Int64
	days  atomic.Int64
	n     int64
	err   error
}

func (p *countingPruner) DeleteOlderThan(days int) (int64, error) {
	p.calls.Add(1)
	p.days.Store(int64(days))
	return p.n, p.err
}

func TestRetentionCleaner_InitialRun(t *testing.T) {
	p := &countingPruner{n: 4}
	c := NewRetentionCleaner(p, RetentionCleanerConfig{RetentionDays: 3, CleanupPeriod: time.Hour}, zerolog.Nop())
	defer c.Stop()

	waitFor(t, func() bool { return p.calls.Load() == 1 })
	if got := p.days.Load(); got != 3 {
		t.Errorf("Pruned with %d days, want 3", got)
	}
	waitFor(t, func() bool { return c.Stats().Deleted == 4 })
}

func TestRetentionCleaner_Periodic(t *testing.T) {
	p := &countingPruner{}
	c := NewRetentionCleaner(p, RetentionCleanerConfig{RetentionDays: 7, CleanupPeriod: 20 * time.Millisecond}, zerolog.Nop())
	defer c.Stop()

	waitFor(t, func() bool { return p.calls.Load() >= 3 })
}

func TestRetentionCleaner_Defaults(t *testing.T) {
	p := &countingPruner{}
	c := NewRetentionCleaner(p, RetentionCleanerConfig{}, zerolog.Nop())
	defer c.Stop()

	if c.period != time.Hour {
		t.Errorf("period = %v, want 1h", c.period)
	}
	if got := c.Stats().RetentionDays; got != 7 {
		t.Errorf("RetentionDays = %d, want 7", got)
	}
}

func TestRetentionCleaner_Error(t *testing.T) {
	p := &countingPruner{n: 10, err: errors.New("database is locked")}
	c := NewRetentionCleaner(p, RetentionCleanerConfig{RetentionDays: 7, CleanupPeriod: time.Hour}, zerolog.Nop())
	c.Stop()

	c.RunNow()
	stats := c.Stats()
	if stats.Runs != 2 {
		t.Errorf("Runs = %d, want 2", stats.Runs)
	}
	if stats.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0 after failures", stats.Deleted)
	}
}

func TestRetentionCleaner_SQLite(t *testing.T) {
	store := setupTestDB(t)
	now := time.Now().UTC()
	insert(t, store,
		testReading("room204", 25, 50, 400, now.Add(-time.Hour)),
		testReading("room204", 25, 50, 400, now.AddDate(0, 0, -8)),
		testReading("room204", 25, 50, 400, now.AddDate(0, 0, -30)),
	)

	c := NewRetentionCleaner(store, RetentionCleanerConfig{RetentionDays: 7, CleanupPeriod: time.Hour}, zerolog.Nop())
	defer c.Stop()

	waitFor(t, func() bool { return c.Stats().Runs >= 1 })
	if got := c.Stats().LastDeleted; got != 2 {
		t.Errorf("LastDeleted = %d, want 2", got)
	}

	stats, err := store.GetStorageStats()
	if err != nil {
		t.Fatalf("GetStorageStats failed: %v", err)
	}
	if stats.TotalReadings != 1 {
		t.Errorf("TotalReadings = %d, want 1", stats.TotalReadings)
	}
}

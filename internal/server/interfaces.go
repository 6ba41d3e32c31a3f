package server

import (
	"time"

	"github.com/afroash/airmon/internal/models"
)

// StateSource provides the latest snapshot.
// SnapshotStore implements this interface
type StateSource interface {
	Latest() models.Snapshot
}

// NetworkSource describes the active link.
// netmgr.Manager implements this interface
type NetworkSource interface {
	NetView() models.NetView
}

// PublishSource reports the broker link.
// publish.Scheduler implements this interface
type PublishSource interface {
	Status() models.PublishStatusView
}

// HistoricalStore serves archived readings.
// storage.SQLiteStore implements this interface
type HistoricalStore interface {
	// GetReadingsInRange returns readings within a time range, newest first
	GetReadingsInRange(roomID string, start, end time.Time, limit int) ([]*models.Reading, error)
	// GetDailyStats aggregates readings per UTC day, newest day first
	GetDailyStats(roomID string, start, end time.Time) ([]models.DailySummary, error)
}

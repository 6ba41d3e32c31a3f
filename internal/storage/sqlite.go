// Package storage archives monitor readings in SQLite for the history API.
package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/afroash/airmon/internal/models"
)

// timeLayout is how recorded_at is stored; all timestamps are UTC
const timeLayout = "2006-01-02 15:04:05"

// Store defines the interface for the reading history
type Store interface {
	Close() error
	Migrate() error
	InsertBatch(readings []*models.Reading) error
	GetReadingsInRange(roomID string, start, end time.Time, limit int) ([]*models.Reading, error)
	GetDailyStats(roomID string, start, end time.Time) ([]models.DailySummary, error)
	DeleteOlderThan(days int) (int64, error)
	GetStorageStats() (*StorageStats, error)
}

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps the reading history in a local SQLite file
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// StorageStats contains information about the database
type StorageStats struct {
	TotalReadings  int64     `json:"total_readings"`
	OldestReading  time.Time `json:"oldest_reading,omitempty"`
	NewestReading  time.Time `json:"newest_reading,omitempty"`
	Rooms          int       `json:"rooms"`
	DatabaseSizeMB float64   `json:"database_size_mb"`
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates it
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("History store opened")
	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate creates the schema if it doesn't exist
func (s *SQLiteStore) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		temperature REAL NOT NULL,
		humidity REAL NOT NULL,
		heat_index REAL NOT NULL DEFAULT 0,
		gas_ppm REAL NOT NULL DEFAULT 0,
		recorded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_readings_room_time ON readings(room_id, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_readings_time ON readings(recorded_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug().Msg("Database schema migrated")
	return nil
}

// InsertBatch inserts readings in a single transaction
func (s *SQLiteStore) InsertBatch(readings []*models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO readings (room_id, temperature, humidity, heat_index, gas_ppm, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err := stmt.Exec(
			r.RoomID,
			r.Temperature,
			r.Humidity,
			models.Finite(r.HeatIndex),
			models.Finite(r.GasPPM),
			r.Timestamp.UTC().Format(timeLayout),
		); err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug().Int("count", len(readings)).Msg("Batch insert completed")
	return nil
}

// rangeFilter builds the WHERE clause shared by the range queries. An empty
// roomID matches every room.
func rangeFilter(roomID string, start, end time.Time) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if roomID != "" {
		conds = append(conds, "room_id = ?")
		args = append(args, roomID)
	}
	conds = append(conds, "recorded_at BETWEEN ? AND ?")
	args = append(args, start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	return "WHERE " + strings.Join(conds, " AND "), args
}

// GetReadingsInRange returns readings within a time range, newest first
func (s *SQLiteStore) GetReadingsInRange(roomID string, start, end time.Time, limit int) ([]*models.Reading, error) {
	where, args := rangeFilter(roomID, start, end)
	query := `
		SELECT room_id, temperature, humidity, heat_index, gas_ppm, recorded_at
		FROM readings ` + where + `
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`

	rows, err := s.db.Query(query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []*models.Reading
	for rows.Next() {
		var r models.Reading
		var recordedAt string
		if err := rows.Scan(&r.RoomID, &r.Temperature, &r.Humidity, &r.HeatIndex, &r.GasPPM, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		if r.Timestamp, err = parseTimestamp(recordedAt); err != nil {
			return nil, err
		}
		readings = append(readings, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return readings, nil
}

// GetDailyStats aggregates readings per room and UTC day, newest day first
func (s *SQLiteStore) GetDailyStats(roomID string, start, end time.Time) ([]models.DailySummary, error) {
	where, args := rangeFilter(roomID, start, end)
	query := `
		SELECT
			date(recorded_at) AS day,
			room_id,
			MIN(temperature), MAX(temperature), AVG(temperature),
			MIN(humidity), MAX(humidity), AVG(humidity),
			MAX(heat_index),
			AVG(gas_ppm), MAX(gas_ppm),
			COUNT(*)
		FROM readings ` + where + `
		GROUP BY day, room_id
		ORDER BY day DESC, room_id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []models.DailySummary
	for rows.Next() {
		var d models.DailySummary
		var day string
		if err := rows.Scan(
			&day,
			&d.RoomID,
			&d.MinTemperature, &d.MaxTemperature, &d.AvgTemperature,
			&d.MinHumidity, &d.MaxHumidity, &d.AvgHumidity,
			&d.MaxHeatIndex,
			&d.AvgGasPPM, &d.MaxGasPPM,
			&d.ReadingCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		if d.Date, err = time.Parse("2006-01-02", day); err != nil {
			return nil, fmt.Errorf("failed to parse date: %w", err)
		}
		stats = append(stats, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return stats, nil
}

// DeleteOlderThan removes readings recorded more than days ago
func (s *SQLiteStore) DeleteOlderThan(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := s.db.Exec("DELETE FROM readings WHERE recorded_at < ?", cutoff.Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Debug().
		Int("days", days).
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Deleted old readings")

	return deleted, nil
}

// GetStorageStats returns statistics about the database
func (s *SQLiteStore) GetStorageStats() (*StorageStats, error) {
	stats := &StorageStats{}

	if err := s.db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT room_id) FROM readings").
		Scan(&stats.TotalReadings, &stats.Rooms); err != nil {
		return nil, fmt.Errorf("failed to count readings: %w", err)
	}

	if stats.TotalReadings > 0 {
		var oldest, newest string
		if err := s.db.QueryRow("SELECT MIN(recorded_at), MAX(recorded_at) FROM readings").
			Scan(&oldest, &newest); err != nil {
			return nil, fmt.Errorf("failed to get timestamp range: %w", err)
		}
		stats.OldestReading, _ = parseTimestamp(oldest)
		stats.NewestReading, _ = parseTimestamp(newest)
	}

	var pageCount, pageSize int64
	s.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)

	return stats, nil
}

// parseTimestamp accepts the layouts the sqlite3 driver may hand back
func parseTimestamp(ts string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.000"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", ts)
}

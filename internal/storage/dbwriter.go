package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/airmon/internal/models"
)

// BatchInserter is the part of Store the writer needs
type BatchInserter interface {
	InsertBatch(readings []*models.Reading) error
}

// DBWriter archives readings off the acquisition path. Write never blocks;
// readings are batched and flushed by a background goroutine.
type DBWriter struct {
	store       BatchInserter
	logger      zerolog.Logger
	queue       chan *models.Reading
	batchSize   int
	flushPeriod time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	mu        sync.RWMutex
	written   int64
	batches   int64
	failures  int64
	dropped   int64
	lastFlush time.Time
}

// DBWriterConfig holds configuration for the async writer
type DBWriterConfig struct {
	BatchSize   int           // readings per transaction
	FlushPeriod time.Duration // max time a reading waits in memory
	QueueSize   int           // readings buffered before Write drops
}

// DefaultDBWriterConfig returns the defaults used when history is enabled
func DefaultDBWriterConfig() DBWriterConfig {
	return DBWriterConfig{
		BatchSize:   20,
		FlushPeriod: 30 * time.Second,
		QueueSize:   256,
	}
}

// DBWriterStats contains statistics about the writer
type DBWriterStats struct {
	Written   int64     `json:"written"`
	Batches   int64     `json:"batches"`
	Failures  int64     `json:"failures"`
	Dropped   int64     `json:"dropped"`
	LastFlush time.Time `json:"last_flush,omitempty"`
	Queued    int       `json:"queued"`
}

// NewDBWriter starts a writer on store. Zero config fields take defaults.
func NewDBWriter(store BatchInserter, config DBWriterConfig, logger zerolog.Logger) *DBWriter {
	def := DefaultDBWriterConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.FlushPeriod <= 0 {
		config.FlushPeriod = def.FlushPeriod
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}

	w := &DBWriter{
		store:       store,
		logger:      logger,
		queue:       make(chan *models.Reading, config.QueueSize),
		batchSize:   config.BatchSize,
		flushPeriod: config.FlushPeriod,
		stop:        make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	logger.Debug().
		Int("batch_size", config.BatchSize).
		Dur("flush_period", config.FlushPeriod).
		Int("queue_size", config.QueueSize).
		Msg("History writer started")

	return w
}

// Write queues a copy of reading. It returns false when the queue is full
// or the reading is invalid.
func (w *DBWriter) Write(reading *models.Reading) bool {
	if reading == nil || !reading.IsValid() {
		return false
	}
	select {
	case w.queue <- reading.Copy():
		return true
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		w.logger.Warn().Msg("History queue full, dropping reading")
		return false
	}
}

func (w *DBWriter) loop() {
	defer w.wg.Done()

	batch := make([]*models.Reading, 0, w.batchSize)
	ticker := time.NewTicker(w.flushPeriod)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			w.flush(batch)
			batch = make([]*models.Reading, 0, w.batchSize)
		}
	}

	for {
		select {
		case r := <-w.queue:
			batch = append(batch, r)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.stop:
		drain:
			for {
				select {
				case r := <-w.queue:
					batch = append(batch, r)
				default:
					break drain
				}
			}
			flush()
			w.logger.Debug().Msg("History writer stopped")
			return
		}
	}
}

func (w *DBWriter) flush(batch []*models.Reading) {
	err := w.store.InsertBatch(batch)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.failures++
		w.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to archive readings")
		return
	}
	w.written += int64(len(batch))
	w.batches++
	w.lastFlush = time.Now()
}

// Stop flushes queued readings and stops the writer. Safe to call twice.
func (w *DBWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.wg.Wait()
	})
}

// Stats returns current writer statistics
func (w *DBWriter) Stats() DBWriterStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return DBWriterStats{
		Written:   w.written,
		Batches:   w.batches,
		Failures:  w.failures,
		Dropped:   w.dropped,
		LastFlush: w.lastFlush,
		Queued:    len(w.queue),
	}
}

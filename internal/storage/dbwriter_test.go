package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/airmon/internal/models"
)

// recordingInserter captures batches instead of writing them
type recordingInserter struct {
	mu      sync.Mutex
	batches [][]*models.Reading
	err     error
	block   chan struct{}
}

func (r *recordingInserter) InsertBatch(readings []*models.Reading) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, readings)
	return nil
}

func (r *recordingInserter) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func validReading(i int) *models.Reading {
	return testReading("room204", 25, 55, 400, time.Now().UTC().Add(time.Duration(i)*time.Second))
}

func TestDBWriter_BatchFlush(t *testing.T) {
	ins := &recordingInserter{}
	w := NewDBWriter(ins, DBWriterConfig{BatchSize: 5, FlushPeriod: time.Hour, QueueSize: 100}, zerolog.Nop())
	defer w.Stop()

	for i := 0; i < 12; i++ {
		if !w.Write(validReading(i)) {
			t.Fatalf("Write %d was dropped", i)
		}
	}

	waitFor(t, func() bool { return ins.total() == 10 })
	if got := w.Stats().Batches; got != 2 {
		t.Errorf("Batches = %d, want 2", got)
	}
}

func TestDBWriter_PeriodicFlush(t *testing.T) {
	ins := &recordingInserter{}
	w := NewDBWriter(ins, DBWriterConfig{BatchSize: 100, FlushPeriod: 50 * time.Millisecond, QueueSize: 100}, zerolog.Nop())
	defer w.Stop()

	w.Write(validReading(0))
	w.Write(validReading(1))

	waitFor(t, func() bool { return ins.total() == 2 })
}

func TestDBWriter_StopFlushesQueue(t *testing.T) {
	ins := &recordingInserter{}
	w := NewDBWriter(ins, DBWriterConfig{BatchSize: 100, FlushPeriod: time.Hour, QueueSize: 100}, zerolog.Nop())

	for i := 0; i < 7; i++ {
		w.Write(validReading(i))
	}
	w.Stop()
	w.Stop()

	if got := ins.total(); got != 7 {
		t.Errorf("Flushed %d readings on stop, want 7", got)
	}
	if got := w.Stats().Written; got != 7 {
		t.Errorf("Written = %d, want 7", got)
	}
}

func TestDBWriter_RejectsInvalid(t *testing.T) {
	w := NewDBWriter(&recordingInserter{}, DefaultDBWriterConfig(), zerolog.Nop())
	defer w.Stop()

	if w.Write(nil) {
		t.Error("Expected nil reading to be rejected")
	}

	bad := validReading(0)
	bad.Temperature = models.EmptySnapshot().Temperature
	if w.Write(bad) {
		t.Error("Expected NaN temperature to be rejected")
	}
}

func TestDBWriter_QueueFull(t *testing.T) {
	ins := &recordingInserter{block: make(chan struct{})}
	w := NewDBWriter(ins, DBWriterConfig{BatchSize: 1, FlushPeriod: time.Hour, QueueSize: 2}, zerolog.Nop())

	accepted := 0
	for i := 0; i < 10; i++ {
		if w.Write(validReading(i)) {
			accepted++
		}
	}
	close(ins.block)
	w.Stop()

	if accepted == 10 {
		t.Error("Expected some writes to be dropped")
	}
	stats := w.Stats()
	if stats.Dropped != int64(10-accepted) {
		t.Errorf("Dropped = %d, want %d", stats.Dropped, 10-accepted)
	}
	if stats.Written != int64(accepted) {
		t.Errorf("Written = %d, want %d", stats.Written, accepted)
	}
}

func TestDBWriter_FailedBatch(t *testing.T) {
	ins := &recordingInserter{err: errors.New("disk I/O error")}
	w := NewDBWriter(ins, DBWriterConfig{BatchSize: 2, FlushPeriod: time.Hour, QueueSize: 10}, zerolog.Nop())

	w.Write(validReading(0))
	w.Write(validReading(1))
	w.Stop()

	stats := w.Stats()
	if stats.Failures != 1 || stats.Written != 0 {
		t.Errorf("Expected 1 failure and nothing written, got %+v", stats)
	}
}

func TestDBWriter_CopiesReading(t *testing.T) {
	ins := &recordingInserter{}
	w := NewDBWriter(ins, DBWriterConfig{BatchSize: 100, FlushPeriod: time.Hour, QueueSize: 10}, zerolog.Nop())

	r := validReading(0)
	w.Write(r)
	r.Temperature = 99
	w.Stop()

	if got := ins.batches[0][0].Temperature; got != 25 {
		t.Errorf("Archived temperature = %v, want 25", got)
	}
}

func TestDBWriter_SQLite(t *testing.T) {
	store := setupTestDB(t)
	w := NewDBWriter(store, DBWriterConfig{BatchSize: 3, FlushPeriod: time.Hour, QueueSize: 10}, zerolog.Nop())

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 4; i++ {
		w.Write(testReading("room204", 25, 50, 400, base.Add(time.Duration(i)*time.Second)))
	}
	w.Stop()

	got, err := store.GetReadingsInRange("room204", base, base.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("GetReadingsInRange failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("Got %d readings, want 4", len(got))
	}
}

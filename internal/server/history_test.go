package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/afroash/airmon/internal/models"
)

type fakeHistory struct {
	roomID     string
	start, end time.Time
	limit      int
	readings   []*models.Reading
	days       []models.DailySummary
	err        error
}

func (f *fakeHistory) GetReadingsInRange(roomID string, start, end time.Time, limit int) ([]*models.Reading, error) {
	f.roomID, f.start, f.end, f.limit = roomID, start, end, limit
	return f.readings, f.err
}

func (f *fakeHistory) GetDailyStats(roomID string, start, end time.Time) ([]models.DailySummary, error) {
	f.roomID, f.start, f.end = roomID, start, end
	return f.days, f.err
}

func TestHandleHistory(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hist := &fakeHistory{readings: []*models.Reading{
		{RoomID: "204", Timestamp: ts, Temperature: 22, Humidity: 50, HeatIndex: 22.1, GasPPM: 600},
	}}
	_, h := newTestAPI(Deps{History: hist})

	rec := do(h, http.MethodGet, "/history?from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00%2B02:00&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if hist.roomID != "204" || hist.limit != 10 {
		t.Errorf("query room=%q limit=%d", hist.roomID, hist.limit)
	}
	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC); !hist.start.Equal(want) {
		t.Errorf("start = %v, want %v", hist.start, want)
	}
	if want := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC); !hist.end.Equal(want) {
		t.Errorf("end = %v, want %v", hist.end, want)
	}

	var got []models.Reading
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].GasPPM != 600 {
		t.Errorf("readings = %+v", got)
	}
}

func TestHandleHistory_Defaults(t *testing.T) {
	hist := &fakeHistory{}
	_, h := newTestAPI(Deps{History: hist})

	rec := do(h, http.MethodGet, "/history?limit=999999")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if hist.limit != maxHistoryLimit {
		t.Errorf("limit = %d, want %d", hist.limit, maxHistoryLimit)
	}
	if got := hist.end.Sub(hist.start); got != defaultHistoryWindow {
		t.Errorf("window = %v, want %v", got, defaultHistoryWindow)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("empty body = %q, want []", body)
	}
}

func TestHandleHistory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		deps       Deps
		target     string
		wantStatus int
	}{
		{"disabled", Deps{}, "/history", http.StatusNotImplemented},
		{"bad from", Deps{History: &fakeHistory{}}, "/history?from=yesterday", http.StatusBadRequest},
		{"bad to", Deps{History: &fakeHistory{}}, "/history?to=last-week", http.StatusBadRequest},
		{"reversed", Deps{History: &fakeHistory{}}, "/history?from=2026-03-02T00:00:00Z&to=2026-03-01T00:00:00Z", http.StatusBadRequest},
		{"store error", Deps{History: &fakeHistory{err: errors.New("locked")}}, "/history", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestAPI(tt.deps)
			if rec := do(h, http.MethodGet, tt.target); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleDailyHistory(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	hist := &fakeHistory{days: []models.DailySummary{
		{Date: day, RoomID: "204", MaxGasPPM: 900, AvgGasPPM: 620, ReadingCount: 2400},
	}}
	_, h := newTestAPI(Deps{History: hist})

	rec := do(h, http.MethodGet, "/history/daily")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := hist.end.Sub(hist.start); got != defaultDailyWindow {
		t.Errorf("window = %v, want %v", got, defaultDailyWindow)
	}

	var got []models.DailySummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].MaxGasPPM != 900 || !got[0].Date.Equal(day) {
		t.Errorf("days = %+v", got)
	}
}

func TestHandleDailyHistory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		deps       Deps
		target     string
		wantStatus int
	}{
		{"disabled", Deps{}, "/history/daily", http.StatusNotImplemented},
		{"bad from", Deps{History: &fakeHistory{}}, "/history/daily?from=yesterday", http.StatusBadRequest},
		{"store error", Deps{History: &fakeHistory{err: errors.New("locked")}}, "/history/daily", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestAPI(tt.deps)
			if rec := do(h, http.MethodGet, tt.target); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleDailyHistory_Empty(t *testing.T) {
	_, h := newTestAPI(Deps{History: &fakeHistory{}})

	rec := do(h, http.MethodGet, "/history/daily")
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("empty body = %q, want []", body)
	}
}

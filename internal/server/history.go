package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/afroash/airmon/internal/models"
	"github.com/relvacode/iso8601"
)

const (
	defaultHistoryWindow = 24 * time.Hour
	defaultDailyWindow   = 7 * 24 * time.Hour
	defaultHistoryLimit  = 500
	maxHistoryLimit      = 5000
)

// parseRange reads from/to (ISO 8601). Missing to means now; missing from
// means window before to.
func parseRange(q url.Values, window time.Duration) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if s := q.Get("to"); s != "" {
		t, err := iso8601.ParseString(s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to: " + err.Error())
		}
		end = t.UTC()
	}
	start := end.Add(-window)
	if s := q.Get("from"); s != "" {
		t, err := iso8601.ParseString(s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from: " + err.Error())
		}
		start = t.UTC()
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, errors.New("from is after to")
	}
	return start, end, nil
}

// HandleHistory returns archived readings between from and to, newest
// first. Without bounds the last 24 hours are returned.
func (api *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if api.deps.History == nil {
		writeJSON(w, http.StatusNotImplemented, models.ErrorView{OK: false, Err: "history not available"})
		return
	}

	q := r.URL.Query()
	start, end, err := parseRange(q, defaultHistoryWindow)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorView{OK: false, Err: err.Error()})
		return
	}

	limit := defaultHistoryLimit
	if s := q.Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	readings, err := api.deps.History.GetReadingsInRange(api.roomID, start, end, limit)
	if err != nil {
		api.logger.Error().Err(err).Msg("Failed to query history")
		writeJSON(w, http.StatusInternalServerError, models.ErrorView{OK: false, Err: "history query failed"})
		return
	}
	if readings == nil {
		readings = []*models.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// HandleDailyHistory returns per-day aggregates, defaulting to the last week
func (api *APIHandler) HandleDailyHistory(w http.ResponseWriter, r *http.Request) {
	if api.deps.History == nil {
		writeJSON(w, http.StatusNotImplemented, models.ErrorView{OK: false, Err: "history not available"})
		return
	}

	start, end, err := parseRange(r.URL.Query(), defaultDailyWindow)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorView{OK: false, Err: err.Error()})
		return
	}

	days, err := api.deps.History.GetDailyStats(api.roomID, start, end)
	if err != nil {
		api.logger.Error().Err(err).Msg("Failed to query daily history")
		writeJSON(w, http.StatusInternalServerError, models.ErrorView{OK: false, Err: "history query failed"})
		return
	}
	if days == nil {
		days = []models.DailySummary{}
	}
	writeJSON(w, http.StatusOK, days)
}

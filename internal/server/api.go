package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/afroash/airmon/internal/gas"
	"github.com/afroash/airmon/internal/metrics"
	"github.com/afroash/airmon/internal/models"
	"github.com/rs/zerolog"
)

// Recalibration defaults when the query leaves a parameter out
const (
	defaultRecalSamples    = 100
	defaultRecalIntervalMs = 100
	defaultRecalWarmupMs   = 3000
)

// Deps are the sources the API reads from. Baseline, Publisher, History
// and Stream are optional; Baseline and History answer 501 when nil.
type Deps struct {
	State     StateSource
	Network   NetworkSource
	Baseline  gas.BaselineProvider
	Publisher PublishSource
	History   HistoricalStore
	Stream    *Stream
	Device    *models.DeviceInfo

	// Gate serializes the device routes with the acquisition cycle
	Gate sync.Locker
}

// APIHandler serves the read-only device API
type APIHandler struct {
	deps   Deps
	roomID string
	port   int
	logger zerolog.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(deps Deps, roomID string, port int, logger zerolog.Logger) *APIHandler {
	if deps.Gate == nil {
		deps.Gate = &sync.Mutex{}
	}
	if deps.Stream != nil {
		deps.Stream.setGate(deps.Gate)
	}
	return &APIHandler{
		deps:   deps,
		roomID: roomID,
		port:   port,
		logger: logger,
	}
}

// gated runs h while holding the device gate, one request at a time
func (api *APIHandler) gated(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.deps.Gate.Lock()
		defer api.deps.Gate.Unlock()
		h(w, r)
	}
}

// HandleState returns the latest snapshot
func (api *APIHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.deps.State.Latest().State())
}

// HandleNet describes the active network link
func (api *APIHandler) HandleNet(w http.ResponseWriter, r *http.Request) {
	view := models.NetView{Mode: models.ModeNone}
	if api.deps.Network != nil {
		view = api.deps.Network.NetView()
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleBaseline returns the calibrated R0, 501 without a provider
func (api *APIHandler) HandleBaseline(w http.ResponseWriter, r *http.Request) {
	if api.deps.Baseline == nil {
		writeJSON(w, http.StatusNotImplemented, models.BaselineView{R0: models.ThreeDecimals(math.NaN())})
		return
	}
	writeJSON(w, http.StatusOK, models.BaselineView{R0: models.ThreeDecimals(api.deps.Baseline.Baseline())})
}

// HandleRecalibrate runs a blocking recalibration. s is the sample
// count, i the interval and w the warm-up, both in milliseconds.
func (api *APIHandler) HandleRecalibrate(w http.ResponseWriter, r *http.Request) {
	if api.deps.Baseline == nil {
		writeJSON(w, http.StatusNotImplemented, models.ErrorView{OK: false, Err: "recalibrate not available"})
		return
	}

	q := r.URL.Query()
	samples := queryUint(q, "s", defaultRecalSamples)
	intervalMs := queryUint(q, "i", defaultRecalIntervalMs)
	warmupMs := queryUint(q, "w", defaultRecalWarmupMs)

	start := time.Now()
	r0, err := api.deps.Baseline.Recalibrate(
		int(samples),
		time.Duration(intervalMs)*time.Millisecond,
		time.Duration(warmupMs)*time.Millisecond,
	)
	ok := err == nil
	if !ok {
		api.logger.Warn().Err(err).Uint64("samples", samples).Msg("Recalibration request failed")
	} else {
		api.logger.Info().Float64("r0", r0).Dur("took", time.Since(start)).Msg("Recalibration request done")
	}

	baseline := api.deps.Baseline.Baseline()
	if api.deps.Stream != nil {
		api.deps.Stream.Notify(models.MessageTypeCalibration, models.CalibrationMessage{
			R0:         models.ThreeDecimals(baseline),
			Calibrated: !math.IsNaN(baseline),
		})
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, models.RecalibrateView{
		OK:       ok,
		R0:       models.ThreeDecimals(baseline),
		Samples:  samples,
		Interval: intervalMs,
		Warmup:   warmupMs,
	})
}

// HandleMQTT reports the broker link
func (api *APIHandler) HandleMQTT(w http.ResponseWriter, r *http.Request) {
	view := models.PublishStatusView{Broker: models.BrokerDisconnected}
	if api.deps.Publisher != nil {
		view = api.deps.Publisher.Status()
	}
	writeJSON(w, http.StatusOK, view)
}

// fallback answers CORS preflights for any path and 404 otherwise
func (api *APIHandler) fallback(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("Not found"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// queryUint reads an unsigned parameter the way strtoul does: leading
// digits are used, anything unparsable reads as 0.
func queryUint(q map[string][]string, key string, def uint64) uint64 {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return def
	}
	var n uint64
	for _, c := range vals[0] {
		if c < '0' || c > '9' {
			break
		}
		d := uint64(c - '0')
		if n > (math.MaxUint64-d)/10 {
			return math.MaxUint64
		}
		n = n*10 + d
	}
	return n
}

// statusRecorder captures the response code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func observe(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

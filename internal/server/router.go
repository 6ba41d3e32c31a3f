package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the HTTP handler. Device routes are GET only and run
// under the gate; everything unmatched goes to the preflight/404 fallback.
func (api *APIHandler) Router(cors bool) http.Handler {
	router := mux.NewRouter()

	device := map[string]http.HandlerFunc{
		"/":               api.HandleIndex,
		"/state":          api.HandleState,
		"/net":            api.HandleNet,
		"/mq/r0":          api.HandleBaseline,
		"/mq/recalibrate": api.HandleRecalibrate,
		"/mqtt":           api.HandleMQTT,
	}
	for path, h := range device {
		router.HandleFunc(path, observe(path, api.gated(h))).Methods(http.MethodGet)
	}

	router.HandleFunc("/history", observe("/history", api.HandleHistory)).Methods(http.MethodGet)
	router.HandleFunc("/history/daily", observe("/history/daily", api.HandleDailyHistory)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if api.deps.Stream != nil {
		router.Handle("/ws", api.deps.Stream).Methods(http.MethodGet)
	}

	router.NotFoundHandler = http.HandlerFunc(api.fallback)
	router.MethodNotAllowedHandler = http.HandlerFunc(api.fallback)

	return withHeaders(router, cors)
}

// withHeaders adds the headers every response carries
func withHeaders(next http.Handler, cors bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cors {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

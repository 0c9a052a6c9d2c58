package ingest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// latestEntry is the REST shape of one cached report.
type latestEntry struct {
	NodeID    string  `json:"node_id"`
	Channel   uint8   `json:"channel"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
	Forced    bool    `json:"forced"`
	Timestamp string  `json:"timestamp"`
}

// NewRouter exposes the ingest REST surface:
//
//	GET /healthz      liveness
//	GET /readyz       readiness (no recent Influx write errors)
//	GET /data/latest  cached most-recent report per node channel
//	GET /metrics      prometheus
func NewRouter(svc *Service, metrics *Metrics, minOkErrorAge time.Duration) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ready := svc.writer == nil || svc.writer.LastErrorAge() > minOkErrorAge
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
	}).Methods(http.MethodGet)

	r.HandleFunc("/data/latest", func(w http.ResponseWriter, r *http.Request) {
		kindFilter := r.URL.Query().Get("kind")

		out := make([]latestEntry, 0)
		for _, rep := range svc.Latest() {
			if kindFilter != "" && string(rep.Kind) != kindFilter {
				continue
			}
			out = append(out, latestEntry{
				NodeID:    rep.NodeID,
				Channel:   uint8(rep.Channel),
				Kind:      string(rep.Kind),
				Value:     rep.Value,
				Forced:    rep.Forced,
				Timestamp: rep.Timestamp.UTC().Format(time.RFC3339),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return r
}

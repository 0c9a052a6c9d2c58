package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sony/gobreaker"

	"github.com/sensormesh/sensormesh/internal/model"
	"github.com/sensormesh/sensormesh/pkg/transport"
)

// ReportEntry mirrors the ingest /data/latest payload.
type ReportEntry struct {
	NodeID    string  `json:"node_id"`
	Channel   uint8   `json:"channel"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value"`
	Forced    bool    `json:"forced"`
	Timestamp string  `json:"timestamp"`
}

// Overview is the aggregated fleet view served to operators.
type Overview struct {
	Nodes      []NodeStatus  `json:"nodes"`
	Data       []ReportEntry `json:"data"`
	DataSource string        `json:"data_source"` // live | cache | none
}

// CommandPublisherFactory builds a publisher for one node's command
// topic.
type CommandPublisherFactory func(nodeID string) transport.IPublisher

type Config struct {
	IngestBaseURL   string
	HTTPTimeout     time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

// Gateway serves the fleet REST surface. The ingest upstream sits
// behind a circuit breaker; while it is open the last good data set is
// served from cache.
type Gateway struct {
	cfg      Config
	registry *Registry
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	commands CommandPublisherFactory

	mu       sync.Mutex
	lastGood []ReportEntry
}

func NewGateway(cfg Config, registry *Registry, commands CommandPublisherFactory) *Gateway {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 3 * time.Second
	}
	if cfg.BreakerFailures < 1 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ingest",
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
	})
	return &Gateway{
		cfg:      cfg,
		registry: registry,
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
		breaker:  cb,
		commands: commands,
	}
}

func (g *Gateway) fetchLatest(ctx context.Context) ([]ReportEntry, error) {
	url := g.cfg.IngestBaseURL + "/data/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s -> %s", url, res.Status)
	}
	var out []ReportEntry
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// latestData goes through the breaker and falls back to the last good
// response when the upstream is failing or the breaker is open.
func (g *Gateway) latestData(ctx context.Context) ([]ReportEntry, string) {
	res, err := g.breaker.Execute(func() (any, error) {
		return g.fetchLatest(ctx)
	})
	if err == nil {
		data := res.([]ReportEntry)
		g.mu.Lock()
		g.lastGood = data
		g.mu.Unlock()
		return data, "live"
	}

	g.mu.Lock()
	cached := g.lastGood
	g.mu.Unlock()
	if cached != nil {
		return cached, "cache"
	}
	return nil, "none"
}

// Router exposes:
//
//	GET  /healthz
//	GET  /fleet/overview
//	POST /fleet/nodes/{id}/force-report
func (g *Gateway) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/fleet/overview", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ctx, cancel := context.WithTimeout(req.Context(), g.cfg.HTTPTimeout)
		defer cancel()

		data, source := g.latestData(ctx)
		ov := Overview{
			Nodes:      g.registry.Snapshot(),
			Data:       data,
			DataSource: source,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ov)

		log.Printf("GET /fleet/overview [%dms] cb=%v nodes=%d entries=%d source=%s",
			time.Since(start).Milliseconds(), g.breaker.State(), len(ov.Nodes), len(ov.Data), source)
	}).Methods(http.MethodGet)

	r.HandleFunc("/fleet/nodes/{id}/force-report", func(w http.ResponseWriter, req *http.Request) {
		if g.commands == nil {
			http.Error(w, "command plane not configured", http.StatusServiceUnavailable)
			return
		}
		nodeID := mux.Vars(req)["id"]
		cmd := model.Command{
			MessageID: uuid.NewString(),
			NodeID:    nodeID,
			Type:      model.CommandForceReport,
			Timestamp: time.Now().UTC(),
		}
		b, _ := json.Marshal(cmd)
		if err := g.commands(nodeID).PublishMessage(string(b)); err != nil {
			log.Printf("force-report publish error for %s: %v", nodeID, err)
			http.Error(w, "publish failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"message_id": cmd.MessageID})
	}).Methods(http.MethodPost)

	return r
}

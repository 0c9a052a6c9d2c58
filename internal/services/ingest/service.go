// Package ingest persists node reports: MQTT in, InfluxDB out, with an
// in-memory latest-value cache serving the REST API.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sensormesh/sensormesh/internal/model"
	"github.com/sensormesh/sensormesh/pkg/transport"
)

// PointWriter is the slice of Writer the service needs; tests swap in
// a capture fake.
type PointWriter interface {
	WritePoint(p *write.Point)
	LastErrorAge() time.Duration
}

type Service struct {
	consumer    transport.IConsumer
	writer      PointWriter
	metrics     *Metrics
	measurement string

	mu     sync.RWMutex
	latest map[string]model.Report // node_id|channel -> most recent report
}

func NewService(consumer transport.IConsumer, writer PointWriter, metrics *Metrics, measurement string) (*Service, error) {
	if measurement == "" {
		return nil, fmt.Errorf("measurement name must not be empty")
	}
	return &Service{
		consumer:    consumer,
		writer:      writer,
		metrics:     metrics,
		measurement: measurement,
		latest:      make(map[string]model.Report),
	}, nil
}

// Start blocks consuming reports until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(s.handleReport)
	s.consumer.ConsumeMessage(ctx)
}

// handleReport ingests one report. Malformed payloads are dropped, not
// returned as errors: one bad node must not stall the stream.
func (s *Service) handleReport(topic string, msg mqtt.Message) error {
	var r model.Report
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		s.metrics.invalidPayloads.Inc()
		log.Printf("ingest: invalid JSON on %s: %v", topic, err)
		return nil
	}
	if r.NodeID == "" || !r.Kind.Valid() {
		s.metrics.invalidPayloads.Inc()
		log.Printf("ingest: dropping report with node=%q kind=%q", r.NodeID, r.Kind)
		return nil
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	s.metrics.reportsTotal.WithLabelValues(string(r.Kind)).Inc()
	s.storeLatest(r)
	s.writer.WritePoint(s.reportToPoint(r))
	return nil
}

func (s *Service) storeLatest(r model.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest[fmt.Sprintf("%s|%d", r.NodeID, r.Channel)] = r

	nodes := make(map[string]struct{}, len(s.latest))
	for _, v := range s.latest {
		nodes[v.NodeID] = struct{}{}
	}
	s.metrics.nodesSeen.Set(float64(len(nodes)))
}

// Latest returns the cached most-recent report per node channel,
// ordered by node then channel.
func (s *Service) Latest() []model.Report {
	s.mu.RLock()
	out := make([]model.Report, 0, len(s.latest))
	for _, r := range s.latest {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeID != out[j].NodeID {
			return out[i].NodeID < out[j].NodeID
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

// reportToPoint maps a report onto one Influx point: identity as tags,
// the reading and force flag as fields.
func (s *Service) reportToPoint(r model.Report) *write.Point {
	tags := map[string]string{
		"node_id": r.NodeID,
		"channel": fmt.Sprintf("%d", r.Channel),
		"kind":    string(r.Kind),
	}
	fields := map[string]interface{}{
		"value":  r.Value,
		"forced": r.Forced,
	}
	return influxdb2.NewPoint(s.measurement, tags, fields, r.Timestamp)
}

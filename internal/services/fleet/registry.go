// Package fleet gives operators one view over the node fleet: liveness
// derived from MQTT traffic, latest data fetched from the ingest
// service, and a command plane to force node reports.
package fleet

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sensormesh/sensormesh/internal/model"
)

// Registry tracks when each node was last heard from. Reports and
// presentations both count as an implicit heartbeat.
type Registry struct {
	ttl   time.Duration
	grace time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	nodes map[string]*nodeEntry
}

type nodeEntry struct {
	lastSeen time.Time
	channels map[model.ChannelID]model.Kind
}

func NewRegistry(ttl, grace time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if grace < 0 {
		grace = 0
	}
	return &Registry{
		ttl:   ttl,
		grace: grace,
		now:   time.Now,
		nodes: make(map[string]*nodeEntry),
	}
}

// HandleMessage consumes any node-originated topic and updates the
// liveness and channel tables.
func (r *Registry) HandleMessage(topic string, msg mqtt.Message) error {
	switch {
	case strings.HasPrefix(topic, model.TopicPresentationPrefix+"/"):
		var p model.Presentation
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			return fmt.Errorf("invalid presentation on %s: %w", topic, err)
		}
		if p.NodeID == "" {
			return nil
		}
		r.markSeen(p.NodeID, p.Channel, p.Kind)

	case strings.HasPrefix(topic, model.TopicReportPrefix+"/"):
		var rep model.Report
		if err := json.Unmarshal(msg.Payload(), &rep); err != nil {
			return fmt.Errorf("invalid report on %s: %w", topic, err)
		}
		if rep.NodeID == "" {
			return nil
		}
		r.markSeen(rep.NodeID, rep.Channel, rep.Kind)

	default:
		log.Printf("fleet: ignoring message on %s", topic)
	}
	return nil
}

func (r *Registry) markSeen(nodeID string, ch model.ChannelID, kind model.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.nodes[nodeID]
	if !ok {
		e = &nodeEntry{channels: make(map[model.ChannelID]model.Kind)}
		r.nodes[nodeID] = e
	}
	e.lastSeen = r.now()
	if kind.Valid() {
		e.channels[ch] = kind
	}
}

// ChannelInfo is one presented channel in a node status.
type ChannelInfo struct {
	Channel uint8  `json:"channel"`
	Kind    string `json:"kind"`
}

// NodeStatus is the externally visible liveness of one node.
type NodeStatus struct {
	ID       string        `json:"id"`
	Online   bool          `json:"online"`
	LastSeen time.Time     `json:"last_seen"`
	Channels []ChannelInfo `json:"channels"`
}

// Snapshot lists every known node, ordered by id. A node is online
// while its silence stays within TTL plus grace.
func (r *Registry) Snapshot() []NodeStatus {
	now := r.now()

	r.mu.RLock()
	out := make([]NodeStatus, 0, len(r.nodes))
	for id, e := range r.nodes {
		st := NodeStatus{
			ID:       id,
			Online:   now.Sub(e.lastSeen) <= r.ttl+r.grace,
			LastSeen: e.lastSeen,
		}
		for ch, kind := range e.channels {
			st.Channels = append(st.Channels, ChannelInfo{Channel: uint8(ch), Kind: string(kind)})
		}
		sort.Slice(st.Channels, func(i, j int) bool { return st.Channels[i].Channel < st.Channels[j].Channel })
		out = append(out, st)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

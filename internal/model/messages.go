package model

import "time"

// Report is one channel value published by a node, fire-and-forget.
// Digital channels encode false/true as 0/1 in Value.
type Report struct {
	MessageID string    `json:"message_id"`
	NodeID    string    `json:"node_id"`
	Channel   ChannelID `json:"channel"`
	Kind      Kind      `json:"kind"`
	Value     float64   `json:"value"`
	Forced    bool      `json:"forced"`
	Timestamp time.Time `json:"timestamp"`
}

// Presentation registers a channel's semantic type with the network.
// Published once per channel at node startup.
type Presentation struct {
	NodeID    string    `json:"node_id"`
	Channel   ChannelID `json:"channel"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandType enumerates the commands a node accepts over MQTT.
type CommandType string

const (
	// CommandForceReport makes the node's next wake cycle a forced one:
	// every channel reports its current value regardless of change.
	CommandForceReport CommandType = "force_report"
)

// Command is a gateway-to-node instruction. Delivered at QoS 1, so
// nodes dedup on MessageID.
type Command struct {
	MessageID string      `json:"message_id"`
	NodeID    string      `json:"node_id"`
	Type      CommandType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// NetworkConfig is the retained network-wide configuration nodes fetch
// once at startup.
type NetworkConfig struct {
	Metric bool `json:"metric"` // true: report temperature in °C, false: °F
}

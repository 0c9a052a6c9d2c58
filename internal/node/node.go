// Package node runs one battery sensor node: it samples its inputs once
// per wake cycle, lets the report policy decide what changed enough to
// transmit, publishes the reports and goes back to sleep until the next
// interval or a watched pin edge.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sensormesh/sensormesh/internal/model"
	"github.com/sensormesh/sensormesh/internal/node/hal"
	"github.com/sensormesh/sensormesh/internal/node/policy"
	"github.com/sensormesh/sensormesh/pkg/config"
	"github.com/sensormesh/sensormesh/pkg/dedup"
	"github.com/sensormesh/sensormesh/pkg/transport"
)

// Hardware bundles the physical inputs of one node. Disabled channels
// may leave their entry nil.
type Hardware struct {
	Temperature hal.AnalogSensor
	Humidity    hal.AnalogSensor
	Door        hal.DigitalInput
	Motion      hal.DigitalInput
	Battery     hal.AnalogSensor
}

// WakeReason says what ended a sleep period.
type WakeReason int

const (
	WakeScheduled WakeReason = iota
	WakeDoor
	WakeMotion
	WakeCancelled
)

func (r WakeReason) String() string {
	switch r {
	case WakeScheduled:
		return "scheduled"
	case WakeDoor:
		return "door edge"
	case WakeMotion:
		return "motion edge"
	case WakeCancelled:
		return "cancelled"
	}
	return "unknown"
}

type Node struct {
	cfg *config.Config
	hw  Hardware

	engine    *policy.Engine
	reports   transport.IPublisher
	presents  transport.IPublisher
	commands  transport.IConsumer
	netconfig transport.IConsumer
	deduper   *dedup.Deduper

	doorDeb   *policy.Debouncer
	motionDeb *policy.Debouncer

	metric     bool
	forceFlag  atomic.Bool
	lastDoor   bool
	lastMotion bool
}

// New wires a node from its configuration, hardware and transport.
// commands and netconfig may be nil for nodes without a command plane.
func New(cfg *config.Config, hw Hardware, reports, presents transport.IPublisher,
	commands, netconfig transport.IConsumer) *Node {
	return &Node{
		cfg:       cfg,
		hw:        hw,
		engine:    policy.NewEngine(policyConfig(cfg)),
		reports:   reports,
		presents:  presents,
		commands:  commands,
		netconfig: netconfig,
		deduper:   dedup.New(2*time.Minute, 10000),
		doorDeb:   policy.NewDebouncer(cfg.Measurement.DebounceWindow),
		motionDeb: policy.NewDebouncer(cfg.Measurement.DebounceWindow),
		metric:    cfg.Node.Metric,
	}
}

func policyConfig(cfg *config.Config) policy.Config {
	ch := func(c config.ChannelConfig) policy.ChannelConfig {
		return policy.ChannelConfig{
			Enabled:   c.Enabled,
			ID:        model.ChannelID(c.Channel),
			Threshold: c.Threshold,
		}
	}
	return policy.Config{
		ForceInterval:   cfg.Measurement.ForceInterval,
		BatteryInterval: cfg.Measurement.BatteryInterval,
		HumidityWindow:  cfg.Measurement.HumidityWindow,
		Temperature:     ch(cfg.Channels.Temperature),
		Humidity:        ch(cfg.Channels.Humidity),
		Door:            ch(cfg.Channels.Door),
		Motion:          ch(cfg.Channels.Motion),
		Battery:         ch(cfg.Channels.Battery),
	}
}

// Present registers every enabled channel with the network. Called once
// at startup, before the first cycle.
func (n *Node) Present() {
	now := time.Now().UTC()
	for _, c := range []struct {
		cfg  config.ChannelConfig
		kind model.Kind
	}{
		{n.cfg.Channels.Temperature, model.KindTemperature},
		{n.cfg.Channels.Humidity, model.KindHumidity},
		{n.cfg.Channels.Door, model.KindDoor},
		{n.cfg.Channels.Motion, model.KindMotion},
		{n.cfg.Channels.Battery, model.KindBattery},
	} {
		if !c.cfg.Enabled {
			continue
		}
		p := model.Presentation{
			NodeID:    n.cfg.Node.ID,
			Channel:   model.ChannelID(c.cfg.Channel),
			Kind:      c.kind,
			Timestamp: now,
		}
		b, _ := json.Marshal(p)
		if err := n.presents.PublishMessage(string(b)); err != nil {
			log.Printf("presentation publish error: %v", err)
		}
	}
}

// AwaitNetworkConfig waits up to the configured bound for the retained
// network configuration and falls back to the local default.
func (n *Node) AwaitNetworkConfig(ctx context.Context) {
	if n.netconfig == nil {
		return
	}

	got := make(chan bool, 1)
	n.netconfig.SetHandler(func(_ string, msg mqtt.Message) error {
		var nc model.NetworkConfig
		if err := json.Unmarshal(msg.Payload(), &nc); err != nil {
			return fmt.Errorf("invalid network config: %w", err)
		}
		select {
		case got <- nc.Metric:
		default:
		}
		return nil
	})

	cctx, cancel := context.WithTimeout(ctx, n.cfg.Measurement.ConfigWait)
	defer cancel()
	go n.netconfig.ConsumeMessage(cctx)

	select {
	case m := <-got:
		n.metric = m
		log.Printf("network config received: metric=%v", m)
	case <-cctx.Done():
		log.Printf("no network config within %s, using local default metric=%v",
			n.cfg.Measurement.ConfigWait, n.metric)
	}
}

// Run executes wake cycles until the context is cancelled. The first
// cycle runs immediately; afterwards the node sleeps for the measurement
// interval or until a watched pin edge, whichever comes first. Every
// wake, scheduled or event-triggered, counts as one cycle toward the
// forced-resync interval.
func (n *Node) Run(ctx context.Context) {
	if n.commands != nil {
		n.commands.SetHandler(n.handleCommand)
		go n.commands.ConsumeMessage(ctx)
	}

	var doorEdges, motionEdges <-chan struct{}
	if n.cfg.Channels.Door.Enabled && n.hw.Door != nil {
		doorEdges = n.hw.Door.Edges(ctx)
	}
	if n.cfg.Channels.Motion.Enabled && n.hw.Motion != nil {
		motionEdges = n.hw.Motion.Edges(ctx)
	}

	for {
		n.cycle()

		reason := n.sleep(ctx, doorEdges, motionEdges)
		if reason == WakeCancelled {
			n.reports.Close()
			return
		}
		if reason != WakeScheduled {
			log.Printf("node %s: woken by %s", n.cfg.Node.ID, reason)
		}
	}
}

// cycle reads every enabled input, runs the report policy and publishes
// its decisions. Publishing is fire-and-forget: errors are logged and
// the channel state stays advanced.
func (n *Node) cycle() {
	if n.forceFlag.Swap(false) {
		n.engine.ForceNext()
	}
	s := n.readSample()
	for _, d := range n.engine.RunCycle(s) {
		n.publish(d)
	}
}

// readSample reads the raw inputs of one cycle. Failed analog reads
// become NaN, which the policy treats as "report anyway"; failed
// digital reads keep the previous debounced state.
func (n *Node) readSample() policy.Sample {
	s := policy.Sample{
		Temperature: math.NaN(),
		Humidity:    math.NaN(),
		Battery:     math.NaN(),
	}

	if n.cfg.Channels.Temperature.Enabled && n.hw.Temperature != nil {
		if v, err := n.hw.Temperature.Read(); err != nil {
			log.Printf("temperature read error: %v", err)
		} else {
			if !n.metric {
				v = v*9/5 + 32
			}
			s.Temperature = v
		}
	}
	if n.cfg.Channels.Humidity.Enabled && n.hw.Humidity != nil {
		if v, err := n.hw.Humidity.Read(); err != nil {
			log.Printf("humidity read error: %v", err)
		} else {
			s.Humidity = v
		}
	}
	if n.cfg.Channels.Door.Enabled && n.hw.Door != nil {
		n.lastDoor = n.readDigital("door", n.hw.Door, n.doorDeb, n.lastDoor)
		s.Door = n.lastDoor
	}
	if n.cfg.Channels.Motion.Enabled && n.hw.Motion != nil {
		n.lastMotion = n.readDigital("motion", n.hw.Motion, n.motionDeb, n.lastMotion)
		s.Motion = n.lastMotion
	}
	if n.cfg.Channels.Battery.Enabled && n.hw.Battery != nil {
		if v, err := n.hw.Battery.Read(); err != nil {
			log.Printf("battery read error: %v", err)
		} else {
			s.Battery = v
		}
	}
	return s
}

// readDigital samples a pin through its debouncer. A changed reading is
// confirmed with a second sample after the debounce window; a glitch
// that reverts within the window never surfaces.
func (n *Node) readDigital(name string, in hal.DigitalInput, deb *policy.Debouncer, last bool) bool {
	raw, err := in.Read()
	if err != nil {
		log.Printf("%s read error: %v", name, err)
		return last
	}
	v := deb.Sample(raw, time.Now())
	if w := n.cfg.Measurement.DebounceWindow; w > 0 && v != raw {
		time.Sleep(w)
		raw2, err := in.Read()
		if err != nil {
			log.Printf("%s read error: %v", name, err)
			return v
		}
		v = deb.Sample(raw2, time.Now())
	}
	return v
}

func (n *Node) publish(d policy.Decision) {
	rep := model.Report{
		MessageID: uuid.NewString(),
		NodeID:    n.cfg.Node.ID,
		Channel:   d.Channel,
		Kind:      d.Kind,
		Value:     d.Value,
		Forced:    d.Forced,
		Timestamp: time.Now().UTC(),
	}
	b, _ := json.Marshal(rep)
	if err := n.reports.PublishMessage(string(b)); err != nil {
		log.Printf("report publish error: %v", err)
	}
}

// handleCommand processes one gateway command. QoS 1 redeliveries are
// dropped by message id.
func (n *Node) handleCommand(_ string, msg mqtt.Message) error {
	var cmd model.Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}
	if cmd.NodeID != "" && cmd.NodeID != n.cfg.Node.ID {
		return nil
	}
	if !n.deduper.ShouldProcess(cmd.MessageID) {
		return nil
	}

	switch cmd.Type {
	case model.CommandForceReport:
		n.forceFlag.Store(true)
		log.Printf("node %s: force report requested", n.cfg.Node.ID)
	default:
		log.Printf("node %s: unknown command %q", n.cfg.Node.ID, cmd.Type)
	}
	return nil
}

func (n *Node) sleep(ctx context.Context, door, motion <-chan struct{}) WakeReason {
	timer := time.NewTimer(n.cfg.Measurement.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return WakeCancelled
	case <-timer.C:
		return WakeScheduled
	case <-door:
		return WakeDoor
	case <-motion:
		return WakeMotion
	}
}

// SelfTest reads every enabled input once and returns an error naming
// the ones that failed. Used by the startup diagnostic mode; the caller
// is expected to refuse to start on failure.
func (n *Node) SelfTest() error {
	var failed []string

	checkAnalog := func(name string, enabled bool, s hal.AnalogSensor) {
		if !enabled || s == nil {
			return
		}
		if _, err := s.Read(); err != nil {
			log.Printf("selftest: %s: %v", name, err)
			failed = append(failed, name)
		}
	}
	checkDigital := func(name string, enabled bool, in hal.DigitalInput) {
		if !enabled || in == nil {
			return
		}
		if _, err := in.Read(); err != nil {
			log.Printf("selftest: %s: %v", name, err)
			failed = append(failed, name)
		}
	}

	checkAnalog("temperature", n.cfg.Channels.Temperature.Enabled, n.hw.Temperature)
	checkAnalog("humidity", n.cfg.Channels.Humidity.Enabled, n.hw.Humidity)
	checkDigital("door", n.cfg.Channels.Door.Enabled, n.hw.Door)
	checkDigital("motion", n.cfg.Channels.Motion.Enabled, n.hw.Motion)
	checkAnalog("battery", n.cfg.Channels.Battery.Enabled, n.hw.Battery)

	if len(failed) > 0 {
		return fmt.Errorf("self-test failed for: %s", strings.Join(failed, ", "))
	}
	return nil
}

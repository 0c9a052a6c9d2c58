// Package policy implements the per-cycle decision logic of a sensor
// node: which channel values changed enough to be worth a radio
// transmission, and when a full forced resync is due.
package policy

import (
	"math"

	"github.com/sensormesh/sensormesh/internal/model"
)

// ChannelConfig enables one logical channel on a node.
// Threshold only applies to analog kinds and must be >= 0.
type ChannelConfig struct {
	Enabled   bool
	ID        model.ChannelID
	Threshold float64
}

// Config holds the tunables of the report policy.
type Config struct {
	// ForceInterval is the number of cycles after which every enabled
	// channel reports regardless of change. Minimum 1.
	ForceInterval int
	// BatteryInterval is the independent cadence of the battery channel,
	// in cycles. Battery also reports on any forced cycle. Minimum 1.
	BatteryInterval int
	// HumidityWindow is the size of the running average applied to raw
	// humidity samples before threshold comparison. Minimum 1.
	HumidityWindow int

	Temperature ChannelConfig
	Humidity    ChannelConfig
	Door        ChannelConfig
	Motion      ChannelConfig
	Battery     ChannelConfig
}

func (c Config) normalized() Config {
	if c.ForceInterval < 1 {
		c.ForceInterval = 1
	}
	if c.BatteryInterval < 1 {
		c.BatteryInterval = 1
	}
	if c.HumidityWindow < 1 {
		c.HumidityWindow = 1
	}
	return c
}

// Sample carries the raw readings of one wake cycle. Analog values use
// NaN for a failed read; the policy fails open and reports anyway.
// Digital values are expected to be debounced by the caller.
type Sample struct {
	Temperature float64
	Humidity    float64
	Door        bool
	Motion      bool
	Battery     float64
}

// Decision is one outbound report produced by a cycle.
type Decision struct {
	Channel model.ChannelID
	Kind    model.Kind
	Value   float64
	Forced  bool
}

// channelState tracks the last transmitted value of one channel.
// last starts as NaN, the sentinel that makes the first evaluation
// always transmit.
type channelState struct {
	id        model.ChannelID
	kind      model.Kind
	threshold float64
	last      float64
}

func newChannelState(cfg ChannelConfig, kind model.Kind) channelState {
	return channelState{id: cfg.ID, kind: kind, threshold: cfg.Threshold, last: math.NaN()}
}

// shouldTransmit is the change-detection rule: transmit when forced,
// when no value was ever sent, when the comparison is indeterminate
// (NaN on either side), on any change for digital kinds, and on a
// change beyond the threshold for analog kinds.
func (c *channelState) shouldTransmit(v float64, force bool) bool {
	if force || math.IsNaN(c.last) || math.IsNaN(v) {
		return true
	}
	if c.kind.Digital() {
		return v != c.last
	}
	return math.Abs(v-c.last) > c.threshold
}

// Engine owns all channel state of one node and decides, once per wake
// cycle, what to report. It is not safe for concurrent use; a node runs
// one cycle at a time.
type Engine struct {
	cfg Config

	temperature channelState
	humidity    channelState
	door        channelState
	motion      channelState
	battery     channelState

	humidityAvg *RunningAverage

	measureCount int
	batteryCount int
	pendingForce bool
}

func NewEngine(cfg Config) *Engine {
	cfg = cfg.normalized()
	return &Engine{
		cfg:         cfg,
		temperature: newChannelState(cfg.Temperature, model.KindTemperature),
		humidity:    newChannelState(cfg.Humidity, model.KindHumidity),
		door:        newChannelState(cfg.Door, model.KindDoor),
		motion:      newChannelState(cfg.Motion, model.KindMotion),
		battery:     newChannelState(cfg.Battery, model.KindBattery),
		humidityAvg: NewRunningAverage(cfg.HumidityWindow),
	}
}

// ForceNext marks the next cycle as forced, as if the force interval had
// elapsed. Used for the force_report command.
func (e *Engine) ForceNext() { e.pendingForce = true }

// MeasureCount exposes the cycles elapsed since the last forced resync.
func (e *Engine) MeasureCount() int { return e.measureCount }

// RunCycle evaluates one wake cycle worth of readings and returns the
// reports to transmit. Channel state is updated as if every returned
// report were delivered; transmission is fire-and-forget and failures do
// not feed back into the policy.
//
// The shared measure counter increments every cycle and resets to zero
// exactly on cycles where the forced resync triggers (interval elapsed
// or an explicit ForceNext). Threshold-triggered transmissions do not
// reset it.
func (e *Engine) RunCycle(s Sample) []Decision {
	e.measureCount++
	force := e.pendingForce
	e.pendingForce = false
	if e.measureCount >= e.cfg.ForceInterval {
		force = true
	}
	if force {
		e.measureCount = 0
	}

	var out []Decision

	// Temperature and humidity are evaluated from the same sample pair,
	// each against its own threshold. The humidity average is advanced
	// every cycle so a later forced resync sees a settled value.
	avg := s.Humidity
	if e.cfg.Humidity.Enabled {
		avg = e.humidityAvg.Add(s.Humidity)
	}
	if e.cfg.Temperature.Enabled {
		out = e.evaluate(out, &e.temperature, s.Temperature, force)
	}
	if e.cfg.Humidity.Enabled {
		out = e.evaluate(out, &e.humidity, avg, force)
	}
	if e.cfg.Door.Enabled {
		out = e.evaluate(out, &e.door, boolValue(s.Door), force)
	}
	if e.cfg.Motion.Enabled {
		out = e.evaluate(out, &e.motion, boolValue(s.Motion), force)
	}

	// Battery runs on its own slower counter: voltage moves too slowly
	// to check every cycle. A forced cycle flushes it as well.
	if e.cfg.Battery.Enabled {
		e.batteryCount++
		if force || e.batteryCount >= e.cfg.BatteryInterval {
			e.batteryCount = 0
			out = e.evaluate(out, &e.battery, s.Battery, true)
		}
	}

	return out
}

func (e *Engine) evaluate(out []Decision, c *channelState, v float64, force bool) []Decision {
	if !c.shouldTransmit(v, force) {
		return out
	}
	c.last = v
	return append(out, Decision{Channel: c.id, Kind: c.kind, Value: v, Forced: force})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

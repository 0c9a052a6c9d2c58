// Package hal abstracts the physical inputs of a sensor node. Real
// deployments back these interfaces with GPIO and sensor bus drivers;
// this repository ships simulated implementations.
package hal

import "context"

// DigitalInput is a two-state pin (door contact, PIR output).
type DigitalInput interface {
	Read() (bool, error)
	// Edges delivers one signal per pin transition until ctx is done.
	// The channel is buffered; transitions during a running cycle are
	// coalesced, not queued.
	Edges(ctx context.Context) <-chan struct{}
}

// AnalogSensor is a single-quantity measurement source. Battery gauges
// are analog sensors reporting percent.
type AnalogSensor interface {
	Read() (float64, error)
}

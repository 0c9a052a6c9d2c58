package policy

import "time"

// Debouncer suppresses digital input transitions shorter than a
// configured window. With a zero window every sample is taken as-is.
type Debouncer struct {
	window time.Duration

	primed    bool
	stable    bool
	candidate bool
	pending   bool
	since     time.Time
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window < 0 {
		window = 0
	}
	return &Debouncer{window: window}
}

// Sample feeds one raw pin reading taken at now and returns the
// debounced value. A changed reading must persist for the whole window
// before it is adopted; the first reading is always adopted.
func (d *Debouncer) Sample(raw bool, now time.Time) bool {
	if !d.primed {
		d.primed = true
		d.stable = raw
		return d.stable
	}
	if raw == d.stable {
		d.pending = false
		return d.stable
	}
	if d.window == 0 {
		d.stable = raw
		return d.stable
	}
	if !d.pending || raw != d.candidate {
		d.pending = true
		d.candidate = raw
		d.since = now
		return d.stable
	}
	if now.Sub(d.since) >= d.window {
		d.stable = raw
		d.pending = false
	}
	return d.stable
}

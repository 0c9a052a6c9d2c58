package policy

// RunningAverage is a fixed-window mean over the most recent samples,
// used to smooth noisy analog channels before threshold comparison.
// A NaN sample poisons the average until it rotates out of the window,
// which keeps the fail-open rule in effect for those cycles.
type RunningAverage struct {
	ring []float64
	n    int
	next int
}

func NewRunningAverage(size int) *RunningAverage {
	if size < 1 {
		size = 1
	}
	return &RunningAverage{ring: make([]float64, size)}
}

// Add pushes one raw sample and returns the current window mean.
func (r *RunningAverage) Add(v float64) float64 {
	r.ring[r.next] = v
	r.next = (r.next + 1) % len(r.ring)
	if r.n < len(r.ring) {
		r.n++
	}
	sum := 0.0
	for i := 0; i < r.n; i++ {
		sum += r.ring[i]
	}
	return sum / float64(r.n)
}

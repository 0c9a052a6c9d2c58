package ingest

import (
	"log"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Writer wraps the async Influx WriteAPI and tracks the last write
// error for /healthz and /readyz.
type Writer struct {
	api     api.WriteAPI
	onError func()

	mu      sync.RWMutex
	lastErr time.Time
}

// NewWriter starts the listener for Influx's async write errors.
// onError, if set, is invoked once per error (metrics hook).
func NewWriter(w api.WriteAPI, onError func()) *Writer {
	ww := &Writer{
		api:     w,
		onError: onError,
		lastErr: time.Now().Add(-24 * time.Hour), // "no recent error" at startup
	}
	go func() {
		for err := range w.Errors() {
			if err == nil {
				continue
			}
			ww.mu.Lock()
			ww.lastErr = time.Now()
			ww.mu.Unlock()
			if ww.onError != nil {
				ww.onError()
			}
			log.Printf("influx write error: %v", err)
		}
	}()
	return ww
}

func (w *Writer) WritePoint(p *write.Point) {
	w.api.WritePoint(p)
}

// LastErrorAge returns how long ago the last write error occurred.
func (w *Writer) LastErrorAge() time.Duration {
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xtap"
)

const ExporterName = "memory"

func init() {
	if err := xtap.RegisterExporter(ExporterName, func(cfg map[string]any) (xtap.Exporter, error) {
		return NewExporter(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("xtap/memory: failed to register exporter: %w", err))
	}
}

// Config controls memory exporter behavior.
type Config struct {
	// Capacity is the number of records retained; older records are evicted
	// first (default: 4096).
	Capacity int
	// AssignIDs instructs the exporter to assign IDs for records with empty ID (default: true).
	AssignIDs bool
	// Workers and BufferSize size the Dispatcher built by Use (defaults: 1, 1024).
	Workers    int
	BufferSize int
}

func ConfigFromMap(cfg map[string]any) Config {
	// non-positive values fall back to the default
	getInt := func(k string, d int) int {
		var n int
		switch v := cfg[k].(type) {
		case int:
			n = v
		case int32:
			n = int(v)
		case int64:
			n = int(v)
		case float64:
			n = int(v)
		}
		if n > 0 {
			return n
		}
		return d
	}

	getBool := func(k string, d bool) bool {
		if v, ok := cfg[k].(bool); ok {
			return v
		}
		return d
	}

	return Config{
		Capacity:   getInt("capacity", 4096),
		AssignIDs:  getBool("assign_ids", true),
		Workers:    getInt("workers", 1),
		BufferSize: getInt("buffer_size", 1024),
	}
}

// toMap converts Config to the generic map expected by the exporter factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"capacity":    c.Capacity,
		"assign_ids":  c.AssignIDs,
		"workers":     c.Workers,
		"buffer_size": c.BufferSize,
	}
}

// Exporter implements xtap.Exporter by retaining records in process (dev/testing).
type Exporter struct {
	cfg Config

	mu   sync.Mutex
	recs []xtap.Record
	cond *sync.Cond

	closed atomic.Bool

	exported atomic.Uint64
	evicted  atomic.Uint64
}

var _ xtap.Exporter = (*Exporter)(nil)

func NewExporter(cfg Config) *Exporter {
	if cfg.Capacity < 1 {
		cfg.Capacity = 4096
	}
	e := &Exporter{cfg: cfg}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Export appends recs, evicting the oldest records beyond Capacity.
func (e *Exporter) Export(ctx context.Context, recs ...xtap.Record) error {
	if e.closed.Load() {
		return errors.New("memory exporter is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	for _, r := range recs {
		if e.cfg.AssignIDs && r.ID == "" {
			r.ID = nextID()
		}
		e.recs = append(e.recs, r)
	}
	if over := len(e.recs) - e.cfg.Capacity; over > 0 {
		e.recs = slices.Delete(e.recs, 0, over)
		e.evicted.Add(uint64(over))
	}
	e.mu.Unlock()
	e.cond.Broadcast()

	e.exported.Add(uint64(len(recs)))
	return nil
}

// Records returns a copy of the retained records in export order.
func (e *Exporter) Records() []xtap.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.recs)
}

// WaitFor blocks until at least n records are retained or timeout elapses.
func (e *Exporter) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.cond.Broadcast()
	})
	defer timer.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.recs) < n {
		if !time.Now().Before(deadline) {
			return false
		}
		e.cond.Wait()
	}
	return true
}

// Close stops accepting records. Retained records stay readable.
func (e *Exporter) Close(_ context.Context) error {
	e.closed.Store(true)
	return nil
}

// Stats returns exporter telemetry.
type Stats struct {
	Exported uint64
	Evicted  uint64
	Retained int
}

func (e *Exporter) Stats() Stats {
	e.mu.Lock()
	retained := len(e.recs)
	e.mu.Unlock()
	return Stats{
		Exported: e.exported.Load(),
		Evicted:  e.evicted.Load(),
		Retained: retained,
	}
}

// Simple monotonic ID generator (not distributed; dev/testing only).
var idSeq atomic.Uint64

func nextID() string {
	return fmt.Sprintf("mem-%d", idSeq.Add(1))
}

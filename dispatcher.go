package xtap

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DispatcherStats returns telemetry about the dispatcher.
type DispatcherStats struct {
	Dropped    uint64 // Records dropped due to full buffer or closed dispatcher
	Processed  uint64 // Records handed to the exporter
	Failed     uint64 // Records the exporter rejected
	Queued     int    // Current queue depth
	Workers    int    // Number of export goroutines
	BufferSize int    // Channel capacity
}

// DispatcherConfig controls a Dispatcher.
type DispatcherConfig struct {
	// Workers is the number of export goroutines (default: 4).
	Workers int
	// BufferSize is the record channel capacity (default: 1000).
	BufferSize int
	// ExportTimeout bounds a single Export call (default: 5s).
	ExportTimeout time.Duration
	// Middlewares wrap every export, first outermost.
	Middlewares []Middleware
	Logger      *xlog.Logger
}

// Dispatcher ships records to an Exporter off the instrumented call path.
// Submit never blocks: records are dropped when the buffer is full.
type Dispatcher struct {
	export    ExportFunc
	recCh     chan Record
	workers   int
	timeout   time.Duration
	logger    *xlog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool
	dropped   atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
}

func NewDispatcher(ctx context.Context, exp Exporter, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1000
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = xlog.Default()
	}

	dctx, cancel := context.WithCancel(ctx)
	d := &Dispatcher{
		export:  Chain(exp.Export, cfg.Middlewares...),
		recCh:   make(chan Record, cfg.BufferSize),
		workers: cfg.Workers,
		timeout: cfg.ExportTimeout,
		logger:  cfg.Logger,
		ctx:     dctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit queues rec for export.
func (d *Dispatcher) Submit(rec Record) {
	if d.closed.Load() {
		d.dropped.Add(1)
		return
	}
	select {
	case d.recCh <- rec:
	default:
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			for {
				select {
				case rec := <-d.recCh:
					d.ship(rec)
				default:
					return
				}
			}
		case rec := <-d.recCh:
			d.ship(rec)
		}
	}
}

// ship recovers exporter panics so a bad backend cannot kill a worker.
func (d *Dispatcher) ship(rec Record) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.logger.Warn().Err(panicError(r)).Msg("xtap: exporter panic (recovered)")
		}
	}()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(d.ctx), d.timeout)
	defer cancel()
	if err := d.export(ctx, rec); err != nil {
		d.failed.Add(1)
		d.logger.With(xlog.Str("kind", string(rec.Kind))).Warn().Err(err).Msg("xtap: export failed")
		return
	}
	d.processed.Add(1)
}

// Close stops accepting records and waits up to timeout for queued records
// to be exported. It does not close the exporter.
func (d *Dispatcher) Close(timeout time.Duration) error {
	if d.closed.Swap(true) {
		return nil
	}
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrDispatcherTimeout
	}
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Dropped:    d.dropped.Load(),
		Processed:  d.processed.Load(),
		Failed:     d.failed.Load(),
		Queued:     len(d.recCh),
		Workers:    d.workers,
		BufferSize: cap(d.recCh),
	}
}

var _ Listener[*Timing] = (*ExportingListener)(nil)

// ExportingListener times every notification and submits the finished
// record to a Dispatcher. It retains nothing itself.
type ExportingListener struct {
	NopListener[*Timing]

	runID string
	clock xclock.Clock
	d     *Dispatcher
}

// NewExportingListener stamps every record with a fresh run id.
func NewExportingListener(d *Dispatcher, clock xclock.Clock) *ExportingListener {
	if clock == nil {
		clock = xclock.Default()
	}
	return &ExportingListener{runID: uuid.NewString(), clock: clock, d: d}
}

func (l *ExportingListener) RunID() string { return l.runID }

func (l *ExportingListener) Start(n *Notification) *Timing {
	return NewTiming(n, l.clock)
}

func (l *ExportingListener) Complete(t *Timing) {
	if err := t.End(); err != nil {
		panic(err)
	}
	l.submit(t)
}

func (l *ExportingListener) Error(t *Timing, err error) {
	if ferr := t.Fail(err); ferr != nil {
		panic(fmt.Errorf("%w (failure: %v)", ferr, err))
	}
	l.submit(t)
}

func (l *ExportingListener) submit(t *Timing) {
	rec := t.Record()
	rec.RunID = l.runID
	l.d.Submit(rec)
}

package xtap

import (
	"context"
	"errors"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Tap is a built listener stack. It is itself a Listener[any], ready to be
// handed to a host engine, and owns the export pipeline when one is configured.
type Tap struct {
	Listener[any]

	recorder   *Recorder
	exporting  *ExportingListener
	dispatcher *Dispatcher
	exporter   Exporter
}

// Recorder returns the recorder the tap was built with, if any.
func (t *Tap) Recorder() *Recorder { return t.recorder }

// RunID returns the id stamped on exported records, or "" without an exporter.
func (t *Tap) RunID() string {
	if t.exporting == nil {
		return ""
	}
	return t.exporting.RunID()
}

// Stats returns the dispatcher telemetry; zero without an exporter.
func (t *Tap) Stats() DispatcherStats {
	if t.dispatcher == nil {
		return DispatcherStats{}
	}
	return t.dispatcher.Stats()
}

// Close drains queued records within ctx's deadline and closes the exporter.
func (t *Tap) Close(ctx context.Context) error {
	if t.dispatcher == nil {
		return nil
	}
	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	return errors.Join(t.dispatcher.Close(timeout), t.exporter.Close(ctx))
}

// Builder assembles a Tap (Builder pattern).
type Builder struct {
	exporterName string
	exporterCfg  map[string]any
	exporterInst Exporter
	dispatch     DispatcherConfig

	recorder  *Recorder
	logging   bool
	listeners []Listener[any]
	logger    *xlog.Logger
	clock     xclock.Clock
}

func NewBuilder() *Builder {
	return &Builder{}
}

// WithExporter exports through the backend registered under name.
func (b *Builder) WithExporter(name string, cfg map[string]any) *Builder {
	b.exporterName = name
	b.exporterCfg = cfg
	return b
}

// WithExporterInstance accepts a ready Exporter.
func (b *Builder) WithExporterInstance(e Exporter) *Builder {
	b.exporterInst = e
	return b
}

// WithDispatcher sizes the export pipeline.
func (b *Builder) WithDispatcher(workers, bufferSize int, timeout time.Duration) *Builder {
	b.dispatch.Workers = workers
	b.dispatch.BufferSize = bufferSize
	b.dispatch.ExportTimeout = timeout
	return b
}

func (b *Builder) WithMiddleware(mw ...Middleware) *Builder {
	b.dispatch.Middlewares = append(b.dispatch.Middlewares, mw...)
	return b
}

// WithRecorder keeps every notification in r.
func (b *Builder) WithRecorder(r *Recorder) *Builder {
	b.recorder = r
	return b
}

// WithLogging logs every finished notification on the builder's logger.
func (b *Builder) WithLogging() *Builder {
	b.logging = true
	return b
}

func (b *Builder) WithListener(ls ...Listener[any]) *Builder {
	for _, l := range ls {
		if l != nil {
			b.listeners = append(b.listeners, l)
		}
	}
	return b
}

func (b *Builder) WithLogger(l *xlog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithClock(c xclock.Clock) *Builder {
	b.clock = c
	return b
}

// Build wires the configured listeners in order: recorder, logging, custom
// listeners, exporter. The exporter runs behind a Dispatcher started on ctx.
func (b *Builder) Build(ctx context.Context) (*Tap, error) {
	clk := b.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := b.logger
	if lg == nil {
		lg = xlog.Default()
	}

	t := &Tap{recorder: b.recorder}
	var ls []Listener[any]
	if b.recorder != nil {
		ls = append(ls, Erase[*Timing](b.recorder))
	}
	if b.logging {
		ls = append(ls, Erase[*Timing](LoggingListener{Logger: lg, Clock: clk}))
	}
	ls = append(ls, b.listeners...)

	var err error
	switch {
	case b.exporterInst != nil:
		t.exporter = b.exporterInst
	case b.exporterName != "":
		if t.exporter, err = NewExporter(b.exporterName, b.exporterCfg); err != nil {
			return nil, err
		}
	}
	if t.exporter != nil {
		cfg := b.dispatch
		cfg.Logger = lg
		t.dispatcher = NewDispatcher(ctx, t.exporter, cfg)
		t.exporting = NewExportingListener(t.dispatcher, clk)
		ls = append(ls, Erase[*Timing](t.exporting))
	}

	switch len(ls) {
	case 0:
		return nil, ErrNoListenerConfigured
	case 1:
		t.Listener = ls[0]
	default:
		t.Listener = Multi(ls...)
	}
	return t, nil
}

// New builds a Tap via Builder and returns a close func for convenience.
func New(ctx context.Context, init func(b *Builder)) (*Tap, func() error, error) {
	b := NewBuilder()
	if init != nil {
		init(b)
	}
	t, err := b.Build(ctx)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.Close(cctx)
	}
	return t, closeFn, nil
}

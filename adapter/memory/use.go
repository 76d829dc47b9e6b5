package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xtap"
)

// Use builds an in-memory exporter behind a Dispatcher and returns the
// listener feeding it together with the exporter for inspection.
//
// Example:
//
//	listener, exp, closeFn := memory.Use(ctx, memory.Config{Capacity: 10000},
//	    memory.WithLogger(logger),
//	)
//	defer closeFn()
func Use(ctx context.Context, cfg Config, opts ...Option) (*xtap.ExportingListener, *Exporter, func() error) {
	var s settings
	for _, o := range opts {
		if o != nil {
			o(&s)
		}
	}

	cfg = ConfigFromMap(cfg.toMap())
	exp, err := xtap.NewExporter(ExporterName, cfg.toMap())
	if err != nil {
		panic(fmt.Errorf("memory.Use: %w", err))
	}
	mexp := exp.(*Exporter)

	d := xtap.NewDispatcher(ctx, mexp, xtap.DispatcherConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     s.logger,
	})
	closeFn := func() error {
		if err := d.Close(5 * time.Second); err != nil {
			return err
		}
		return mexp.Close(context.Background())
	}
	return xtap.NewExportingListener(d, s.clock), mexp, closeFn
}

// Option configures what Use builds around the exporter.
type Option func(*settings)

type settings struct {
	logger *xlog.Logger
	clock  xclock.Clock
}

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

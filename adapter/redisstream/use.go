package redisstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xtap"
)

// Option configures what Use builds around the exporter.
type Option func(*settings)

type settings struct {
	logger *xlog.Logger
	clock  xclock.Clock
}

// WithLogger injects a custom xlog logger for the dispatcher.
func WithLogger(l *xlog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock injects a custom xclock clock for record timings.
func WithClock(c xclock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// Use builds a Redis Streams exporter behind a Dispatcher and returns the
// listener feeding it. The returned close func drains the dispatcher and
// then closes the exporter.
func Use(ctx context.Context, cfg Config, opts ...Option) (*xtap.ExportingListener, func(context.Context) error, error) {
	var s settings
	for _, o := range opts {
		if o != nil {
			o(&s)
		}
	}

	cfg = ConfigFromMap(cfg.toMap())
	exp, err := xtap.NewExporter(ExporterName, cfg.toMap())
	if err != nil {
		return nil, nil, fmt.Errorf("redisstream.Use: %w", err)
	}

	d := xtap.NewDispatcher(ctx, exp, xtap.DispatcherConfig{
		Workers:       cfg.Workers,
		BufferSize:    cfg.BufferSize,
		ExportTimeout: cfg.ExportTimeout,
		Logger:        s.logger,
	})
	closeFn := func(ctx context.Context) error {
		timeout := cfg.ExportTimeout * 2
		if dl, ok := ctx.Deadline(); ok {
			timeout = time.Until(dl)
		}
		return errors.Join(d.Close(timeout), exp.Close(ctx))
	}
	return xtap.NewExportingListener(d, s.clock), closeFn, nil
}

package xtap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xtap"
)

// flaky fails the first n calls.
func flaky(n int, err error) (xtap.ExportFunc, *int) {
	calls := 0
	return func(context.Context, ...xtap.Record) error {
		calls++
		if calls <= n {
			return err
		}
		return nil
	}, &calls
}

func TestRetryMiddleware(t *testing.T) {
	boom := errors.New("unavailable")

	fn, calls := flaky(2, boom)
	retry := xtap.RetryMiddleware(xtap.RetryConfig{
		MaxAttempts: 3,
		Backoff:     func(int) time.Duration { return time.Millisecond },
		Jitter:      time.Millisecond,
	})
	require.NoError(t, retry(fn)(context.Background()))
	assert.Equal(t, 3, *calls)

	fn, calls = flaky(5, boom)
	assert.Same(t, boom, retry(fn)(context.Background()))
	assert.Equal(t, 3, *calls)

	fn, calls = flaky(5, boom)
	never := xtap.RetryMiddleware(xtap.RetryConfig{MaxAttempts: 3, RetryIf: func(error) bool { return false }})
	assert.Same(t, boom, never(fn)(context.Background()))
	assert.Equal(t, 1, *calls)
}

func TestRetryMiddleware_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("unavailable")
	fn, calls := flaky(5, boom)
	retry := xtap.RetryMiddleware(xtap.RetryConfig{
		MaxAttempts: 5,
		Backoff: func(int) time.Duration {
			cancel()
			return time.Hour
		},
	})
	assert.Same(t, boom, retry(fn)(ctx))
	assert.Equal(t, 1, *calls)
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := func(ctx context.Context, _ ...xtap.Record) error {
		<-ctx.Done()
		return ctx.Err()
	}
	err := xtap.TimeoutMiddleware(10 * time.Millisecond)(slow)(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	fn, _ := flaky(0, nil)
	assert.NoError(t, xtap.TimeoutMiddleware(0)(fn)(context.Background()))
}

func TestRecoveryMiddleware(t *testing.T) {
	err := xtap.RecoveryMiddleware()(func(context.Context, ...xtap.Record) error {
		panic("exporter bug")
	})(context.Background())
	var pe *xtap.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "exporter bug", pe.Value)
}

func TestChain_FirstIsOutermost(t *testing.T) {
	tr := &trace{}
	mw := func(name string) xtap.Middleware {
		return func(next xtap.ExportFunc) xtap.ExportFunc {
			return func(ctx context.Context, recs ...xtap.Record) error {
				tr.add("%s>", name)
				err := next(ctx, recs...)
				tr.add("<%s", name)
				return err
			}
		}
	}
	fn := xtap.Chain(func(context.Context, ...xtap.Record) error {
		tr.add("export")
		return nil
	}, mw("a"), nil, mw("b"))

	require.NoError(t, fn(context.Background()))
	assert.Equal(t, []string{"a>", "b>", "export", "<b", "<a"}, tr.get())
}

func TestDispatcher_RetriesThroughMiddleware(t *testing.T) {
	boom := errors.New("unavailable")
	fn, calls := flaky(1, boom)
	exp := &funcExporter{fn: fn}
	d := xtap.NewDispatcher(context.Background(), exp, xtap.DispatcherConfig{
		Workers:     1,
		Middlewares: []xtap.Middleware{xtap.RetryMiddleware(xtap.RetryConfig{MaxAttempts: 2})},
	})
	d.Submit(xtap.Record{})
	require.NoError(t, d.Close(2*time.Second))
	assert.Equal(t, 2, *calls)
	assert.Equal(t, uint64(1), d.Stats().Processed)
}

type funcExporter struct{ fn xtap.ExportFunc }

func (f *funcExporter) Export(ctx context.Context, recs ...xtap.Record) error { return f.fn(ctx, recs...) }
func (f *funcExporter) Close(context.Context) error { return nil }

package xtap_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xtap"
)

// fakeExporter collects records; gate, when set, blocks every Export until closed.
type fakeExporter struct {
	mu     sync.Mutex
	recs   []xtap.Record
	gate   chan struct{}
	err    error
	panicV any
}

func (f *fakeExporter) Export(_ context.Context, recs ...xtap.Record) error {
	if f.gate != nil {
		<-f.gate
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.recs = append(f.recs, recs...)
	f.mu.Unlock()
	return nil
}

func (f *fakeExporter) Close(context.Context) error { return nil }

func (f *fakeExporter) records() []xtap.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]xtap.Record(nil), f.recs...)
}

func TestDispatcher_ExportsEverything(t *testing.T) {
	exp := &fakeExporter{}
	d := xtap.NewDispatcher(context.Background(), exp, xtap.DispatcherConfig{Workers: 2, BufferSize: 64})

	for range 20 {
		d.Submit(xtap.Record{Kind: xtap.OnNext})
	}
	require.NoError(t, d.Close(2*time.Second))

	assert.Len(t, exp.records(), 20)
	st := d.Stats()
	assert.Equal(t, uint64(20), st.Processed)
	assert.Zero(t, st.Dropped)
	assert.Equal(t, 2, st.Workers)
	assert.Equal(t, 64, st.BufferSize)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	exp := &fakeExporter{gate: make(chan struct{})}
	d := xtap.NewDispatcher(context.Background(), exp, xtap.DispatcherConfig{Workers: 1, BufferSize: 1})

	const n = 10
	for range n {
		d.Submit(xtap.Record{Kind: xtap.OnNext})
	}
	// one record in the worker and one in the buffer at most
	assert.GreaterOrEqual(t, d.Stats().Dropped, uint64(n-2))

	close(exp.gate)
	require.NoError(t, d.Close(2*time.Second))
	st := d.Stats()
	assert.Equal(t, uint64(n), st.Dropped+st.Processed)
}

func TestDispatcher_DropsAfterClose(t *testing.T) {
	d := xtap.NewDispatcher(context.Background(), &fakeExporter{}, xtap.DispatcherConfig{})
	require.NoError(t, d.Close(time.Second))
	require.NoError(t, d.Close(time.Second))

	d.Submit(xtap.Record{})
	assert.Equal(t, uint64(1), d.Stats().Dropped)
}

func TestDispatcher_ExporterFailuresAreCounted(t *testing.T) {
	exp := &fakeExporter{err: errors.New("backend down")}
	d := xtap.NewDispatcher(context.Background(), exp, xtap.DispatcherConfig{Workers: 1})
	d.Submit(xtap.Record{Kind: xtap.OnCompleted})
	d.Submit(xtap.Record{Kind: xtap.OnCompleted})
	require.NoError(t, d.Close(2*time.Second))
	assert.Equal(t, uint64(2), d.Stats().Failed)
}

func TestDispatcher_ExporterPanicIsContained(t *testing.T) {
	exp := &fakeExporter{panicV: "exporter bug"}
	d := xtap.NewDispatcher(context.Background(), exp, xtap.DispatcherConfig{Workers: 1})
	d.Submit(xtap.Record{})
	d.Submit(xtap.Record{})
	require.NoError(t, d.Close(2*time.Second))
	assert.Equal(t, uint64(2), d.Stats().Failed)
}

func TestDispatcher_CloseTimeout(t *testing.T) {
	exp := &fakeExporter{gate: make(chan struct{})}
	d := xtap.NewDispatcher(context.Background(), exp, xtap.DispatcherConfig{Workers: 1})
	d.Submit(xtap.Record{})

	assert.ErrorIs(t, d.Close(20*time.Millisecond), xtap.ErrDispatcherTimeout)
	close(exp.gate)
}

func TestExportingListener_SubmitsFinishedRecords(t *testing.T) {
	exp := &fakeExporter{}
	d := xtap.NewDispatcher(context.Background(), exp, xtap.DispatcherConfig{Workers: 1})
	l := xtap.NewExportingListener(d, nil)
	require.NotEmpty(t, l.RunID())

	s := &sink{tr: &trace{}}
	boom := errors.New("boom")
	s.failOn, s.err = "next", boom
	x := xtap.Wrap[int, *xtap.Timing](l, s)
	require.NoError(t, x.OnStart())
	assert.Same(t, boom, x.OnNext(9))
	x.Teardown()
	require.NoError(t, d.Close(2*time.Second))

	recs := exp.records()
	require.Len(t, recs, 3)
	assert.Equal(t, []xtap.Kind{xtap.OnStart, xtap.OnNext, xtap.Unsubscribe},
		[]xtap.Kind{recs[0].Kind, recs[1].Kind, recs[2].Kind})
	for _, r := range recs {
		assert.Equal(t, l.RunID(), r.RunID)
	}
	assert.Equal(t, "9", recs[1].Value)
	assert.Equal(t, "boom", recs[1].Err)
}

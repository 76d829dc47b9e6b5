package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xtap"
	"github.com/trickstertwo/xtap/flow"
)

func TestConfigFromMap(t *testing.T) {
	c := ConfigFromMap(map[string]any{})
	assert.Equal(t, Config{Capacity: 4096, AssignIDs: true, Workers: 1, BufferSize: 1024}, c)

	c = ConfigFromMap(map[string]any{"capacity": 10.0, "assign_ids": false, "workers": int64(3)})
	assert.Equal(t, 10, c.Capacity)
	assert.False(t, c.AssignIDs)
	assert.Equal(t, 3, c.Workers)
}

func TestConfigFromMap_ZeroFieldsUseDefaults(t *testing.T) {
	c := ConfigFromMap(Config{}.toMap())
	assert.Equal(t, Config{Capacity: 4096, Workers: 1, BufferSize: 1024}, c)

	c = ConfigFromMap(Config{Capacity: 1000, AssignIDs: true}.toMap())
	assert.Equal(t, Config{Capacity: 1000, AssignIDs: true, Workers: 1, BufferSize: 1024}, c)

	c = ConfigFromMap(map[string]any{"capacity": -3, "buffer_size": int64(0)})
	assert.Equal(t, 4096, c.Capacity)
	assert.Equal(t, 1024, c.BufferSize)
}

func TestExporter_EvictsOldest(t *testing.T) {
	e := NewExporter(Config{Capacity: 2, AssignIDs: true})
	ctx := context.Background()
	require.NoError(t, e.Export(ctx, xtap.Record{Value: "1"}, xtap.Record{Value: "2"}))
	require.NoError(t, e.Export(ctx, xtap.Record{Value: "3", ID: "keep"}))

	recs := e.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "2", recs[0].Value)
	assert.NotEmpty(t, recs[0].ID)
	assert.Equal(t, "keep", recs[1].ID)
	assert.Equal(t, Stats{Exported: 3, Evicted: 1, Retained: 2}, e.Stats())
}

func TestExporter_Closed(t *testing.T) {
	e := NewExporter(Config{})
	require.NoError(t, e.Close(context.Background()))
	assert.Error(t, e.Export(context.Background(), xtap.Record{}))
}

func TestExporter_CancelledContext(t *testing.T) {
	e := NewExporter(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Export(ctx, xtap.Record{}), context.Canceled)
}

func TestExporter_WaitFor(t *testing.T) {
	e := NewExporter(Config{})
	assert.False(t, e.WaitFor(1, 10*time.Millisecond))

	go func() { _ = e.Export(context.Background(), xtap.Record{}) }()
	assert.True(t, e.WaitFor(1, 2*time.Second))
}

func TestExporter_WaitForReturnsAtDeadline(t *testing.T) {
	e := NewExporter(Config{})
	for range 50 {
		start := time.Now()
		assert.False(t, e.WaitFor(1, time.Millisecond))
		assert.Less(t, time.Since(start), time.Second)
	}
}

func TestRegistry_BuildsMemoryExporter(t *testing.T) {
	exp, err := xtap.NewExporter(ExporterName, map[string]any{"capacity": 5})
	require.NoError(t, err)
	require.IsType(t, &Exporter{}, exp)
	assert.Equal(t, 5, exp.(*Exporter).cfg.Capacity)
}

func TestUse_ExportsPipelineRecords(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l, exp, closeFn := Use(ctx, Config{Capacity: 1000, AssignIDs: true})
	rt := flow.New(flow.WithListener(xtap.Erase[*xtap.Timing](l)))

	boom := errors.New("boom")
	c := flow.NewCollector[string](0)
	flow.Map(flow.Fail(rt, boom, 1, 2), func(v int) string { return string(rune('a' + v)) }).Subscribe(c)
	_, err := c.Wait(ctx)
	assert.Same(t, boom, err)

	require.NoError(t, closeFn())

	recs := exp.Records()
	// just -> map: on_start, request, 2x on_next, on_error, unsubscribe
	// map -> collector: subscribe, request, 2x on_next, on_error, unsubscribe
	require.Len(t, recs, 12)
	kinds := map[xtap.Kind]int{}
	for _, r := range recs {
		assert.Equal(t, l.RunID(), r.RunID)
		assert.NotEmpty(t, r.ID)
		kinds[r.Kind]++
		if r.Kind == xtap.OnError {
			assert.Equal(t, "boom", r.Cause)
		}
	}
	assert.Equal(t, map[xtap.Kind]int{
		xtap.Subscribe: 1, xtap.OnStart: 1, xtap.Request: 2,
		xtap.OnNext: 4, xtap.OnError: 2, xtap.Unsubscribe: 2,
	}, kinds)
}

package xtap_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trickstertwo/xtap"
)

func logOf(ns ...*xtap.Notification) xtap.ConsumerLog {
	ts := make([]*xtap.Timing, len(ns))
	for i, n := range ns {
		ts[i] = xtap.NewTiming(n, nil)
	}
	return xtap.ConsumerLog{Consumer: "c", Timings: ts}
}

func TestValidate(t *testing.T) {
	var st xtap.Stages
	var (
		sub   = xtap.NewSubscribe("c", st, "src")
		start = xtap.NewOnStart("c", st)
		req   = func(n int64) *xtap.Notification { return xtap.NewRequest("c", st, n) }
		next  = xtap.NewOnNext("c", st, 1)
		done  = xtap.NewOnCompleted("c", st)
		fail  = xtap.NewOnError("c", st, assert.AnError)
		unsub = xtap.NewUnsubscribe("c", st)
	)

	tests := []struct {
		name string
		log  xtap.ConsumerLog
		ok   bool
	}{
		{"complete run", logOf(sub, req(2), next, next, done, unsub), true},
		{"on_start first", logOf(start, req(1), next, unsub), true},
		{"unbounded demand", logOf(sub, req(math.MaxInt64), req(math.MaxInt64), next, fail, unsub), true},
		{"terminal without demand", logOf(sub, done, unsub), true},
		{"empty", logOf(), false},
		{"starts with request", logOf(req(1), next, unsub), false},
		{"on_next without demand", logOf(sub, next, unsub), false},
		{"on_next beyond demand", logOf(sub, req(1), next, next, unsub), false},
		{"on_next after terminal", logOf(sub, req(2), done, next, unsub), false},
		{"two terminals", logOf(sub, done, fail, unsub), false},
		{"unsubscribe not last", logOf(sub, unsub, req(1)), false},
		{"missing unsubscribe", logOf(sub, req(1), next, done), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := xtap.Validate(tt.log)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, xtap.ErrInvalidSequence)
			}
		})
	}
}

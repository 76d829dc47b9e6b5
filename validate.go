package xtap

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidSequence = errors.New("xtap: invalid notification sequence")

// Validate checks one consumer's log against the notification protocol:
//   - the first notification is Subscribe or OnStart
//   - every OnNext is covered by credit granted by earlier Requests
//   - at most one OnCompleted or OnError, and no OnNext after it
//   - the last notification is the only Unsubscribe
func Validate(log ConsumerLog) error {
	ts := log.Timings
	if len(ts) == 0 {
		return fmt.Errorf("%w: empty log", ErrInvalidSequence)
	}
	if k := ts[0].Notification().Kind(); k != Subscribe && k != OnStart {
		return fmt.Errorf("%w: first notification is %s", ErrInvalidSequence, k)
	}
	var (
		credit   int64
		terminal Kind
	)
	for i, t := range ts {
		n := t.Notification()
		switch n.Kind() {
		case Request:
			if credit > math.MaxInt64-n.N() {
				credit = math.MaxInt64
			} else {
				credit += n.N()
			}
		case OnNext:
			if terminal != "" {
				return fmt.Errorf("%w: on_next at %d after %s", ErrInvalidSequence, i, terminal)
			}
			if credit <= 0 {
				return fmt.Errorf("%w: on_next at %d without demand", ErrInvalidSequence, i)
			}
			credit--
		case OnCompleted, OnError:
			if terminal != "" {
				return fmt.Errorf("%w: %s at %d after %s", ErrInvalidSequence, n.Kind(), i, terminal)
			}
			terminal = n.Kind()
		case Unsubscribe:
			if i != len(ts)-1 {
				return fmt.Errorf("%w: unsubscribe at %d of %d", ErrInvalidSequence, i, len(ts))
			}
			return nil
		}
	}
	return fmt.Errorf("%w: missing unsubscribe", ErrInvalidSequence)
}

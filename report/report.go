// Package report renders recorded notification logs as text tables.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/trickstertwo/xtap"
)

// Timeline renders every timing of snap, one row per notification, grouped
// by consumer. Offsets are relative to the earliest start in snap.
func Timeline(snap []xtap.ConsumerLog) string {
	if len(snap) == 0 {
		return ""
	}
	origin := earliest(snap)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Consumer", "#", "Kind", "Detail", "Offset", "Duration", "G", "Err"})
	for i, log := range snap {
		if i > 0 {
			tw.AppendSeparator()
		}
		for j, tm := range log.Timings {
			r := tm.Record()
			consumer := ""
			if j == 0 {
				consumer = r.Consumer
			}
			tw.AppendRow(table.Row{
				consumer,
				j + 1,
				string(r.Kind),
				detail(r),
				tm.Start().Sub(origin),
				duration(tm),
				r.Goroutine,
				r.Err,
			})
		}
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	return tw.Render()
}

// Summary renders one row per consumer with its notification counts and
// whether its log is a valid sequence.
func Summary(snap []xtap.ConsumerLog) string {
	if len(snap) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Consumer", "Events", "Items", "Requested", "Terminal", "Valid"})

	var events, items int
	for _, log := range snap {
		if len(log.Timings) == 0 {
			continue
		}
		var (
			nexts     int
			requested int64
			terminal  string
		)
		for _, tm := range log.Timings {
			n := tm.Notification()
			switch n.Kind() {
			case xtap.OnNext:
				nexts++
			case xtap.Request:
				requested = saturate(requested, n.N())
			case xtap.OnCompleted, xtap.OnError:
				terminal = string(n.Kind())
			}
		}
		valid := "yes"
		if err := xtap.Validate(log); err != nil {
			valid = err.Error()
		}
		events += len(log.Timings)
		items += nexts
		tw.AppendRow(table.Row{
			log.Timings[0].Record().Consumer,
			len(log.Timings),
			nexts,
			demand(requested),
			terminal,
			valid,
		})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d consumers", len(snap)), events, items, "", "", ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

// WriteTable writes the summary followed by the full timeline to w.
func WriteTable(w io.Writer, snap []xtap.ConsumerLog) error {
	if len(snap) == 0 {
		_, err := io.WriteString(w, "no notifications recorded\n")
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", Summary(snap), Timeline(snap))
	return err
}

func detail(r xtap.Record) string {
	switch r.Kind {
	case xtap.OnNext:
		return r.Value
	case xtap.OnError:
		return r.Cause
	case xtap.Request:
		return demand(r.N)
	case xtap.Subscribe:
		return r.Source
	}
	return ""
}

func duration(tm *xtap.Timing) string {
	if !tm.Done() {
		return "pending"
	}
	return tm.Duration().String()
}

func demand(n int64) string {
	if n == math.MaxInt64 {
		return "unbounded"
	}
	return strconv.FormatInt(n, 10)
}

func saturate(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func earliest(snap []xtap.ConsumerLog) time.Time {
	var origin time.Time
	for _, log := range snap {
		if len(log.Timings) == 0 {
			continue
		}
		if s := log.Timings[0].Start(); origin.IsZero() || s.Before(origin) {
			origin = s
		}
	}
	return origin
}

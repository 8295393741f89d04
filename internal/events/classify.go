// Package events filters, classifies and stores the flat event list that
// calendar views lay out.
package events

import (
	"sort"
	"time"

	"calgrid/internal/date"
	"calgrid/internal/model"
)

// InInterval returns the events whose [Start, End] intersects the days
// covered by cells.
func InInterval(cells []date.Cell, evs []model.Event) []model.Event {
	if len(cells) == 0 {
		return nil
	}
	from := date.StartOfDay(cells[0].Date)
	to := date.EndOfDay(cells[len(cells)-1].Date)
	return Between(from, to, evs)
}

// Between returns the events intersecting [from, to].
func Between(from, to time.Time, evs []model.Event) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range evs {
		if ev.End.Before(from) || ev.Start.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// IsLong reports whether ev is drawn as a bar: flagged long or spanning at
// least two calendar days.
func IsLong(ev model.Event) bool {
	return ev.Kind == model.KindLong || !date.IsSameDay(ev.Start, ev.End)
}

// Short returns the single-slot events.
func Short(evs []model.Event) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range evs {
		if !IsLong(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Long returns the multi-day and all-day events.
func Long(evs []model.Event) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range evs {
		if IsLong(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Split partitions evs into short and long in one pass.
func Split(evs []model.Event) (short, long []model.Event) {
	short = make([]model.Event, 0)
	long = make([]model.Event, 0)
	for _, ev := range evs {
		if IsLong(ev) {
			long = append(long, ev)
		} else {
			short = append(short, ev)
		}
	}
	return short, long
}

// Sort returns a copy of evs ordered by start, then longer first, then id,
// so that lane packing is deterministic.
func Sort(evs []model.Event) []model.Event {
	out := append([]model.Event(nil), evs...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if da, db := a.Duration(), b.Duration(); da != db {
			return da > db
		}
		return a.ID < b.ID
	})
	return out
}

// Covers reports whether ev occupies any part of day.
func Covers(ev model.Event, day time.Time) bool {
	return !ev.End.Before(date.StartOfDay(day)) && !ev.Start.After(date.EndOfDay(day))
}

// ForWeek returns, for each cell of week, the sorted events covering it.
func ForWeek(week []date.Cell, evs []model.Event) [][]model.Event {
	sorted := Sort(evs)
	out := make([][]model.Event, len(week))
	for i, cell := range week {
		out[i] = make([]model.Event, 0)
		for _, ev := range sorted {
			if Covers(ev, cell.Date) {
				out[i] = append(out[i], ev)
			}
		}
	}
	return out
}

// StartingOn returns the sorted events that start on day.
func StartingOn(day time.Time, evs []model.Event) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range Sort(evs) {
		if date.IsSameDay(ev.Start, day) {
			out = append(out, ev)
		}
	}
	return out
}

// OnDay lists every event touching day, long ones first. It backs the day
// info view opened from a "+N more" indicator.
func OnDay(day time.Time, evs []model.Event) []model.Event {
	short, long := Split(evs)
	out := make([]model.Event, 0)
	for _, ev := range Sort(long) {
		if Covers(ev, day) {
			out = append(out, ev)
		}
	}
	return append(out, StartingOn(day, short)...)
}

// DraftForDay pre-fills a long event on day starting at the next quarter
// hour after now's clock time, as offered when a day cell is clicked.
func DraftForDay(day, now time.Time) model.Draft {
	at := time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), 0, day.Location())
	start := date.NextQuarter(at)
	return model.Draft{
		Start: start,
		End:   start,
		Color: model.DefaultColor,
		Kind:  model.KindLong,
	}
}

// Package layout positions events inside week rows: long events get a
// stable vertical lane per week, days cap how many rows they show and
// summarize the rest as "+N more".
package layout

import (
	"time"

	"calgrid/internal/date"
	"calgrid/internal/events"
	"calgrid/internal/model"
)

// Lanes is the lane table of one week.
type Lanes struct {
	// ByID maps an event id to its lane.
	ByID map[string]int `json:"by_id"`
	// Days lists, per day, the event id held by each lane. Free lanes below
	// an occupied one are "", trailing free lanes are trimmed.
	Days [][]string `json:"days"`
}

// inZone returns evs with their times in the grid's location. An empty grid
// leaves evs unchanged.
func inZone(cells []date.Cell, evs []model.Event) []model.Event {
	if len(cells) == 0 {
		return evs
	}
	loc := cells[0].Date.Location()
	out := make([]model.Event, len(evs))
	for i, ev := range evs {
		out[i] = eventIn(ev, loc)
	}
	return out
}

func eventIn(ev model.Event, loc *time.Location) model.Event {
	ev.Start = ev.Start.In(loc)
	ev.End = ev.End.In(loc)
	return ev
}

// span is the inclusive range of week columns an event covers.
type span struct {
	first, last int
}

func weekSpan(week []date.Cell, ev model.Event) (span, bool) {
	s := span{first: -1, last: -1}
	for i, cell := range week {
		if !events.Covers(ev, cell.Date) {
			continue
		}
		if s.first < 0 {
			s.first = i
		}
		s.last = i
	}
	return s, s.first >= 0
}

// AssignLanes packs long events into lanes for week. Events are taken by
// start, longer first, then id, and each gets the lowest lane that is free
// on every day it covers. Events outside the week or without an id are
// ignored. The result depends only on the inputs.
func AssignLanes(week []date.Cell, long []model.Event) Lanes {
	lanes := Lanes{
		ByID: make(map[string]int),
		Days: make([][]string, len(week)),
	}

	for _, ev := range events.Sort(long) {
		// "" marks a free lane.
		if ev.ID == "" {
			continue
		}
		if _, dup := lanes.ByID[ev.ID]; dup {
			continue
		}
		s, ok := weekSpan(week, ev)
		if !ok {
			continue
		}

		lane := 0
		for !laneFree(lanes.Days, s, lane) {
			lane++
		}
		for d := s.first; d <= s.last; d++ {
			for len(lanes.Days[d]) <= lane {
				lanes.Days[d] = append(lanes.Days[d], "")
			}
			lanes.Days[d][lane] = ev.ID
		}
		lanes.ByID[ev.ID] = lane
	}

	for d := range lanes.Days {
		if lanes.Days[d] == nil {
			lanes.Days[d] = []string{}
		}
	}
	return lanes
}

func laneFree(days [][]string, s span, lane int) bool {
	for d := s.first; d <= s.last; d++ {
		if lane < len(days[d]) && days[d][lane] != "" {
			return false
		}
	}
	return true
}

// Segment describes how a long event is drawn on one day of a week.
type Segment struct {
	// Visible is set on the first day of the event inside the week, where
	// the bar is drawn; later days only reserve the lane.
	Visible bool `json:"visible"`
	// Span counts the consecutive days from this day to the end of the
	// event or of the week, whichever comes first.
	Span int `json:"span"`
	// Width is Span in percent of one day cell.
	Width float64 `json:"width"`
	// FromPrev is set when this day is not the event's first day.
	FromPrev bool `json:"from_prev"`
	// ToNext is set when this day is not the event's last day.
	ToNext bool `json:"to_next"`
	// Truncated is set when the bar drawn from this day stops at the week
	// boundary before the event ends.
	Truncated bool `json:"truncated"`
}

// Style computes the Segment of ev on column day of week.
func Style(week []date.Cell, day int, ev model.Event) Segment {
	s, ok := weekSpan(week, ev)
	if !ok || day < s.first || day > s.last {
		return Segment{}
	}
	cell := week[day].Date
	ev = eventIn(ev, cell.Location())
	n := s.last - day + 1

	return Segment{
		Visible:   day == s.first,
		Span:      n,
		Width:     float64(n * 100),
		FromPrev:  date.DaysBetween(ev.Start, cell) > 0,
		ToNext:    date.DaysBetween(cell, ev.End) > 0,
		Truncated: date.DaysBetween(week[s.last].Date, ev.End) > 0,
	}
}

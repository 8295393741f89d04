package ics

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
	untitled                      = "(untitled)"
)

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone events are converted to; time.Local when nil.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences, inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means the default.
	MaxOccurrencesPerEvent int
}

// DefaultWindow is the expansion range used for configured sources: one
// year back and two years ahead of now.
func DefaultWindow(now time.Time) (time.Time, time.Time) {
	return now.AddDate(-1, 0, 0), now.AddDate(2, 0, 0)
}

// ExpandResult holds the calendar events built from the occurrences.
type ExpandResult struct {
	Events []model.Event
	// TruncatedEvents records UIDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// Expand turns parsed VEVENTs into events inside the configured range.
// It handles single events, RRULE with EXDATE, RECURRENCE-ID overrides and
// all-day semantics: an all-day VEVENT becomes a long event whose exclusive
// DTEND is turned into the inclusive last day.
func Expand(parsed []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uids := make([]string, 0)
	for _, ev := range parsed {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	result.Events = make([]model.Event, 0)
	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			evs, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			result.Events = append(result.Events, evs...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	slices.SortStableFunc(result.Events, func(a, b model.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, cfg ExpandConfig) []model.Event {
	if !timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	out, ok := makeEvent(ev, ev.Start, ev.End, "", cfg.DisplayLocation)
	if !ok {
		return nil
	}
	return []model.Event{out}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	out := make([]model.Event, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so occurrences that start
	// before the range but reach into it are kept.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occEnd = occStart.AddDate(0, 0, ev.daySpan())
		} else {
			occEnd = occStart.Add(dur)
		}

		instance := instanceKey(occStart)
		baseEv, start, end := ev, occStart, occEnd
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			baseEv, start, end = o, o.Start, o.End
		}
		if e, ok := makeEvent(baseEv, start, end, instance, cfg.DisplayLocation); ok {
			out = append(out, e)
		}
	}
	return out, hitCap
}

// daySpan is the number of days an all-day event covers, at least one.
func (ev ParsedEvent) daySpan() int {
	n := int(ev.End.Sub(ev.Start).Hours()+12) / 24
	if n < 1 {
		return 1
	}
	return n
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals the
// generated instance start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func instanceKey(start time.Time) string {
	return start.UTC().Format("20060102T150405Z")
}

// makeEvent converts one occurrence into a model.Event in displayLoc. The
// id is the source id and UID, plus the instance key for recurrences.
func makeEvent(ev ParsedEvent, start, end time.Time, instance string, displayLoc *time.Location) (model.Event, bool) {
	d := model.Draft{
		ID:          eventID(ev.SourceID, ev.UID, instance),
		SourceID:    ev.SourceID,
		Title:       ev.Summary,
		Description: ev.Description,
		Color:       ev.Color,
		Kind:        model.KindSingle,
	}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = untitled
	}

	if ev.AllDay {
		// Dates are kept as calendar days in the display zone.
		first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, displayLoc)
		last := time.Date(end.Year(), end.Month(), end.Day()-1, 0, 0, 0, 0, displayLoc)
		if last.Before(first) {
			last = first
		}
		d.Start, d.End, d.Kind = first, last, model.KindLong
	} else {
		d.Start, d.End = start.In(displayLoc), end.In(displayLoc)
	}

	out, err := model.NewEvent(d)
	if err != nil {
		appLog.Warn("expand: occurrence dropped", "uid", ev.UID, "reason", err.Error())
		return model.Event{}, false
	}
	return out, true
}

func eventID(sourceID, uid, instance string) string {
	id := uid
	if sourceID != "" {
		id = sourceID + "/" + uid
	}
	if instance != "" {
		id += "@" + instance
	}
	return id
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}

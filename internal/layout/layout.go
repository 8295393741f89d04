package layout

import (
	"calgrid/internal/date"
	"calgrid/internal/events"
	"calgrid/internal/model"
)

// RowHeight is the pixel height of one event row inside a day cell.
const RowHeight = 24

// Capacity is how many event rows a day shows in a grid of rows weeks.
func Capacity(rows int) int {
	if rows == 6 {
		return 3
	}
	return 4
}

// Placed is a long event positioned in a day.
type Placed struct {
	Event   model.Event `json:"event"`
	Lane    int         `json:"lane"`
	Top     int         `json:"top"`
	Segment Segment     `json:"segment"`
}

// PlacedShort is a short event positioned below the lanes of a day.
type PlacedShort struct {
	Event model.Event `json:"event"`
	Top   int         `json:"top"`
}

// DayPlan is everything a renderer needs for one day cell.
type DayPlan struct {
	Cell date.Cell `json:"cell"`
	// Lanes is the day's row of the week lane table (dayEventsPositionY).
	Lanes []string      `json:"lanes"`
	Long  []Placed      `json:"long"`
	Short []PlacedShort `json:"short"`
	// More is the number of events hidden behind the "+N more" indicator,
	// drawn at MoreTop when ShowMore is set.
	ShowMore bool `json:"show_more"`
	More     int  `json:"more"`
	MoreTop  int  `json:"more_top"`
	// Total counts every event touching the day.
	Total int `json:"total"`
}

// WeekPlan is one row of a month grid.
type WeekPlan struct {
	Days  []DayPlan `json:"days"`
	Lanes Lanes     `json:"lanes"`
}

// MonthPlan lays out a whole month grid.
type MonthPlan struct {
	Rows     int        `json:"rows"`
	Capacity int        `json:"capacity"`
	Weeks    []WeekPlan `json:"weeks"`
}

// LayoutMonth filters evs to the grid, splits them into short and long
// and lays out every week with the grid's day capacity.
func LayoutMonth(cells []date.Cell, evs []model.Event) MonthPlan {
	weeks := date.Weeks(cells)
	capacity := Capacity(len(weeks))
	short, long := events.Split(events.InInterval(cells, inZone(cells, evs)))

	plan := MonthPlan{
		Rows:     len(weeks),
		Capacity: capacity,
		Weeks:    make([]WeekPlan, 0, len(weeks)),
	}
	for _, week := range weeks {
		plan.Weeks = append(plan.Weeks, LayoutWeek(week, short, long, capacity))
	}
	return plan
}

// LayoutWeek lays out one week row. short and long are the already
// classified events; anything outside the week is ignored.
func LayoutWeek(week []date.Cell, short, long []model.Event, capacity int) WeekPlan {
	short, long = inZone(week, short), inZone(week, long)
	lanes := AssignLanes(week, long)
	weekLong := events.ForWeek(week, long)

	weekShort := make([][]model.Event, len(week))
	for i, cell := range week {
		weekShort[i] = events.StartingOn(cell.Date, short)
	}

	byID := make(map[string]model.Event, len(long))
	for _, ev := range long {
		if ev.ID == "" {
			continue
		}
		byID[ev.ID] = ev
	}

	shows := make([]bool, len(week))
	for d := range week {
		shows[d] = showMore(d, lanes.Days, weekShort, capacity)
	}
	maxLong := func(d int) int {
		if shows[d] {
			return capacity - 1
		}
		return capacity
	}
	drawn := func(d, lane int, id string) bool {
		return d >= 0 && d < len(week) && lane < maxLong(d) &&
			lane < len(lanes.Days[d]) && lanes.Days[d][lane] == id
	}

	plan := WeekPlan{
		Days:  make([]DayPlan, 0, len(week)),
		Lanes: lanes,
	}
	for d, cell := range week {
		dp := DayPlan{
			Cell:     cell,
			Lanes:    lanes.Days[d],
			Long:     make([]Placed, 0),
			Short:    make([]PlacedShort, 0),
			ShowMore: shows[d],
			Total:    len(weekLong[d]) + len(weekShort[d]),
		}

		rendered := 0
		for lane, id := range lanes.Days[d] {
			if id == "" || !drawn(d, lane, id) {
				continue
			}
			ev := byID[id]
			seg := Style(week, d, ev)
			// A bar hidden behind an indicator restarts on the next day it
			// is drawn and stops before the next day that hides it.
			seg.Visible = !drawn(d-1, lane, id)
			n := 0
			for drawn(d+n, lane, id) {
				n++
			}
			seg.Span = n
			seg.Width = float64(n * 100)
			seg.Truncated = date.DaysBetween(week[d+n-1].Date, ev.End) > 0

			dp.Long = append(dp.Long, Placed{
				Event:   ev,
				Lane:    lane,
				Top:     lane * RowHeight,
				Segment: seg,
			})
			rendered++
		}

		if shows[d] {
			dp.More = dp.Total - rendered
			dp.MoreTop = (capacity - 1) * RowHeight
		} else {
			room := capacity - len(lanes.Days[d])
			for i, ev := range weekShort[d] {
				if i >= room {
					break
				}
				dp.Short = append(dp.Short, PlacedShort{
					Event: ev,
					Top:   (len(lanes.Days[d]) + i) * RowHeight,
				})
			}
		}
		plan.Days = append(plan.Days, dp)
	}
	return plan
}

// showMore decides whether day d needs the overflow indicator: the day
// itself holds more rows than capacity, or one of its events sitting at or
// below the indicator row also appears on a later, overflowing day of the
// week. The second rule keeps a bar hidden consistently across its span.
func showMore(d int, lanes [][]string, short [][]model.Event, capacity int) bool {
	occupancy := func(i int) int {
		return len(lanes[i]) + len(short[i])
	}
	if occupancy(d) > capacity {
		return true
	}
	if len(lanes[d]) < capacity {
		return false
	}

	below := make(map[string]bool)
	for _, id := range lanes[d][capacity-1:] {
		if id != "" {
			below[id] = true
		}
	}
	for j := d + 1; j < len(lanes); j++ {
		if occupancy(j) <= capacity {
			continue
		}
		for _, id := range lanes[j] {
			if below[id] {
				return true
			}
		}
	}
	return false
}

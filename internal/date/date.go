// Package date builds day, week, month and year descriptors and the
// fixed-week grids that calendar views lay events on.
package date

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// DefaultFirstWeekDay is Monday, counting 1 = Sunday ... 7 = Saturday.
const DefaultFirstWeekDay = 2

// ErrInvalidDate is returned instead of a descriptor when the input date is
// zero or cannot be parsed. Callers must check it before using the result.
var ErrInvalidDate = errors.New("invalid date")

// Day describes a single calendar date.
type Day struct {
	Date            time.Time `json:"date"`
	DayNumber       int       `json:"day_number"`
	Weekday         string    `json:"day"`
	DayShort        string    `json:"day_short"`
	DayNumberInWeek int       `json:"day_number_in_week"` // 1 = Sunday
	Year            int       `json:"year"`
	YearShort       string    `json:"year_short"`
	Month           string    `json:"month"`
	MonthShort      string    `json:"month_short"`
	MonthNumber     int       `json:"month_number"`
	MonthIndex      int       `json:"month_index"`
	Week            int       `json:"week"`
	Hours           int       `json:"hours"`
	Minutes         int       `json:"minutes"`
	Timestamp       int64     `json:"timestamp"`
}

// NewDay describes t using locale for names.
func NewDay(t time.Time, locale string) (Day, error) {
	if t.IsZero() {
		return Day{}, ErrInvalidDate
	}
	loc := ResolveLocale(locale)
	_, week := t.ISOWeek()

	return Day{
		Date:            t,
		DayNumber:       t.Day(),
		Weekday:         weekdayName(t, loc),
		DayShort:        weekdayShortName(t, loc),
		DayNumberInWeek: int(t.Weekday()) + 1,
		Year:            t.Year(),
		YearShort:       fmt.Sprintf("%02d", t.Year()%100),
		Month:           monthName(t, loc),
		MonthShort:      monthShortName(t, loc),
		MonthNumber:     int(t.Month()),
		MonthIndex:      int(t.Month()) - 1,
		Week:            week,
		Hours:           t.Hour(),
		Minutes:         t.Minute(),
		Timestamp:       t.UnixMilli(),
	}, nil
}

// IsZero reports whether d is the zero descriptor.
func (d Day) IsZero() bool {
	return d.Date.IsZero()
}

// Week is the seven-day row containing Date.
type Week struct {
	Date           time.Time `json:"date"`
	Start          time.Time `json:"start"`
	DayNumber      int       `json:"day_number"`
	MonthIndex     int       `json:"month_index"`
	Year           int       `json:"year"`
	FirstWeekDay   int       `json:"first_week_day"`
	DisplayedMonth string    `json:"displayed_month"`
	locale         string
}

// NewWeek builds the week containing t whose first column is firstWeekDay.
func NewWeek(t time.Time, firstWeekDay int, locale string) (Week, error) {
	if t.IsZero() {
		return Week{}, ErrInvalidDate
	}
	first := normalizeFirstWeekDay(firstWeekDay)
	offset := (int(t.Weekday()) - (first - 1) + 7) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 6)

	return Week{
		Date:           t,
		Start:          start,
		DayNumber:      t.Day(),
		MonthIndex:     int(t.Month()) - 1,
		Year:           t.Year(),
		FirstWeekDay:   first,
		DisplayedMonth: displayedRange(start, end, ResolveLocale(locale)),
		locale:         locale,
	}, nil
}

// Days returns the seven days of the week in column order.
func (w Week) Days() []Day {
	out := make([]Day, 0, 7)
	for i := 0; i < 7; i++ {
		d, err := NewDay(w.Start.AddDate(0, 0, i), w.locale)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

// End is the last day of the week at 00:00.
func (w Week) End() time.Time {
	return w.Start.AddDate(0, 0, 6)
}

func displayedRange(start, end time.Time, loc monday.Locale) string {
	switch {
	case start.Year() != end.Year():
		return monthName(start, loc) + " " + strconv.Itoa(start.Year()) + " - " +
			monthName(end, loc) + " " + strconv.Itoa(end.Year())
	case start.Month() != end.Month():
		return monthName(start, loc) + " - " + monthName(end, loc) + " " + strconv.Itoa(end.Year())
	default:
		return monthName(start, loc) + " " + strconv.Itoa(start.Year())
	}
}

// Month describes one calendar month.
type Month struct {
	Date        time.Time `json:"date"`
	Year        int       `json:"year"`
	MonthIndex  int       `json:"month_index"`
	MonthNumber int       `json:"month_number"`
	Name        string    `json:"month"`
	Short       string    `json:"month_short"`
	DaysCount   int       `json:"days_count"`
	locale      string
}

// NewMonth describes the month containing t.
func NewMonth(t time.Time, locale string) (Month, error) {
	if t.IsZero() {
		return Month{}, ErrInvalidDate
	}
	loc := ResolveLocale(locale)
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())

	return Month{
		Date:        first,
		Year:        first.Year(),
		MonthIndex:  int(first.Month()) - 1,
		MonthNumber: int(first.Month()),
		Name:        monthName(first, loc),
		Short:       monthShortName(first, loc),
		DaysCount:   DaysInMonth(first.Year(), int(first.Month())-1),
		locale:      locale,
	}, nil
}

// Day returns day n (1-based) of the month.
func (m Month) Day(n int) (Day, error) {
	if n < 1 || n > m.DaysCount {
		return Day{}, ErrInvalidDate
	}
	return NewDay(m.Date.AddDate(0, 0, n-1), m.locale)
}

// Days returns every day of the month.
func (m Month) Days() []Day {
	out := make([]Day, 0, m.DaysCount)
	for n := 1; n <= m.DaysCount; n++ {
		if d, err := m.Day(n); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// DaysInMonth handles leap years through time.Date normalization.
func DaysInMonth(year, monthIndex int) int {
	return time.Date(year, time.Month(monthIndex+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// YearsInterval returns the decade containing year, e.g. 2020..2029.
func YearsInterval(year int) []int {
	start := year / 10 * 10
	if year < 0 && year%10 != 0 {
		start -= 10
	}
	out := make([]int, 10)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// IsSameDay reports whether a and b fall on the same calendar date.
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// IsToday reports whether t is on the same date as now.
func IsToday(t, now time.Time) bool {
	return IsSameDay(t, now)
}

// StartOfDay is 00:00 of t's date.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay is the last representable instant of t's date.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// DaysBetween counts calendar days from a to b, ignoring clock time and DST.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// NextQuarter rounds t up to the next quarter hour. An exact quarter is
// advanced by a full 15 minutes, the start offered for a new event.
func NextQuarter(t time.Time) time.Time {
	t = t.Truncate(time.Minute)
	add := 15 - t.Minute()%15
	return t.Add(time.Duration(add) * time.Minute)
}

var parseLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDate parses s in loc (nil means time.Local). Unparsable input
// yields ErrInvalidDate.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func normalizeFirstWeekDay(n int) int {
	if n < 1 || n > 7 {
		return DefaultFirstWeekDay
	}
	return n
}

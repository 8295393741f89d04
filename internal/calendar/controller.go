// Package calendar holds the navigation state of a calendar view and the
// values derived from it.
package calendar

import (
	"errors"
	"slices"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"calgrid/internal/date"
	appLog "calgrid/internal/log"
)

// Mode is the active view.
type Mode string

const (
	ModeYear   Mode = "year"
	ModeYears  Mode = "years"  // decade index
	ModeMonth  Mode = "month"
	ModeMonths Mode = "months" // month index of one year
	ModeWeek   Mode = "week"
	ModeDay    Mode = "day"
)

// Direction is a navigation arrow.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	Today Direction = "today"
)

const (
	defaultWheelThrottle = 300 * time.Millisecond
	gridCacheSize        = 64
)

var (
	ErrUnknownMode      = errors.New("unknown calendar mode")
	ErrUnknownDirection = errors.New("unknown navigation direction")
)

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeYear, ModeYears, ModeMonth, ModeMonths, ModeWeek, ModeDay:
		return m, nil
	}
	return "", ErrUnknownMode
}

// ParseDirection validates s as a Direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Left, Right, Today:
		return d, nil
	}
	return "", ErrUnknownDirection
}

// Options configures a Controller.
type Options struct {
	Locale        string
	FirstWeekDay  int
	Mode          Mode
	Location      *time.Location
	WheelThrottle time.Duration
	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

// State is a snapshot of the navigation state.
type State struct {
	Mode          Mode       `json:"mode"`
	SelectedDay   date.Day   `json:"selected_day"`
	SelectedWeek  date.Week  `json:"selected_week"`
	SelectedMonth date.Month `json:"selected_month"`
	SelectedYear  int        `json:"selected_year"`
	YearsInterval []int      `json:"years_interval"`
}

type gridKey struct {
	year       int
	monthIndex int
	mode       Mode
}

// Controller owns the navigation state. Setters are the only way to change
// it. A Controller is not safe for concurrent use.
type Controller struct {
	opts  Options
	state State

	monthNames   []date.MonthName
	weekDayNames []date.WeekDayName

	monthGrids *lru.Cache[gridKey, []date.Cell]
	yearGrids  *lru.Cache[gridKey, [][]date.Cell]
	wheel      *rate.Limiter
}

// New builds a controller with selected as the selected day.
func New(selected time.Time, opts Options) (*Controller, error) {
	if opts.Mode == "" {
		opts.Mode = ModeWeek
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.FirstWeekDay < 1 || opts.FirstWeekDay > 7 {
		opts.FirstWeekDay = date.DefaultFirstWeekDay
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.WheelThrottle <= 0 {
		opts.WheelThrottle = defaultWheelThrottle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	monthGrids, err := lru.New[gridKey, []date.Cell](gridCacheSize)
	if err != nil {
		return nil, err
	}
	yearGrids, err := lru.New[gridKey, [][]date.Cell](gridCacheSize)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		opts:         opts,
		monthNames:   date.MonthNames(2000, opts.Locale),
		weekDayNames: date.WeekDayNames(opts.FirstWeekDay, opts.Locale),
		monthGrids:   monthGrids,
		yearGrids:    yearGrids,
		wheel:        rate.NewLimiter(rate.Every(opts.WheelThrottle), 1),
	}
	c.state.Mode = opts.Mode
	if err := c.ChangeState(selected); err != nil {
		return nil, err
	}
	c.state.YearsInterval = date.YearsInterval(c.state.SelectedYear)
	return c, nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := c.state
	s.YearsInterval = slices.Clone(c.state.YearsInterval)
	return s
}

// Options returns the controller's effective options.
func (c *Controller) Options() Options {
	return c.opts
}

// SetMode switches the active view.
func (c *Controller) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	c.state.Mode = m
	return nil
}

// SetSelectedDay selects t and every unit containing it.
func (c *Controller) SetSelectedDay(t time.Time) error {
	return c.ChangeState(t)
}

// SetSelectedYear changes only the selected year.
func (c *Controller) SetSelectedYear(year int) {
	c.state.SelectedYear = year
}

// SetSelectedMonthByIndex selects month monthIndex of the selected year.
func (c *Controller) SetSelectedMonthByIndex(monthIndex int) error {
	m, err := date.NewMonth(time.Date(c.state.SelectedYear, time.Month(monthIndex+1), 1, 0, 0, 0, 0, c.opts.Location), c.opts.Locale)
	if err != nil {
		return err
	}
	c.state.SelectedMonth = m
	return nil
}

// SetYearsInterval shows the decade containing year.
func (c *Controller) SetYearsInterval(year int) {
	c.state.YearsInterval = date.YearsInterval(year)
}

// ChangeState selects t as the day, week, month and year.
func (c *Controller) ChangeState(t time.Time) error {
	if t.IsZero() {
		return date.ErrInvalidDate
	}
	t = t.In(c.opts.Location)

	day, err := date.NewDay(t, c.opts.Locale)
	if err != nil {
		return err
	}
	week, err := date.NewWeek(t, c.opts.FirstWeekDay, c.opts.Locale)
	if err != nil {
		return err
	}
	month, err := date.NewMonth(t, c.opts.Locale)
	if err != nil {
		return err
	}

	c.state.SelectedDay = day
	c.state.SelectedWeek = week
	c.state.SelectedMonth = month
	c.state.SelectedYear = t.Year()
	if !slices.Contains(c.state.YearsInterval, t.Year()) {
		c.state.YearsInterval = date.YearsInterval(t.Year())
	}
	return nil
}

// OnClickArrow advances the unit of the current mode: a year, decade,
// month, week or day. Today selects the current date in any mode.
func (c *Controller) OnClickArrow(dir Direction) error {
	if _, err := ParseDirection(string(dir)); err != nil {
		return err
	}
	appLog.Debug("navigate", "mode", c.state.Mode, "direction", dir)

	if dir == Today {
		return c.ChangeState(c.opts.Now())
	}
	step := 1
	if dir == Left {
		step = -1
	}

	loc := c.opts.Location
	switch c.state.Mode {
	case ModeYear:
		return c.ChangeState(time.Date(c.state.SelectedYear+step, time.January, 1, 0, 0, 0, 0, loc))
	case ModeMonth:
		m := c.state.SelectedMonth
		return c.ChangeState(time.Date(m.Year, time.Month(m.MonthIndex+1+step), 1, 0, 0, 0, 0, loc))
	case ModeWeek:
		w := c.state.SelectedWeek
		return c.ChangeState(time.Date(w.Year, time.Month(w.MonthIndex+1), w.DayNumber+7*step, 0, 0, 0, 0, loc))
	case ModeDay:
		d := c.state.SelectedDay.Date
		return c.ChangeState(time.Date(d.Year(), d.Month(), d.Day()+step, 0, 0, 0, 0, loc))
	case ModeYears:
		c.SetYearsInterval(c.state.YearsInterval[0] + 10*step)
		return nil
	case ModeMonths:
		year := c.state.SelectedYear + step
		if !slices.Contains(c.state.YearsInterval, year) {
			c.SetYearsInterval(year)
		}
		c.SetSelectedYear(year)
		return nil
	}
	return ErrUnknownMode
}

// OnWheel turns a wheel delta into a left/right arrow. Events arriving
// within the throttle window of the last accepted one are dropped; the
// result reports whether this one navigated.
func (c *Controller) OnWheel(deltaY float64, at time.Time) (bool, error) {
	if !c.wheel.AllowN(at, 1) {
		return false, nil
	}
	dir := Left
	if deltaY > 0 {
		dir = Right
	}
	return true, c.OnClickArrow(dir)
}

// DisplayedDate is the header label of the current view.
func (c *Controller) DisplayedDate() string {
	s := c.state
	switch s.Mode {
	case ModeYear, ModeMonths:
		return strconv.Itoa(s.SelectedYear)
	case ModeYears:
		return strconv.Itoa(s.YearsInterval[0]) + " - " + strconv.Itoa(s.YearsInterval[len(s.YearsInterval)-1])
	case ModeMonth:
		return c.monthNames[s.SelectedMonth.MonthIndex].Month + " " + strconv.Itoa(s.SelectedYear)
	case ModeDay:
		d := s.SelectedDay
		return d.Weekday + ", " + d.Month + " " + strconv.Itoa(d.DayNumber) + ", " + strconv.Itoa(d.Year)
	default:
		return s.SelectedWeek.DisplayedMonth
	}
}

// MonthNames returns the localized month names.
func (c *Controller) MonthNames() []date.MonthName {
	return slices.Clone(c.monthNames)
}

// WeekDayNames returns the localized weekday headers, first weekday first.
func (c *Controller) WeekDayNames() []date.WeekDayName {
	return slices.Clone(c.weekDayNames)
}

// WeekDays returns the days of the selected week.
func (c *Controller) WeekDays() []date.Day {
	return c.state.SelectedWeek.Days()
}

// CalendarDaysOfMonth is the grid of the selected month in month mode and
// empty otherwise. Grids are cached by year, month and mode.
func (c *Controller) CalendarDaysOfMonth() []date.Cell {
	if c.state.Mode != ModeMonth {
		return []date.Cell{}
	}
	key := gridKey{year: c.state.SelectedYear, monthIndex: c.state.SelectedMonth.MonthIndex, mode: c.state.Mode}
	if cells, ok := c.monthGrids.Get(key); ok {
		return slices.Clone(cells)
	}
	cells := date.CalendarDaysOfMonth(key.year, key.monthIndex, c.opts.FirstWeekDay, c.opts.Location)
	c.monthGrids.Add(key, cells)
	return slices.Clone(cells)
}

// CalendarDaysOfYear is the twelve month grids of the selected year in year
// mode and empty otherwise.
func (c *Controller) CalendarDaysOfYear() [][]date.Cell {
	if c.state.Mode != ModeYear {
		return [][]date.Cell{}
	}
	key := gridKey{year: c.state.SelectedYear, mode: c.state.Mode}
	if grids, ok := c.yearGrids.Get(key); ok {
		return cloneGrids(grids)
	}
	grids := date.CalendarDaysOfYear(key.year, c.opts.FirstWeekDay, c.opts.Location)
	c.yearGrids.Add(key, grids)
	return cloneGrids(grids)
}

func cloneGrids(grids [][]date.Cell) [][]date.Cell {
	out := make([][]date.Cell, len(grids))
	for i, g := range grids {
		out[i] = slices.Clone(g)
	}
	return out
}

// CacheLen reports how many grids are memoized.
func (c *Controller) CacheLen() int {
	return c.monthGrids.Len() + c.yearGrids.Len()
}

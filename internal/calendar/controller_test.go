package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"calgrid/internal/date"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newController(t *testing.T, selected time.Time, mode Mode) *Controller {
	t.Helper()
	c, err := New(selected, Options{
		Locale:   "en-US",
		Mode:     mode,
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 6, 17, 14, 30, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New() returned an error: %v", err)
	}
	return c
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(day(2024, 6, 17), Options{})
	if err != nil {
		t.Fatalf("New() returned an error: %v", err)
	}
	opts := c.Options()
	if opts.Mode != ModeWeek {
		t.Errorf("Expected default mode week, got %q", opts.Mode)
	}
	if opts.FirstWeekDay != date.DefaultFirstWeekDay {
		t.Errorf("Expected first weekday %d, got %d", date.DefaultFirstWeekDay, opts.FirstWeekDay)
	}
	if opts.WheelThrottle != defaultWheelThrottle {
		t.Errorf("Expected throttle %s, got %s", defaultWheelThrottle, opts.WheelThrottle)
	}

	if _, err := New(day(2024, 6, 17), Options{Mode: "decade"}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got %v", err)
	}
	if _, err := New(time.Time{}, Options{}); !errors.Is(err, date.ErrInvalidDate) {
		t.Errorf("Expected ErrInvalidDate, got %v", err)
	}
}

func TestOnClickArrow(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		from      time.Time
		dir       Direction
		wantDay   time.Time
		wantMonth int
		wantYear  int
	}{
		{"month forward", ModeMonth, day(2024, 3, 31), Right, day(2024, 4, 1), 3, 2024},
		{"month back over year", ModeMonth, day(2024, 1, 20), Left, day(2023, 12, 1), 11, 2023},
		{"year forward", ModeYear, day(2024, 6, 17), Right, day(2025, 1, 1), 0, 2025},
		{"year back", ModeYear, day(2024, 6, 17), Left, day(2023, 1, 1), 0, 2023},
		{"week forward", ModeWeek, day(2024, 6, 17), Right, day(2024, 6, 24), 5, 2024},
		{"week back over month", ModeWeek, day(2024, 6, 3), Left, day(2024, 5, 27), 4, 2024},
		{"day back", ModeDay, day(2024, 6, 17), Left, day(2024, 6, 16), 5, 2024},
		{"day forward over year", ModeDay, day(2024, 12, 31), Right, day(2025, 1, 1), 0, 2025},
		{"today from month", ModeMonth, day(2019, 2, 3), Today, time.Date(2024, 6, 17, 14, 30, 0, 0, time.UTC), 5, 2024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(t, tt.from, tt.mode)
			if err := c.OnClickArrow(tt.dir); err != nil {
				t.Fatalf("OnClickArrow() returned an error: %v", err)
			}
			s := c.State()
			if !s.SelectedDay.Date.Equal(tt.wantDay) {
				t.Errorf("Expected day %v, got %v", tt.wantDay, s.SelectedDay.Date)
			}
			if !s.SelectedWeek.Date.Equal(tt.wantDay) {
				t.Errorf("Expected week anchored on %v, got %v", tt.wantDay, s.SelectedWeek.Date)
			}
			if s.SelectedMonth.MonthIndex != tt.wantMonth {
				t.Errorf("Expected month index %d, got %d", tt.wantMonth, s.SelectedMonth.MonthIndex)
			}
			if s.SelectedYear != tt.wantYear {
				t.Errorf("Expected year %d, got %d", tt.wantYear, s.SelectedYear)
			}
			if s.Mode != tt.mode {
				t.Errorf("Expected mode to stay %q, got %q", tt.mode, s.Mode)
			}
		})
	}
}

func TestOnClickArrow_Years(t *testing.T) {
	c := newController(t, day(2024, 6, 17), ModeYears)
	if err := c.OnClickArrow(Right); err != nil {
		t.Fatalf("OnClickArrow() returned an error: %v", err)
	}
	s := c.State()
	if diff := cmp.Diff(date.YearsInterval(2030), s.YearsInterval); diff != "" {
		t.Errorf("interval mismatch (-want +got):\n%s", diff)
	}
	if s.SelectedYear != 2024 {
		t.Errorf("Expected the selected year to stay 2024, got %d", s.SelectedYear)
	}
	if got := c.DisplayedDate(); got != "2030 - 2039" {
		t.Errorf("Expected \"2030 - 2039\", got %q", got)
	}

	c.OnClickArrow(Left)
	c.OnClickArrow(Left)
	if got := c.State().YearsInterval[0]; got != 2010 {
		t.Errorf("Expected decade 2010, got %d", got)
	}
}

func TestOnClickArrow_MonthsShiftsDecade(t *testing.T) {
	c := newController(t, day(2029, 5, 5), ModeMonths)
	if err := c.OnClickArrow(Right); err != nil {
		t.Fatalf("OnClickArrow() returned an error: %v", err)
	}
	s := c.State()
	if s.SelectedYear != 2030 {
		t.Errorf("Expected year 2030, got %d", s.SelectedYear)
	}
	if s.YearsInterval[0] != 2030 {
		t.Errorf("Expected decade to follow the year, got %v", s.YearsInterval)
	}
	if s.SelectedMonth.Year != 2029 {
		t.Errorf("Expected the selected month to stay in 2029, got %d", s.SelectedMonth.Year)
	}

	c.OnClickArrow(Left)
	if got := c.State(); got.SelectedYear != 2029 || got.YearsInterval[0] != 2020 {
		t.Errorf("Expected 2029 in the 2020s, got %d in %v", got.SelectedYear, got.YearsInterval)
	}
}

func TestOnClickArrow_UnknownDirection(t *testing.T) {
	c := newController(t, day(2024, 6, 17), ModeWeek)
	if err := c.OnClickArrow("up"); !errors.Is(err, ErrUnknownDirection) {
		t.Errorf("Expected ErrUnknownDirection, got %v", err)
	}
}

func TestOnWheel_Throttle(t *testing.T) {
	c := newController(t, day(2024, 6, 17), ModeDay)
	t0 := time.Date(2024, 6, 17, 9, 0, 0, 0, time.UTC)

	steps := []struct {
		at     time.Duration
		deltaY float64
		want   bool
		day    int
	}{
		{0, 120, true, 18},
		{100 * time.Millisecond, 120, false, 18},
		{250 * time.Millisecond, -120, false, 18},
		{400 * time.Millisecond, -120, true, 17},
		{800 * time.Millisecond, -5, true, 16},
	}
	for i, st := range steps {
		ok, err := c.OnWheel(st.deltaY, t0.Add(st.at))
		if err != nil {
			t.Fatalf("step %d: OnWheel() returned an error: %v", i, err)
		}
		if ok != st.want {
			t.Errorf("step %d: Expected accepted=%v, got %v", i, st.want, ok)
		}
		if got := c.State().SelectedDay.DayNumber; got != st.day {
			t.Errorf("step %d: Expected day %d, got %d", i, st.day, got)
		}
	}
}

func TestSetters(t *testing.T) {
	c := newController(t, day(2024, 6, 17), ModeWeek)

	if err := c.SetMode("fortnight"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got %v", err)
	}
	if err := c.SetMode(ModeMonth); err != nil {
		t.Fatalf("SetMode() returned an error: %v", err)
	}

	c.SetSelectedYear(2021)
	if err := c.SetSelectedMonthByIndex(0); err != nil {
		t.Fatalf("SetSelectedMonthByIndex() returned an error: %v", err)
	}
	s := c.State()
	if s.SelectedMonth.Year != 2021 || s.SelectedMonth.MonthIndex != 0 {
		t.Errorf("Expected January 2021, got %d/%d", s.SelectedMonth.MonthIndex, s.SelectedMonth.Year)
	}
	if s.SelectedDay.DayNumber != 17 {
		t.Errorf("Expected the selected day to stay the 17th, got %d", s.SelectedDay.DayNumber)
	}

	if err := c.SetSelectedDay(day(2024, 2, 29)); err != nil {
		t.Fatalf("SetSelectedDay() returned an error: %v", err)
	}
	if got := c.State(); got.SelectedMonth.MonthIndex != 1 || got.SelectedYear != 2024 {
		t.Errorf("Expected February 2024, got %d/%d", got.SelectedMonth.MonthIndex, got.SelectedYear)
	}

	if err := c.ChangeState(time.Time{}); !errors.Is(err, date.ErrInvalidDate) {
		t.Errorf("Expected ErrInvalidDate, got %v", err)
	}

	c.SetYearsInterval(1995)
	if got := c.State().YearsInterval; got[0] != 1990 || len(got) != 10 {
		t.Errorf("Expected the 1990s, got %v", got)
	}
}

func TestState_IsACopy(t *testing.T) {
	c := newController(t, day(2024, 6, 17), ModeYears)
	s := c.State()
	s.YearsInterval[0] = 1
	if c.State().YearsInterval[0] != 2020 {
		t.Error("State() must not expose the internal interval")
	}
}

func TestDisplayedDate(t *testing.T) {
	tests := []struct {
		mode Mode
		from time.Time
		want string
	}{
		{ModeYear, day(2024, 6, 17), "2024"},
		{ModeMonths, day(2024, 6, 17), "2024"},
		{ModeMonth, day(2024, 6, 17), "June 2024"},
		{ModeWeek, day(2024, 6, 17), "June 2024"},
		{ModeWeek, day(2024, 7, 1), "July 2024"},
		{ModeWeek, day(2024, 5, 29), "May - June 2024"},
		{ModeDay, day(2024, 6, 17), "Monday, June 17, 2024"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			c := newController(t, tt.from, tt.mode)
			if got := c.DisplayedDate(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGrids(t *testing.T) {
	c := newController(t, day(2024, 6, 17), ModeWeek)
	if got := c.CalendarDaysOfMonth(); len(got) != 0 {
		t.Errorf("Expected no month grid in week mode, got %d cells", len(got))
	}
	if got := c.CalendarDaysOfYear(); len(got) != 0 {
		t.Errorf("Expected no year grids in week mode, got %d", len(got))
	}
	if got := c.WeekDays(); len(got) != 7 || got[0].DayNumber != 17 {
		t.Errorf("Expected the week of Monday the 17th, got %d days", len(got))
	}

	c.SetMode(ModeMonth)
	cells := c.CalendarDaysOfMonth()
	if len(cells) != 35 {
		t.Fatalf("Expected 35 cells for June 2024 starting Monday, got %d", len(cells))
	}
	cells[0].DayNumber = 99
	if again := c.CalendarDaysOfMonth(); again[0].DayNumber == 99 {
		t.Error("cached grid must not be shared with callers")
	}
	if c.CacheLen() != 1 {
		t.Errorf("Expected one cached grid, got %d", c.CacheLen())
	}

	c.SetMode(ModeYear)
	years := c.CalendarDaysOfYear()
	if len(years) != 12 {
		t.Fatalf("Expected 12 month grids, got %d", len(years))
	}
	if years[1][0].MonthIndex != 0 || !years[1][0].Adjacent {
		t.Errorf("Expected February to start with a January cell, got %+v", years[1][0])
	}
	years[0][0].DayNumber = 99
	if again := c.CalendarDaysOfYear(); again[0][0].DayNumber == 99 {
		t.Error("cached year grids must not be shared with callers")
	}
	if c.CacheLen() != 2 {
		t.Errorf("Expected two cached grids, got %d", c.CacheLen())
	}
}

func TestNames(t *testing.T) {
	c := newController(t, day(2024, 6, 17), ModeWeek)
	names := c.WeekDayNames()
	if len(names) != 7 || names[0].Day != "Monday" {
		t.Errorf("Expected Monday first, got %+v", names)
	}
	months := c.MonthNames()
	if len(months) != 12 || months[11].Month != "December" {
		t.Errorf("Expected December last, got %+v", months)
	}
}

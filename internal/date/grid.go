package date

import "time"

// Cell is one day slot of a calendar grid.
type Cell struct {
	Year       int       `json:"year"`
	MonthIndex int       `json:"month_index"`
	DayNumber  int       `json:"day_number"`
	DayOfWeek  int       `json:"day_number_in_week"` // 1 = Sunday
	Date       time.Time `json:"date"`
	// Adjacent marks leading/trailing days borrowed from the neighbouring
	// months to complete the first and last week.
	Adjacent bool `json:"adjacent"`
}

// CalendarDaysOfMonth expands a month into complete weeks starting on
// firstWeekDay. Out-of-range month indexes are normalized (12 is January of
// the next year). A nil loc means time.Local.
func CalendarDaysOfMonth(year, monthIndex, firstWeekDay int, loc *time.Location) []Cell {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, time.Month(monthIndex+1), 1, 0, 0, 0, 0, loc)
	year, month := first.Year(), first.Month()
	fwd := normalizeFirstWeekDay(firstWeekDay)

	lead := (int(first.Weekday()) - (fwd - 1) + 7) % 7
	total := lead + DaysInMonth(year, int(month)-1)
	rows := (total + 6) / 7

	cells := make([]Cell, 0, rows*7)
	for i := 0; i < rows*7; i++ {
		d := time.Date(year, month, 1-lead+i, 0, 0, 0, 0, loc)
		cells = append(cells, Cell{
			Year:       d.Year(),
			MonthIndex: int(d.Month()) - 1,
			DayNumber:  d.Day(),
			DayOfWeek:  int(d.Weekday()) + 1,
			Date:       d,
			Adjacent:   d.Month() != month || d.Year() != year,
		})
	}
	return cells
}

// CalendarDaysOfYear returns the twelve month grids of year.
func CalendarDaysOfYear(year, firstWeekDay int, loc *time.Location) [][]Cell {
	out := make([][]Cell, 12)
	for m := range out {
		out[m] = CalendarDaysOfMonth(year, m, firstWeekDay, loc)
	}
	return out
}

// WeekCells returns the seven cells of the week containing t.
func WeekCells(t time.Time, firstWeekDay int) []Cell {
	fwd := normalizeFirstWeekDay(firstWeekDay)
	offset := (int(t.Weekday()) - (fwd - 1) + 7) % 7
	month := t.Month()

	cells := make([]Cell, 7)
	for i := range cells {
		d := time.Date(t.Year(), t.Month(), t.Day()-offset+i, 0, 0, 0, 0, t.Location())
		cells[i] = Cell{
			Year:       d.Year(),
			MonthIndex: int(d.Month()) - 1,
			DayNumber:  d.Day(),
			DayOfWeek:  int(d.Weekday()) + 1,
			Date:       d,
			Adjacent:   d.Month() != month,
		}
	}
	return cells
}

// Weeks splits a grid into rows of seven. A trailing partial row is dropped;
// grids built by this package never have one.
func Weeks(cells []Cell) [][]Cell {
	rows := len(cells) / 7
	out := make([][]Cell, rows)
	for i := range out {
		out[i] = cells[i*7 : (i+1)*7]
	}
	return out
}

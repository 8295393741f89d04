package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"calgrid/internal/date"
	"calgrid/internal/layout"
)

const cellWidth = 12

// renderGrid prints weeks as a fixed-width text table: a day-number line
// followed by capacity event rows per week.
func renderGrid(w io.Writer, title string, names []date.WeekDayName, weeks []layout.WeekPlan, capacity int) error {
	var b strings.Builder
	b.WriteString(title)
	b.WriteByte('\n')

	header := make([]string, len(names))
	for i, n := range names {
		header[i] = fit(n.DayShort, cellWidth)
	}
	writeRow(&b, header)

	for _, week := range weeks {
		b.WriteString(strings.Repeat("-", (cellWidth+1)*len(week.Days)+1))
		b.WriteByte('\n')

		nums := make([]string, len(week.Days))
		for i, dp := range week.Days {
			n := strconv.Itoa(dp.Cell.DayNumber)
			if dp.Cell.Adjacent {
				n = "(" + n + ")"
			}
			nums[i] = fit(n, cellWidth)
		}
		writeRow(&b, nums)

		for row := 0; row < capacity; row++ {
			cols := make([]string, len(week.Days))
			for i, dp := range week.Days {
				cols[i] = fit(cellLabel(dp, row), cellWidth)
			}
			writeRow(&b, cols)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// cellLabel is the text shown on row of a day cell, or "" when the row is
// empty.
func cellLabel(dp layout.DayPlan, row int) string {
	top := row * layout.RowHeight
	if dp.ShowMore && dp.MoreTop == top {
		return fmt.Sprintf("+%d more", dp.More)
	}
	for _, p := range dp.Long {
		if p.Top != top {
			continue
		}
		if !p.Segment.Visible {
			return "--"
		}
		if p.Segment.FromPrev {
			return "<" + p.Event.Title
		}
		return p.Event.Title
	}
	for _, p := range dp.Short {
		if p.Top == top {
			return p.Event.Start.Format("15:04") + " " + p.Event.Title
		}
	}
	return ""
}

func writeRow(b *strings.Builder, cols []string) {
	b.WriteByte('|')
	for _, c := range cols {
		b.WriteString(c)
		b.WriteByte('|')
	}
	b.WriteByte('\n')
}

// fit pads or truncates s to exactly n runes.
func fit(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-1]) + "~"
	}
	return s + strings.Repeat(" ", n-len(r))
}

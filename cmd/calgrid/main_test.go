package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"calgrid/internal/date"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

const workICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//calgrid//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:sync-1\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"DTSTART:20240603T090000Z\r\n" +
	"DTEND:20240603T093000Z\r\n" +
	"SUMMARY:Sync\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=2\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:lunch-1\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"DTSTART:20240617T120000Z\r\n" +
	"DTEND:20240617T130000Z\r\n" +
	"SUMMARY:Lunch\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:offsite-1\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"DTSTART:20240618T090000Z\r\n" +
	"DTEND:20240620T170000Z\r\n" +
	"SUMMARY:Offsite\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

// setup writes an ICS source and a config pointing at it, and returns the
// config path and the ICS path.
func setup(t *testing.T) (string, string) {
	t.Helper()
	appLog.SetOutput(io.Discard)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	dir := t.TempDir()
	icsPath := filepath.Join(dir, "work.ics")
	if err := os.WriteFile(icsPath, []byte(workICS), 0o600); err != nil {
		t.Fatalf("write ics: %v", err)
	}

	conf := "timezone: UTC\n" +
		"locale: en-US\n" +
		"first_week_day: 2\n" +
		"sources:\n" +
		"  - id: work\n" +
		"    path: " + icsPath + "\n"
	confPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(confPath, []byte(conf), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return confPath, icsPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMonthCommand(t *testing.T) {
	confPath, _ := setup(t)

	out, err := run(t, "--config", confPath, "month", "2024-06")
	if err != nil {
		t.Fatalf("month: %v", err)
	}

	for _, want := range []string{"June 2024", "Mon", "(27)", "09:00 Sync", "12:00 Lunch", "Offsite", "--"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	// June 2024 starting on Monday fills five rows.
	if n := strings.Count(out, "\n-"); n != 5 {
		t.Errorf("Expected 5 week separators, got %d", n)
	}
}

func TestMonthCommand_BadArg(t *testing.T) {
	confPath, _ := setup(t)
	if _, err := run(t, "--config", confPath, "month", "June"); err == nil {
		t.Error("Expected error for malformed month")
	}
}

func TestWeekCommand(t *testing.T) {
	confPath, _ := setup(t)

	out, err := run(t, "--config", confPath, "week", "2024-06-19")
	if err != nil {
		t.Fatalf("week: %v", err)
	}
	if !strings.HasPrefix(out, "June 2024\n") {
		t.Errorf("Expected week title June 2024, got:\n%s", out)
	}
	for _, want := range []string{"17", "23", "12:00 Lunch", "Offsite"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Sync") {
		t.Errorf("Expected no Sync occurrence in the week of June 17, got:\n%s", out)
	}
}

func TestImportCommand_JSON(t *testing.T) {
	confPath, icsPath := setup(t)

	out, err := run(t, "--config", confPath, "import", icsPath, "--json", "--from", "2024-06-01", "--to", "2024-06-30")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	var evs []model.Event
	if err := json.Unmarshal([]byte(out), &evs); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	got := make([]string, 0, len(evs))
	for _, ev := range evs {
		got = append(got, ev.ID)
	}
	want := []string{
		"work/sync-1@20240603T090000Z",
		"work/sync-1@20240610T090000Z",
		"work/lunch-1",
		"work/offsite-1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestImportCommand_Table(t *testing.T) {
	confPath, icsPath := setup(t)

	out, err := run(t, "--config", confPath, "import", icsPath, "--id", "team", "--from", "2024-06-15", "--to", "2024-06-30")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("Expected header row, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "team/lunch-1") {
		t.Errorf("Expected lunch first, got %q", lines[1])
	}
}

func TestImportCommand_Missing(t *testing.T) {
	confPath, _ := setup(t)
	if _, err := run(t, "--config", confPath, "import", filepath.Join(t.TempDir(), "nope.ics")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestCellLabel(t *testing.T) {
	at := time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)
	ev := func(id, title string, start time.Time) model.Event {
		return model.Event{ID: id, Title: title, Start: start, End: start.Add(time.Hour)}
	}

	dp := layout.DayPlan{
		Cell: date.Cell{DayNumber: 17, Date: at},
		Long: []layout.Placed{
			{Event: ev("a", "Trip", at), Top: 0, Segment: layout.Segment{Visible: true, FromPrev: true}},
			{Event: ev("b", "Course", at), Top: layout.RowHeight},
		},
		Short: []layout.PlacedShort{
			{Event: ev("c", "Lunch", at.Add(12*time.Hour)), Top: 2 * layout.RowHeight},
		},
		ShowMore: true,
		More:     2,
		MoreTop:  3 * layout.RowHeight,
	}

	tests := []struct {
		row  int
		want string
	}{
		{0, "<Trip"},
		{1, "--"},
		{2, "12:00 Lunch"},
		{3, "+2 more"},
		{4, ""},
	}
	for _, tt := range tests {
		if got := cellLabel(dp, tt.row); got != tt.want {
			t.Errorf("row %d: Expected %q, got %q", tt.row, tt.want, got)
		}
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Mon", 5, "Mon  "},
		{"Offsite", 7, "Offsite"},
		{"Conference", 6, "Confe~"},
		{"월요일월요일", 4, "월요일~"},
	}
	for _, tt := range tests {
		if got := fit(tt.in, tt.n); got != tt.want {
			t.Errorf("fit(%q, %d): Expected %q, got %q", tt.in, tt.n, tt.want, got)
		}
	}
}

func TestRenderGrid_Overflow(t *testing.T) {
	cells := date.WeekCells(time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), 2)
	var evs []model.Event
	for i := 0; i < 5; i++ {
		start := time.Date(2024, 6, 17, 8+i, 0, 0, 0, time.UTC)
		evs = append(evs, model.Event{
			ID:    string(rune('a' + i)),
			Title: "E",
			Start: start,
			End:   start.Add(30 * time.Minute),
			Kind:  model.KindSingle,
		})
	}
	plan := layout.LayoutWeek(cells, evs, nil, 4)

	var buf bytes.Buffer
	if err := renderGrid(&buf, "Week", date.WeekDayNames(2, "en-US"), []layout.WeekPlan{plan}, 4); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "+5 more") {
		t.Errorf("Expected overflow indicator, got:\n%s", out)
	}
	// header + names + separator + day numbers + 4 rows
	if n := strings.Count(out, "\n"); n != 8 {
		t.Errorf("Expected 8 lines, got %d:\n%s", n, out)
	}
}

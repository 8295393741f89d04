package model

import (
	"errors"
	"testing"
	"time"
)

func TestNewEvent_Validation(t *testing.T) {
	start := time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		draft Draft
		want  error
	}{
		{"empty title", Draft{Title: "  ", Start: start, End: start.Add(time.Hour)}, ErrEmptyTitle},
		{"missing end", Draft{Title: "a", Start: start}, ErrMissingTime},
		{"end before start", Draft{Title: "a", Start: start, End: start.Add(-time.Minute)}, ErrEndBeforeStart},
		{"unknown kind", Draft{Title: "a", Start: start, End: start, Kind: "meeting"}, ErrUnknownKind},
		{"ok", Draft{Title: "a", Start: start, End: start.Add(time.Hour)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvent(tt.draft)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewEvent_Defaults(t *testing.T) {
	start := time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)
	ev, err := NewEvent(Draft{Title: " Standup ", Start: start, End: start.Add(15 * time.Minute)})
	if err != nil {
		t.Fatalf("NewEvent() returned an error: %v", err)
	}
	if ev.ID == "" {
		t.Error("expected generated id")
	}
	if ev.Title != "Standup" {
		t.Errorf("expected trimmed title, got %q", ev.Title)
	}
	if ev.Color != DefaultColor {
		t.Errorf("expected default color, got %q", ev.Color)
	}
	if ev.Kind != KindSingle {
		t.Errorf("expected single kind, got %q", ev.Kind)
	}
}

func TestNewEvent_LongSnapsToWholeDays(t *testing.T) {
	ev, err := NewEvent(Draft{
		Title: "Trip",
		Start: time.Date(2024, 6, 16, 13, 30, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 18, 8, 0, 0, 0, time.UTC),
		Kind:  KindLong,
	})
	if err != nil {
		t.Fatalf("NewEvent() returned an error: %v", err)
	}
	if want := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC); !ev.Start.Equal(want) {
		t.Errorf("expected start %v, got %v", want, ev.Start)
	}
	if want := time.Date(2024, 6, 18, 23, 59, 0, 0, time.UTC); !ev.End.Equal(want) {
		t.Errorf("expected end %v, got %v", want, ev.End)
	}
}

func TestEdit_KeepsIdentity(t *testing.T) {
	start := time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)
	orig, err := NewEvent(Draft{ID: "e1", SourceID: "work", Title: "a", Start: start, End: start})
	if err != nil {
		t.Fatal(err)
	}

	d := orig.Draft()
	d.Title = "b"
	d.ID = "ignored"
	d.SourceID = ""
	edited, err := orig.Edit(d)
	if err != nil {
		t.Fatalf("Edit() returned an error: %v", err)
	}
	if edited.ID != "e1" || edited.SourceID != "work" || edited.Title != "b" {
		t.Errorf("unexpected edited event: %+v", edited)
	}
	if orig.Title != "a" {
		t.Errorf("original must stay unchanged, got %q", orig.Title)
	}
}

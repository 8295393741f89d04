package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind tells the layout engine how an event occupies the grid.
type Kind string

const (
	// KindSingle is a timed event inside one time slot.
	KindSingle Kind = "event"
	// KindLong is a multi-day or all-day event drawn as a bar across days.
	KindLong Kind = "long-event"
)

// DefaultColor is used when a draft carries no color.
const DefaultColor = "#4285f4"

var (
	ErrEmptyTitle     = errors.New("event title is empty")
	ErrMissingTime    = errors.New("event start or end is missing")
	ErrEndBeforeStart = errors.New("event end is before start")
	ErrUnknownKind    = errors.New("unknown event kind")
)

// Event is an immutable calendar entry. Edits produce a new Event with the
// same ID (see Edit).
type Event struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Color       string    `json:"color"`
	Kind        Kind      `json:"type"`
}

// Draft holds user-supplied event fields before validation.
type Draft struct {
	ID          string    `json:"id,omitempty"`
	SourceID    string    `json:"source_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Color       string    `json:"color"`
	Kind        Kind      `json:"type"`
}

// NewEvent validates d and builds an Event. A missing ID is filled with a
// random UUID; long events are widened to whole days.
func NewEvent(d Draft) (Event, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return Event{}, ErrEmptyTitle
	}
	if d.Start.IsZero() || d.End.IsZero() {
		return Event{}, ErrMissingTime
	}

	kind := d.Kind
	switch kind {
	case "":
		kind = KindSingle
	case KindSingle, KindLong:
	default:
		return Event{}, ErrUnknownKind
	}

	start, end := d.Start, d.End
	if kind == KindLong {
		start, end = wholeDays(start, end)
	}
	if end.Before(start) {
		return Event{}, ErrEndBeforeStart
	}

	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}
	color := d.Color
	if color == "" {
		color = DefaultColor
	}

	return Event{
		ID:          id,
		SourceID:    d.SourceID,
		Title:       title,
		Description: d.Description,
		Start:       start,
		End:         end,
		Color:       color,
		Kind:        kind,
	}, nil
}

// Edit returns a new event built from d that keeps e's identity.
func (e Event) Edit(d Draft) (Event, error) {
	d.ID = e.ID
	if d.SourceID == "" {
		d.SourceID = e.SourceID
	}
	return NewEvent(d)
}

// Draft returns the editable fields of e.
func (e Event) Draft() Draft {
	return Draft{
		ID:          e.ID,
		SourceID:    e.SourceID,
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		End:         e.End,
		Color:       e.Color,
		Kind:        e.Kind,
	}
}

// Duration is End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// wholeDays snaps start to 00:00 and end to 23:59 of their days.
func wholeDays(start, end time.Time) (time.Time, time.Time) {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	e := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 0, 0, end.Location())
	return s, e
}

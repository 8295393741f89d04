package events

import (
	"errors"
	"sync"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

var (
	ErrNotFound  = errors.New("event not found")
	ErrDuplicate = errors.New("event id already exists")
)

// Store is the in-memory event list shared between the API and the
// layout code. It is not persisted.
type Store struct {
	mu     sync.RWMutex
	order  []string
	byID   map[string]model.Event
	notify []func()
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]model.Event)}
}

// OnChange registers fn to run after every mutation, outside the lock.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.notify = append(s.notify, fn)
	s.mu.Unlock()
}

func (s *Store) changed() {
	s.mu.RLock()
	fns := append([]func(){}, s.notify...)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// All returns a snapshot in insertion order.
func (s *Store) All() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Get returns the event with id.
func (s *Store) Get(id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.byID[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return ev, nil
}

// Add inserts a validated event built from d.
func (s *Store) Add(d model.Draft) (model.Event, error) {
	ev, err := model.NewEvent(d)
	if err != nil {
		return model.Event{}, err
	}

	s.mu.Lock()
	if _, exists := s.byID[ev.ID]; exists {
		s.mu.Unlock()
		return model.Event{}, ErrDuplicate
	}
	s.byID[ev.ID] = ev
	s.order = append(s.order, ev.ID)
	s.mu.Unlock()

	appLog.Debug("event added", "id", ev.ID, "kind", ev.Kind)
	s.changed()
	return ev, nil
}

// Update replaces the event id with a new event built from d.
func (s *Store) Update(id string, d model.Draft) (model.Event, error) {
	s.mu.Lock()
	old, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return model.Event{}, ErrNotFound
	}
	ev, err := old.Edit(d)
	if err != nil {
		s.mu.Unlock()
		return model.Event{}, err
	}
	s.byID[id] = ev
	s.mu.Unlock()

	appLog.Debug("event updated", "id", id)
	s.changed()
	return ev, nil
}

// Delete removes the event id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.byID, id)
	s.order = removeID(s.order, id)
	s.mu.Unlock()

	appLog.Debug("event deleted", "id", id)
	s.changed()
	return nil
}

// Replace swaps every event of sourceID for evs, used when an imported
// calendar file is reloaded.
func (s *Store) Replace(sourceID string, evs []model.Event) {
	s.mu.Lock()
	kept := s.order[:0:0]
	for _, id := range s.order {
		if s.byID[id].SourceID == sourceID {
			delete(s.byID, id)
			continue
		}
		kept = append(kept, id)
	}
	for _, ev := range evs {
		ev.SourceID = sourceID
		if _, exists := s.byID[ev.ID]; exists {
			appLog.Warn("duplicate event id on import; skipping", "source", sourceID, "id", ev.ID)
			continue
		}
		s.byID[ev.ID] = ev
		kept = append(kept, ev.ID)
	}
	s.order = kept
	s.mu.Unlock()

	appLog.Info("source events replaced", "source", sourceID, "count", len(evs))
	s.changed()
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

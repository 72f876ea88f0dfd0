package engine

import (
	"sync"

	"automationdash/internal/core"
)

// Selection remembers the open automation. It holds a copy of the object so
// the detail view survives the automation dropping out of the collection.
type Selection struct {
	mu      sync.Mutex
	current *core.Automation
}

// Toggle deselects a when it is already selected and selects it otherwise.
// It returns the id selected afterwards, or "".
func (s *Selection) Toggle(a core.Automation) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.ID == a.ID {
		s.current = nil
		return ""
	}
	s.current = &a
	return a.ID
}

// Select opens a regardless of the current selection.
func (s *Selection) Select(a core.Automation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &a
}

// Sync replaces the selected object with its fresh copy from items. When the
// id is missing the last-known object is kept.
func (s *Selection) Sync(items []core.Automation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	for i := range items {
		if items[i].ID == s.current.ID {
			a := items[i]
			s.current = &a
			return
		}
	}
}

// Clear closes the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Current returns the selected automation.
func (s *Selection) Current() (core.Automation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return core.Automation{}, false
	}
	return *s.current, true
}

// ID returns the selected id, or "".
func (s *Selection) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

package selection

import "sync"

// State holds a chart's current selection. Reads and writes copy, so
// callers never share the stored value.
type State struct {
	mu       sync.Mutex
	current  Selection
	onChange func(Selection)
}

// NewState returns an empty state that calls onChange with a copy of every
// new selection. onChange is meant for cheap brush overlay redraws.
func NewState(onChange func(Selection)) *State {
	return &State{onChange: onChange}
}

// Get returns a copy of the current selection, or nil.
func (s *State) Get() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.Clone()
}

// Set replaces the selection with a copy of sel and redraws the overlay.
func (s *State) Set(sel Selection) {
	var stored Selection
	if sel != nil {
		stored = sel.Clone()
	}

	s.mu.Lock()
	s.current = stored
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		var out Selection
		if stored != nil {
			out = stored.Clone()
		}
		hook(out)
	}
}

package filter

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a position does not name an existing filter.
var ErrIndexOutOfRange = errors.New("filter index out of range")

// Change describes what happened to a set.
type Change int

// Kinds of change reported to an observer.
const (
	Inserted Change = iota
	Replaced
	Removed
)

func (c Change) String() string {
	switch c {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("Change(%d)", int(c))
}

// ObserverFunc is notified after a successful change at index.
type ObserverFunc func(c Change, index int)

// Set is an ordered list of filters. Order is both display order and the
// order in which filters appear in the query. Duplicates are allowed.
// The zero value is an empty set.
type Set struct {
	filters  []Filter
	observer ObserverFunc
}

// Observe registers fn to be told about changes. Pass nil to stop.
func (s *Set) Observe(fn ObserverFunc) {
	s.observer = fn
}

// Len returns the number of filters.
func (s *Set) Len() int { return len(s.filters) }

// Append adds f at the end.
func (s *Set) Append(f Filter) {
	s.filters = append(s.filters, f)
	s.notify(Inserted, len(s.filters)-1)
}

// At returns the filter at index.
func (s *Set) At(index int) (Filter, error) {
	if err := s.check(index); err != nil {
		return Filter{}, err
	}
	return s.filters[index], nil
}

// ReplaceAt puts f at an existing index.
func (s *Set) ReplaceAt(index int, f Filter) error {
	if err := s.check(index); err != nil {
		return err
	}
	s.filters[index] = f
	s.notify(Replaced, index)
	return nil
}

// RemoveAt deletes the filter at index, shifting later filters down.
func (s *Set) RemoveAt(index int) error {
	if err := s.check(index); err != nil {
		return err
	}
	s.filters = append(s.filters[:index], s.filters[index+1:]...)
	s.notify(Removed, index)
	return nil
}

// List returns a copy of the filters in order.
func (s *Set) List() []Filter {
	out := make([]Filter, len(s.filters))
	copy(out, s.filters)
	return out
}

func (s *Set) check(index int) error {
	if index < 0 || index >= len(s.filters) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(s.filters))
	}
	return nil
}

func (s *Set) notify(c Change, index int) {
	if s.observer != nil {
		s.observer(c, index)
	}
}

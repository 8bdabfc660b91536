// Package session implements the search session state machine: it composes
// the query, submits it through a Transport and pages through the results.
//
// A Session has a single owner and is not safe for concurrent use. Transport
// calls are split into a Begin step, which validates and records the request,
// and Finish, which applies the outcome. The owner may run the call anywhere
// in between; Finish ignores outcomes of requests that are no longer current.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"forum_search/internal/filter"
	"forum_search/internal/model"
)

var (
	// ErrEmptyQuery is returned when there is nothing to search for.
	ErrEmptyQuery = errors.New("empty query")
	// ErrInvalidState is returned when an operation is not allowed in the
	// session's current state.
	ErrInvalidState = errors.New("invalid session state")
)

// TransportError wraps a failure reported by the transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport performs the network side of a search.
type Transport interface {
	Search(ctx context.Context, query string, forums []int) (model.SearchResult, error)
	FetchPage(ctx context.Context, queryID, page int) ([]model.ResultItem, error)
}

// Status is the state of a session.
type Status int

// Session states.
const (
	Idle Status = iota
	Submitting
	Ready
	FetchingNextPage
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Ready:
		return "ready"
	case FetchingNextPage:
		return "fetching next page"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Session tracks one chat's query inputs and the paginated results of its
// current query.
type Session struct {
	freeText string
	filters  filter.Set
	forums   []int

	queryID     int
	currentPage int
	totalPages  int
	results     []model.ResultItem

	status  Status
	before  Status
	gen     uint64
	pending *Request
	failed  *Request
	lastErr error
	closed  bool
}

// New returns an idle session with no inputs.
func New() *Session {
	return &Session{}
}

// Status returns the current state.
func (s *Session) Status() Status { return s.status }

// Err returns the error of the last failed request, if the session is Failed.
func (s *Session) Err() error {
	if s.status != Failed {
		return nil
	}
	return s.lastErr
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed }

// FreeText returns the free-text part of the query.
func (s *Session) FreeText() string { return s.freeText }

// Filters returns the filters in query order.
func (s *Session) Filters() []filter.Filter { return s.filters.List() }

// Forums returns the forum ids the search is limited to. Empty means all.
func (s *Session) Forums() []int { return slices.Clone(s.forums) }

// Query returns the query string the current inputs would produce.
func (s *Session) Query() string { return filter.Build(s.freeText, s.filters.List()) }

// QueryID returns the server's id for the current result set.
func (s *Session) QueryID() (int, bool) {
	return s.queryID, s.queryID != 0
}

// Page returns the number of pages fetched and the total number of pages.
func (s *Session) Page() (current, total int) {
	return s.currentPage, s.totalPages
}

// Results returns the results fetched so far, in page order.
func (s *Session) Results() []model.ResultItem {
	return slices.Clone(s.results)
}

// HasMore reports whether FetchNextPage may be called.
func (s *Session) HasMore() bool {
	return s.status == Ready && s.currentPage < s.totalPages
}

// CanRetry reports whether Retry may be called.
func (s *Session) CanRetry() bool {
	return !s.closed && s.status == Failed && s.failed != nil
}

// Observe forwards filter changes to fn.
func (s *Session) Observe(fn filter.ObserverFunc) {
	s.filters.Observe(fn)
}

func (s *Session) editable() error {
	if s.closed {
		return fmt.Errorf("%w: session closed", ErrInvalidState)
	}
	if s.status == Submitting || s.status == FetchingNextPage {
		return fmt.Errorf("%w: request in flight (%s)", ErrInvalidState, s.status)
	}
	return nil
}

// SetFreeText replaces the free-text part of the query.
func (s *Session) SetFreeText(text string) error {
	if err := s.editable(); err != nil {
		return err
	}
	s.freeText = text
	return nil
}

// SetForums limits the search to the given forum ids.
func (s *Session) SetForums(ids []int) error {
	if err := s.editable(); err != nil {
		return err
	}
	s.forums = uniqueSorted(ids)
	return nil
}

// AddFilter appends f.
func (s *Session) AddFilter(f filter.Filter) error {
	if err := s.editable(); err != nil {
		return err
	}
	s.filters.Append(f)
	return nil
}

// EditFilter replaces the parameter of the filter at index.
// Filters of a fixed kind report filter.ErrNotEditable.
func (s *Session) EditFilter(index int, param string) error {
	if err := s.editable(); err != nil {
		return err
	}
	f, err := s.filters.At(index)
	if err != nil {
		return err
	}
	edited, err := f.Edit(param)
	if err != nil {
		return err
	}
	return s.filters.ReplaceAt(index, edited)
}

// ReplaceFilter puts f at index.
func (s *Session) ReplaceFilter(index int, f filter.Filter) error {
	if err := s.editable(); err != nil {
		return err
	}
	return s.filters.ReplaceAt(index, f)
}

// RemoveFilter deletes the filter at index.
func (s *Session) RemoveFilter(index int) error {
	if err := s.editable(); err != nil {
		return err
	}
	return s.filters.RemoveAt(index)
}

func uniqueSorted(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"forum_search/internal/model"
)

// RequestKind tells a search submission from a page fetch.
type RequestKind int

// Request kinds.
const (
	SearchRequest RequestKind = iota
	PageRequest
)

func (k RequestKind) String() string {
	switch k {
	case SearchRequest:
		return "search"
	case PageRequest:
		return "fetch page"
	}
	return fmt.Sprintf("RequestKind(%d)", int(k))
}

// lastGen numbers requests across every session in the process, so an
// outcome can only ever match the request that produced it.
var lastGen atomic.Uint64

// Request is a transport call issued by a session. It is only meaningful to
// the session that created it.
type Request struct {
	Kind    RequestKind
	Query   string
	Forums  []int
	QueryID int
	Page    int

	gen uint64
}

// Outcome is the result of executing a Request.
type Outcome struct {
	Result model.SearchResult
	Items  []model.ResultItem
	Err    error
}

// Execute performs the request against t. It does not touch the session and
// may run on any goroutine.
func (r Request) Execute(ctx context.Context, t Transport) Outcome {
	switch r.Kind {
	case SearchRequest:
		res, err := t.Search(ctx, r.Query, r.Forums)
		return Outcome{Result: res, Err: err}
	case PageRequest:
		items, err := t.FetchPage(ctx, r.QueryID, r.Page)
		return Outcome{Items: items, Err: err}
	}
	return Outcome{Err: fmt.Errorf("unknown request kind %d", int(r.Kind))}
}

// BeginSubmit starts a new search from the current inputs and moves the
// session to Submitting.
func (s *Session) BeginSubmit() (Request, error) {
	if err := s.editable(); err != nil {
		return Request{}, err
	}
	q := s.Query()
	if strings.TrimSpace(q) == "" {
		return Request{}, ErrEmptyQuery
	}
	req := Request{Kind: SearchRequest, Query: q, Forums: s.Forums()}
	return s.begin(req, Submitting), nil
}

// BeginNextPage starts fetching the page after the last one fetched. It is
// only allowed when the session is Ready and more pages exist.
func (s *Session) BeginNextPage() (Request, error) {
	if s.closed {
		return Request{}, fmt.Errorf("%w: session closed", ErrInvalidState)
	}
	if s.status != Ready {
		return Request{}, fmt.Errorf("%w: cannot fetch next page while %s", ErrInvalidState, s.status)
	}
	if s.currentPage >= s.totalPages {
		return Request{}, fmt.Errorf("%w: all %d pages fetched", ErrInvalidState, s.totalPages)
	}
	req := Request{Kind: PageRequest, QueryID: s.queryID, Page: s.currentPage + 1}
	return s.begin(req, FetchingNextPage), nil
}

// Retry re-issues the request that failed, with the same parameters.
func (s *Session) Retry() (Request, error) {
	if !s.CanRetry() {
		return Request{}, fmt.Errorf("%w: nothing to retry while %s", ErrInvalidState, s.status)
	}
	req := *s.failed
	req.Forums = slices.Clone(req.Forums)
	next := Submitting
	if req.Kind == PageRequest {
		next = FetchingNextPage
	}
	return s.begin(req, next), nil
}

func (s *Session) begin(req Request, next Status) Request {
	s.gen = lastGen.Add(1)
	req.gen = s.gen
	s.before = s.status
	s.status = next
	s.pending = &req
	return req
}

// Finish applies the outcome of req. It returns false, leaving the session
// untouched, when req is not the session's current request: it was
// cancelled, superseded, belongs to an older query, or the session is closed.
func (s *Session) Finish(req Request, out Outcome) bool {
	if s.closed || s.pending == nil || req.gen != s.gen {
		return false
	}
	if req.Kind == PageRequest && req.QueryID != s.queryID {
		return false
	}
	s.pending = nil

	if out.Err != nil {
		s.status = Failed
		s.lastErr = &TransportError{Op: req.Kind.String(), Err: out.Err}
		failed := req
		s.failed = &failed
		return true
	}

	switch req.Kind {
	case SearchRequest:
		s.applySearch(out.Result)
	case PageRequest:
		s.results = append(s.results, out.Items...)
		s.currentPage++
	}
	s.status = Ready
	s.failed = nil
	s.lastErr = nil
	return true
}

func (s *Session) applySearch(res model.SearchResult) {
	if res.QueryID == 0 {
		s.queryID = 0
		s.currentPage = 0
		s.totalPages = 0
		s.results = nil
		return
	}
	s.queryID = res.QueryID
	s.currentPage = 1
	s.totalPages = max(res.Pages, 1)
	s.results = slices.Clone(res.Items)
}

// Cancel abandons the request in flight and returns the session to the
// state it was in before. A late outcome for that request is ignored.
func (s *Session) Cancel() error {
	if s.closed || s.pending == nil {
		return fmt.Errorf("%w: no request in flight", ErrInvalidState)
	}
	s.gen = lastGen.Add(1)
	s.pending = nil
	s.status = s.before
	return nil
}

// Close tears the session down. Every later outcome is ignored and every
// operation fails with ErrInvalidState.
func (s *Session) Close() {
	s.closed = true
	s.gen = lastGen.Add(1)
	s.pending = nil
}

// Submit runs a search synchronously.
func (s *Session) Submit(ctx context.Context, t Transport) error {
	req, err := s.BeginSubmit()
	if err != nil {
		return err
	}
	return s.run(ctx, t, req)
}

// FetchNextPage fetches the next page synchronously.
func (s *Session) FetchNextPage(ctx context.Context, t Transport) error {
	req, err := s.BeginNextPage()
	if err != nil {
		return err
	}
	return s.run(ctx, t, req)
}

func (s *Session) run(ctx context.Context, t Transport, req Request) error {
	out := req.Execute(ctx, t)
	if !s.Finish(req, out) {
		return nil
	}
	return s.Err()
}

package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"forum_search/internal/model"
	"forum_search/internal/session"
)

type fakeTransport struct {
	mu      sync.Mutex
	queries []string

	result model.SearchResult
	items  []model.ResultItem
	err    error

	// block makes every call wait for ctx to end.
	block   bool
	started chan struct{}
}

func (f *fakeTransport) wait(ctx context.Context) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if !f.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeTransport) Search(ctx context.Context, query string, _ []int) (model.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return model.SearchResult{}, err
	}
	return f.result, f.err
}

func (f *fakeTransport) FetchPage(ctx context.Context, _, _ int) ([]model.ResultItem, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.items, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func receive(t *testing.T, s *Scheduler) Completion {
	t.Helper()
	select {
	case c := <-s.Completions():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
	return Completion{}
}

func TestSchedulerDeliversCompletions(t *testing.T) {
	tr := &fakeTransport{
		result: model.SearchResult{QueryID: 7, Pages: 2, Items: []model.ResultItem{{ThreadTitle: "a"}}},
		items:  []model.ResultItem{{ThreadTitle: "b"}},
	}
	s := New(tr, discardLogger(), 2, time.Second)
	startScheduler(t, s)

	search := session.Request{Kind: session.SearchRequest, Query: "pancakes"}
	if err := s.Enqueue(Job{ChatID: 1, Request: search}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	c := receive(t, s)
	if diff := cmp.Diff(int64(1), c.ChatID); diff != "" {
		t.Errorf("chat id (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tr.result, c.Outcome.Result); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}

	page := session.Request{Kind: session.PageRequest, QueryID: 7, Page: 2}
	if err := s.Enqueue(Job{ChatID: 2, Request: page}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	c = receive(t, s)
	if diff := cmp.Diff(tr.items, c.Outcome.Items); diff != "" {
		t.Errorf("items (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, c.Request.Page); diff != "" {
		t.Errorf("request page (-want +got):\n%s", diff)
	}
}

func TestSchedulerAppliesOutcomeToSession(t *testing.T) {
	tr := &fakeTransport{result: model.SearchResult{QueryID: 9, Pages: 1}}
	s := New(tr, discardLogger(), 1, time.Second)
	startScheduler(t, s)

	sess := session.New()
	if err := sess.SetFreeText("crepes"); err != nil {
		t.Fatalf("set text: %v", err)
	}
	req, err := sess.BeginSubmit()
	if err != nil {
		t.Fatalf("begin submit: %v", err)
	}
	if err := s.Enqueue(Job{ChatID: 1, Request: req}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	c := receive(t, s)
	if !sess.Finish(c.Request, c.Outcome) {
		t.Fatal("outcome was not applied")
	}
	if diff := cmp.Diff(session.Ready, sess.Status()); diff != "" {
		t.Errorf("status (-want +got):\n%s", diff)
	}
	qid, ok := sess.QueryID()
	if !ok || qid != 9 {
		t.Errorf("QueryID() = %d, %v; want 9, true", qid, ok)
	}
}

func TestSchedulerReportsErrors(t *testing.T) {
	wantErr := errors.New("boom")
	tr := &fakeTransport{err: wantErr}
	s := New(tr, discardLogger(), 1, time.Second)
	startScheduler(t, s)

	if err := s.Enqueue(Job{ChatID: 1, Request: session.Request{Kind: session.SearchRequest, Query: "x"}}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	c := receive(t, s)
	if !errors.Is(c.Outcome.Err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, c.Outcome.Err)
	}
}

func TestSchedulerTimeout(t *testing.T) {
	tr := &fakeTransport{block: true}
	s := New(tr, discardLogger(), 1, 20*time.Millisecond)
	startScheduler(t, s)

	if err := s.Enqueue(Job{ChatID: 1, Request: session.Request{Kind: session.SearchRequest, Query: "x"}}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	c := receive(t, s)
	if !errors.Is(c.Outcome.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", c.Outcome.Err)
	}
}

func TestSchedulerAbort(t *testing.T) {
	tr := &fakeTransport{block: true, started: make(chan struct{}, 1)}
	s := New(tr, discardLogger(), 1, 0)
	startScheduler(t, s)

	if err := s.Enqueue(Job{ChatID: 5, Request: session.Request{Kind: session.SearchRequest, Query: "x"}}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-tr.started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	s.Abort(99) // other chats are unaffected
	s.Abort(5)

	c := receive(t, s)
	if !errors.Is(c.Outcome.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", c.Outcome.Err)
	}
}

func TestEnqueueBusy(t *testing.T) {
	s := New(&fakeTransport{}, discardLogger(), 1, time.Second)

	// Not running, so nothing drains the queue.
	capacity := cap(s.jobs)
	for i := range capacity {
		if err := s.Enqueue(Job{ChatID: int64(i)}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := s.Enqueue(Job{ChatID: 100}); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(&fakeTransport{}, discardLogger(), 3, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

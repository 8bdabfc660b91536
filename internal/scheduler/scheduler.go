// Package scheduler runs session requests against the forum on a pool of
// workers and hands their outcomes back to the owner of the sessions.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"forum_search/internal/session"
)

// ErrBusy is returned by Enqueue when the job queue is full.
var ErrBusy = errors.New("search queue is full")

// Job is a request issued by the session of a chat.
type Job struct {
	ChatID  int64
	Request session.Request
}

// Completion carries the outcome of a Job back to its chat.
type Completion struct {
	ChatID  int64
	Request session.Request
	Outcome session.Outcome
}

// Scheduler executes jobs concurrently. Sessions are never touched here:
// outcomes are delivered on Completions and applied by the caller.
type Scheduler struct {
	transport session.Transport
	log       *slog.Logger
	workers   int
	timeout   time.Duration

	jobs chan Job
	done chan Completion

	mu       sync.Mutex
	inflight map[int64]*running
}

type running struct {
	cancel context.CancelFunc
}

// New creates a Scheduler with the given number of workers. Each job gets
// timeout to finish; zero means no limit.
func New(transport session.Transport, log *slog.Logger, workers int, timeout time.Duration) *Scheduler {
	workers = max(workers, 1)
	return &Scheduler{
		transport: transport,
		log:       log,
		workers:   workers,
		timeout:   timeout,
		jobs:      make(chan Job, workers*4),
		done:      make(chan Completion, workers*4),
		inflight:  make(map[int64]*running),
	}
}

// Enqueue queues job without blocking.
func (s *Scheduler) Enqueue(job Job) error {
	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrBusy
	}
}

// Abort cancels the job currently running for chatID, if any. Its
// completion is still delivered, carrying the cancellation error.
func (s *Scheduler) Abort(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.inflight[chatID]; ok {
		r.cancel()
		delete(s.inflight, chatID)
	}
}

// Completions returns the channel on which job outcomes are delivered.
func (s *Scheduler) Completions() <-chan Completion {
	return s.done
}

// Run starts the workers, blocking until ctx is cancelled and every worker
// has returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work(ctx)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			c := Completion{ChatID: job.ChatID, Request: job.Request, Outcome: s.execute(ctx, job)}
			select {
			case s.done <- c:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job) session.Outcome {
	var cancel context.CancelFunc
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// A chat may have a cancelled job still winding down while its
	// replacement starts; only the newest one is abortable.
	r := &running{cancel: cancel}
	s.mu.Lock()
	s.inflight[job.ChatID] = r
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.inflight[job.ChatID] == r {
			delete(s.inflight, job.ChatID)
		}
		s.mu.Unlock()
	}()

	start := time.Now()
	s.log.Debug("executing request", "chat_id", job.ChatID, "kind", job.Request.Kind,
		"query_id", job.Request.QueryID, "page", job.Request.Page)

	out := job.Request.Execute(ctx, s.transport)
	if out.Err != nil {
		s.log.Warn("request failed", "chat_id", job.ChatID, "kind", job.Request.Kind,
			"duration", time.Since(start), "error", out.Err)
		return out
	}
	s.log.Info("request done", "chat_id", job.ChatID, "kind", job.Request.Kind,
		"query_id", out.Result.QueryID, "duration", time.Since(start))
	return out
}

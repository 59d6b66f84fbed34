package web

import (
	"context"
	"sync"
	"time"

	"github.com/dukex/convoflow/pkg/engine"
)

// DefaultRunRetention is how long an ended run stays readable before it is evicted.
const DefaultRunRetention = 15 * time.Minute

// Runs keeps the simulated runs started through the API, by run id.
// Ended runs are evicted once they are older than the retention.
type Runs struct {
	mu        sync.RWMutex
	runs      map[string]*engine.Run
	retention time.Duration
	now       func() time.Time
}

func NewRuns() *Runs {
	return NewRunsWithRetention(DefaultRunRetention)
}

func NewRunsWithRetention(retention time.Duration) *Runs {
	return &Runs{
		runs:      make(map[string]*engine.Run),
		retention: retention,
		now:       time.Now,
	}
}

// Add registers run and evicts expired ones.
func (r *Runs) Add(run *engine.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpired()
	r.runs[run.ID()] = run
}

func (r *Runs) Get(id string) (*engine.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok || r.expired(run) {
		return nil, ErrRunNotFound
	}

	return run, nil
}

func (r *Runs) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.runs)
}

// Remove resets a run, interrupting any step in flight, and forgets it.
func (r *Runs) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	run, ok := r.runs[id]
	delete(r.runs, id)
	r.mu.Unlock()

	if !ok {
		return ErrRunNotFound
	}

	run.Reset(ctx)

	return nil
}

// Close resets every run.
func (r *Runs) Close(ctx context.Context) {
	r.mu.Lock()
	runs := r.runs
	r.runs = make(map[string]*engine.Run)
	r.mu.Unlock()

	for _, run := range runs {
		run.Reset(ctx)
	}
}

func (r *Runs) evictExpired() {
	for id, run := range r.runs {
		if r.expired(run) {
			delete(r.runs, id)
		}
	}
}

func (r *Runs) expired(run *engine.Run) bool {
	endedAt, ended := run.EndedAt()

	return ended && r.now().Sub(endedAt) > r.retention
}

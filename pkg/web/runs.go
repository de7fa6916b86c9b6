package web

import (
	"sync"
	"time"

	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/engine"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// run is one generation started through the web frontend. Events are kept
// so late websocket clients replay the whole run.
type run struct {
	id      string
	params  content.Params
	started time.Time

	mu      sync.Mutex
	events  []engine.Event
	changed chan struct{} // closed and replaced on every change
	status  string
	result  engine.Result
	err     error
}

func newRun(id string, params content.Params, now time.Time) *run {
	return &run{
		id:      id,
		params:  params,
		started: now,
		changed: make(chan struct{}),
		status:  StatusRunning,
	}
}

func (r *run) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *run) appendEvent(e engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
	r.notifyLocked()
}

func (r *run) finish(res engine.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.result = res
	r.err = err
	if err != nil {
		r.status = StatusFailed
	} else {
		r.status = StatusSucceeded
	}
	r.notifyLocked()
}

// since returns the events from index i on, whether the run is finished and
// a channel closed on the next change.
func (r *run) since(i int) ([]engine.Event, bool, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var events []engine.Event
	if i < len(r.events) {
		events = append(events, r.events[i:]...)
	}
	return events, r.status != StatusRunning, r.changed
}

type runSnapshot struct {
	ID      string
	Params  content.Params
	Started time.Time
	Status  string
	Result  engine.Result
	Err     error
}

func (r *run) snapshot() runSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return runSnapshot{
		ID:      r.id,
		Params:  r.params,
		Started: r.started,
		Status:  r.status,
		Result:  r.result,
		Err:     r.err,
	}
}

func (r *run) finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status != StatusRunning
}

// runStore keeps runs in memory. Once more than max runs are held, the
// oldest finished ones are evicted.
type runStore struct {
	mu    sync.Mutex
	runs  map[string]*run
	order []string
	max   int
}

func newRunStore(maxRuns int) *runStore {
	return &runStore{
		runs: make(map[string]*run),
		max:  maxRuns,
	}
}

func (s *runStore) add(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[r.id] = r
	s.order = append(s.order, r.id)

	if len(s.order) <= s.max {
		return
	}

	kept := s.order[:0]
	excess := len(s.order) - s.max
	for _, id := range s.order {
		if excess > 0 && s.runs[id].finished() {
			delete(s.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *runStore) get(id string) (*run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	return r, ok
}

func (s *runStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

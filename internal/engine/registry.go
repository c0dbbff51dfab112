package engine

import (
	"sort"
	"sync"
	"time"
)

// defaultKeepFinished caps how many terminal sessions stay listed. A
// just-finished run remains inspectable; a long-lived process does not
// accumulate every run it ever made.
const defaultKeepFinished = 50

// Registry tracks the sessions a process has started, for the status
// surface. Running sessions are always listed; finished ones are kept up to
// the retention cap, oldest evicted first.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	keepFinished int
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		keepFinished: defaultKeepFinished,
	}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	r.pruneLocked()
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Snapshots returns a copy of every tracked session, newest first.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	snaps := make([]Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		snaps = append(snaps, s.Snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartedAt.After(snaps[j].StartedAt)
	})
	return snaps
}

func (r *Registry) pruneLocked() {
	type finished struct {
		id string
		at time.Time
	}
	var done []finished
	for id, s := range r.sessions {
		snap := s.Snapshot()
		if snap.State.Terminal() && snap.FinishedAt != nil {
			done = append(done, finished{id: id, at: *snap.FinishedAt})
		}
	}
	if len(done) <= r.keepFinished {
		return
	}
	sort.Slice(done, func(i, j int) bool { return done[i].at.Before(done[j].at) })
	for _, f := range done[:len(done)-r.keepFinished] {
		delete(r.sessions, f.id)
	}
}

package session

import (
	"sync"
	"time"

	"github.com/yberthe/call-triage/internal/triage"
	"github.com/yberthe/call-triage/pkg/logger"
)

// Store owns the callID → Context map. All fact and history mutation goes
// through the per-call serialization point (entry.procMu): utterances for
// one call are processed strictly in arrival order while distinct calls
// proceed in parallel. End removes the context synchronously; an in-flight
// handler whose collaborator call returns after End observes the closed flag
// and discards its result.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *logger.Logger
}

type entry struct {
	// procMu serializes Handle runs for this call. It is held across
	// collaborator calls so merge order matches arrival order.
	procMu sync.Mutex
	// stateMu guards ctx and closed for short reads (snapshots, End).
	stateMu sync.Mutex
	ctx     *Context
	closed  bool
}

// NewStore creates an empty session store.
func NewStore(log *logger.Logger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		logger:  log.Named("session-store"),
	}
}

// checkout returns the entry for a call, creating the context on first
// use (an unknown call ID is never an error), with the per-call processing
// lock held. The caller must release it.
func (s *Store) checkout(callID string) *entry {
	s.mu.Lock()
	e, ok := s.entries[callID]
	if !ok {
		e = &entry{
			ctx: &Context{
				CallID:    callID,
				CreatedAt: time.Now().UTC(),
				Facts:     triage.NewCollectedFacts(),
			},
		}
		s.entries[callID] = e
		s.logger.Info("Created call context", logger.String("call_id", callID))
	}
	s.mu.Unlock()

	e.procMu.Lock()
	return e
}

func (e *entry) release() {
	e.procMu.Unlock()
}

// isClosed reports whether the call ended while the caller was suspended on
// a collaborator.
func (e *entry) isClosed() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.closed
}

// Snapshot returns the last computed triage snapshot for a call, or nil if
// the call is unknown or nothing has been classified yet.
func (s *Store) Snapshot(callID string) *TriageSnapshot {
	s.mu.RLock()
	e, ok := s.entries[callID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.closed {
		return nil
	}
	return e.ctx.lastSnapshot
}

// End removes a call context synchronously and returns it. It does not wait
// for in-flight processing: the closed flag makes any late collaborator
// result a no-op. Ending an unknown call returns nil.
func (s *Store) End(callID string) *Context {
	s.mu.Lock()
	e, ok := s.entries[callID]
	if ok {
		delete(s.entries, callID)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	e.stateMu.Lock()
	e.closed = true
	ctx := e.ctx
	e.stateMu.Unlock()

	s.logger.Info("Ended call context",
		logger.String("call_id", callID),
		logger.Int("messages", len(ctx.Messages)))
	return ctx
}

// Len returns the number of active calls.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

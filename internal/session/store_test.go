package session

import (
	"sync"
	"testing"
	"time"

	"github.com/yberthe/call-triage/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestStoreCheckoutCreatesContext(t *testing.T) {
	store := NewStore(testLogger(t))

	e := store.checkout("call-1")
	if e.ctx.CallID != "call-1" {
		t.Errorf("call ID = %q, want call-1", e.ctx.CallID)
	}
	if e.ctx.CreatedAt.IsZero() {
		t.Error("created-at should be set on first checkout")
	}
	e.release()

	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	// Second checkout returns the same entry.
	e2 := store.checkout("call-1")
	if e2 != e {
		t.Error("checkout should return the existing entry for a known call")
	}
	e2.release()
	if store.Len() != 1 {
		t.Errorf("Len() = %d after re-checkout, want 1", store.Len())
	}
}

func TestStoreEnd(t *testing.T) {
	store := NewStore(testLogger(t))

	if store.End("unknown") != nil {
		t.Error("ending an unknown call should return nil")
	}

	e := store.checkout("call-1")
	e.ctx.Messages = append(e.ctx.Messages, Message{Role: RoleCaller, Content: "allô", Timestamp: time.Now()})
	e.release()

	ctx := store.End("call-1")
	if ctx == nil {
		t.Fatal("End should return the removed context")
	}
	if len(ctx.Messages) != 1 {
		t.Errorf("returned context has %d messages, want 1", len(ctx.Messages))
	}
	if !e.isClosed() {
		t.Error("entry should be marked closed after End")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after End, want 0", store.Len())
	}

	// The call ID is free for reuse with a fresh context.
	e2 := store.checkout("call-1")
	if len(e2.ctx.Messages) != 0 {
		t.Error("re-created call should start with an empty history")
	}
	e2.release()
}

func TestStoreSnapshot(t *testing.T) {
	store := NewStore(testLogger(t))

	if store.Snapshot("unknown") != nil {
		t.Error("snapshot of an unknown call should be nil")
	}

	e := store.checkout("call-1")
	if store.Snapshot("call-1") != nil {
		t.Error("snapshot should be nil before any classification")
	}
	snap := &TriageSnapshot{CallID: "call-1", Score: 60}
	e.ctx.lastSnapshot = snap
	e.release()

	got := store.Snapshot("call-1")
	if got != snap {
		t.Errorf("Snapshot() = %+v, want the stored snapshot", got)
	}

	store.End("call-1")
	if store.Snapshot("call-1") != nil {
		t.Error("snapshot should be nil after the call ends")
	}
}

// Distinct calls must not serialize on each other: holding one call's
// processing lock cannot block another call.
func TestStoreCallsProceedInParallel(t *testing.T) {
	store := NewStore(testLogger(t))

	e1 := store.checkout("call-1")
	defer e1.release()

	done := make(chan struct{})
	go func() {
		e2 := store.checkout("call-2")
		e2.release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checkout of a second call blocked behind the first call's lock")
	}
}

// Same-call utterances serialize on the processing lock.
func TestStoreSameCallSerializes(t *testing.T) {
	store := NewStore(testLogger(t))

	e := store.checkout("call-1")

	var mu sync.Mutex
	var order []int
	go func() {
		e2 := store.checkout("call-1")
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		e2.release()
	}()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	e.release()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("second checkout never completed")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want the holder to finish before the waiter", order)
	}
}

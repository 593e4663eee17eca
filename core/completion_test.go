package tutoring

import (
	"sync"
	"testing"
	"time"

	"github.com/uncons/review-core/core/protocol"
)

type completionRecorder struct {
	mu    sync.Mutex
	stats []protocol.SessionStats
	fired chan struct{}
}

func newCompletionRecorder() *completionRecorder {
	return &completionRecorder{fired: make(chan struct{}, 8)}
}

func (r *completionRecorder) record(stats protocol.SessionStats) {
	r.mu.Lock()
	r.stats = append(r.stats, stats)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *completionRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stats)
}

func (r *completionRecorder) awaitFire(t *testing.T) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for completion to fire")
	}
}

func (r *completionRecorder) assertQuiet(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case <-r.fired:
		t.Fatalf("completion fired when it should have stayed staged")
	case <-time.After(window):
	}
}

func TestTransportCompletionWaitsForAgentSpeech(t *testing.T) {
	recorder := newCompletionRecorder()
	coordinator := NewCompletionCoordinator(recorder.record, WithGraceDelay(10*time.Millisecond))

	coordinator.HandleAgentSpeaking(true)
	coordinator.HandleSessionComplete(protocol.SessionStats{CardsReviewed: 10})

	recorder.assertQuiet(t, 50*time.Millisecond)

	coordinator.HandleAgentSpeaking(false)
	recorder.awaitFire(t)

	if recorder.stats[0].CardsReviewed != 10 {
		t.Fatalf("expected staged stats to be handed off, got %+v", recorder.stats[0])
	}
}

func TestTransportCompletionFiresAfterGraceWhenAgentSilent(t *testing.T) {
	recorder := newCompletionRecorder()
	coordinator := NewCompletionCoordinator(recorder.record, WithGraceDelay(10*time.Millisecond))

	coordinator.HandleSessionComplete(protocol.SessionStats{CardsReviewed: 3})
	recorder.awaitFire(t)

	if !coordinator.Completed() {
		t.Fatalf("expected coordinator to report completion")
	}
}

func TestResumedSpeechDisarmsGraceTimer(t *testing.T) {
	recorder := newCompletionRecorder()
	coordinator := NewCompletionCoordinator(recorder.record, WithGraceDelay(30*time.Millisecond))

	coordinator.HandleSessionComplete(protocol.SessionStats{})
	coordinator.HandleAgentSpeaking(true)

	recorder.assertQuiet(t, 60*time.Millisecond)

	coordinator.HandleAgentSpeaking(false)
	recorder.awaitFire(t)
}

func TestTransportCompletionRunsTeardown(t *testing.T) {
	recorder := newCompletionRecorder()
	coordinator := NewCompletionCoordinator(recorder.record, WithGraceDelay(time.Millisecond))

	torndown := make(chan struct{})
	coordinator.SetTeardown(func() { close(torndown) })

	coordinator.HandleSessionComplete(protocol.SessionStats{})

	recorder.awaitFire(t)
	select {
	case <-torndown:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for teardown")
	}
}

func TestLifecycleCompletionFiresImmediately(t *testing.T) {
	recorder := newCompletionRecorder()
	coordinator := NewCompletionCoordinator(recorder.record)

	teardowns := 0
	coordinator.SetTeardown(func() { teardowns++ })

	coordinator.HandleLifecycleComplete(protocol.SessionStats{CardsReviewed: 7})

	if recorder.count() != 1 {
		t.Fatalf("expected immediate handoff, got %d", recorder.count())
	}
	if teardowns != 0 {
		t.Fatalf("expected no teardown on the lifecycle path, got %d", teardowns)
	}
}

func TestCompletionLatchesExactlyOnce(t *testing.T) {
	recorder := newCompletionRecorder()
	coordinator := NewCompletionCoordinator(recorder.record, WithGraceDelay(5*time.Millisecond))

	coordinator.HandleLifecycleComplete(protocol.SessionStats{CardsReviewed: 1})
	recorder.awaitFire(t)

	// Signals after the latch are ignored, including a staged transport
	// completion racing in behind the lifecycle one.
	coordinator.HandleSessionComplete(protocol.SessionStats{CardsReviewed: 2})
	coordinator.HandleAgentSpeaking(false)
	coordinator.HandleLifecycleComplete(protocol.SessionStats{CardsReviewed: 3})

	recorder.assertQuiet(t, 30*time.Millisecond)
	if recorder.count() != 1 {
		t.Fatalf("expected exactly one handoff, got %d", recorder.count())
	}
	if recorder.stats[0].CardsReviewed != 1 {
		t.Fatalf("expected the first signal to win, got %+v", recorder.stats[0])
	}
}

func TestRepeatedTransportCompletionsStageOnce(t *testing.T) {
	recorder := newCompletionRecorder()
	coordinator := NewCompletionCoordinator(recorder.record, WithGraceDelay(5*time.Millisecond))

	coordinator.HandleSessionComplete(protocol.SessionStats{CardsReviewed: 4})
	coordinator.HandleSessionComplete(protocol.SessionStats{CardsReviewed: 9})

	recorder.awaitFire(t)
	recorder.assertQuiet(t, 30*time.Millisecond)

	if recorder.stats[0].CardsReviewed != 4 {
		t.Fatalf("expected the first staged stats to win, got %+v", recorder.stats[0])
	}
}

func TestCloseDisarmsPendingCompletion(t *testing.T) {
	recorder := newCompletionRecorder()
	coordinator := NewCompletionCoordinator(recorder.record, WithGraceDelay(10*time.Millisecond))

	coordinator.HandleSessionComplete(protocol.SessionStats{})
	coordinator.Close()

	recorder.assertQuiet(t, 50*time.Millisecond)
	if coordinator.Completed() {
		t.Fatalf("expected no completion after close")
	}
}

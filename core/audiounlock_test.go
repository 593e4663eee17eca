package tutoring

import (
	"fmt"
	"testing"
)

func TestAudioUnlockRetriesQueuedAttemptsOnce(t *testing.T) {
	queue := newAudioUnlockQueue()

	attempts := 0
	if !queue.Enqueue(func() error { attempts++; return nil }) {
		t.Fatalf("expected enqueue to be accepted before unlock")
	}

	queue.Unlock()
	if attempts != 1 {
		t.Fatalf("expected queued attempt to be retried once, got %d", attempts)
	}

	// A second unlock must not replay anything.
	queue.Unlock()
	if attempts != 1 {
		t.Fatalf("expected no replay on repeated unlock, got %d attempts", attempts)
	}
}

func TestAudioUnlockDropsFailedRetries(t *testing.T) {
	queue := newAudioUnlockQueue()

	attempts := 0
	queue.Enqueue(func() error { attempts++; return fmt.Errorf("still blocked") })
	queue.Unlock()

	if attempts != 1 {
		t.Fatalf("expected failed retry to run once, got %d", attempts)
	}

	// The failed entry is dropped, not re-queued: resetting and unlocking
	// again must not run it a second time.
	queue.Reset()
	queue.Unlock()
	if attempts != 1 {
		t.Fatalf("expected failed retry to be dropped, got %d attempts", attempts)
	}
}

func TestAudioUnlockWindowClosesAfterFirstGesture(t *testing.T) {
	queue := newAudioUnlockQueue()

	queue.Unlock()
	if !queue.Unlocked() {
		t.Fatalf("expected queue to report unlocked after first gesture")
	}

	ran := false
	if queue.Enqueue(func() error { ran = true; return nil }) {
		t.Fatalf("expected enqueue to be rejected after the unlock window closed")
	}
	queue.Unlock()
	if ran {
		t.Fatalf("expected rejected entry to never run")
	}
}

func TestAudioUnlockResetReopensWindow(t *testing.T) {
	queue := newAudioUnlockQueue()

	queue.Unlock()
	queue.Reset()

	if queue.Unlocked() {
		t.Fatalf("expected reset to reopen the unlock window")
	}

	ran := false
	if !queue.Enqueue(func() error { ran = true; return nil }) {
		t.Fatalf("expected enqueue to be accepted after reset")
	}
	queue.Unlock()
	if !ran {
		t.Fatalf("expected entry queued after reset to be retried")
	}
}

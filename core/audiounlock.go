package tutoring

import "sync"

// audioUnlockQueue holds playback attempts that the environment's
// autoplay policy rejected before any user gesture. The first gesture on
// a connection drains the queue; after that the unlock window is closed
// and playback is assumed to start normally.
type audioUnlockQueue struct {
	mu       sync.Mutex
	unlocked bool
	pending  []func() error
}

func newAudioUnlockQueue() *audioUnlockQueue {
	return &audioUnlockQueue{}
}

// Enqueue records a failed playback start for a single retry on the next
// user gesture. Returns false once the unlock window has already closed.
func (q *audioUnlockQueue) Enqueue(retry func() error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unlocked {
		return false
	}
	q.pending = append(q.pending, retry)
	return true
}

// Unlock drains the queue, retrying each entry exactly once. Failures are
// logged and dropped, not re-queued. Unlocking is one-shot per
// connection: later calls are no-ops.
func (q *audioUnlockQueue) Unlock() {
	q.mu.Lock()
	if q.unlocked {
		q.mu.Unlock()
		return
	}
	q.unlocked = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, retry := range pending {
		if err := retry(); err != nil {
			logger.Warn("audio playback retry failed after unlock", "error", err)
		}
	}
}

func (q *audioUnlockQueue) Unlocked() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unlocked
}

// Reset reopens the unlock window for a fresh connection.
func (q *audioUnlockQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.unlocked = false
	q.pending = nil
}

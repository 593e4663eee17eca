package tutoring

import (
	"sync"
	"time"

	"github.com/uncons/review-core/core/protocol"
)

// completionGraceDelay is how long after the agent's closing audio the
// coordinator keeps the connection alive, so the tail of the speech is
// not clipped.
const completionGraceDelay = 500 * time.Millisecond

// CompletionCoordinator funnels the two "session finished" signals into a
// single handoff. The transport's session_complete stages the final stats
// and waits for the agent to finish speaking plus a grace delay before
// tearing the connection down; an explicit end through the REST lifecycle
// hands off immediately. Whichever path latches first wins, the other is
// ignored.
type CompletionCoordinator struct {
	mu sync.Mutex

	onComplete func(stats protocol.SessionStats)
	teardown   func()

	latched       bool
	staged        bool
	stagedStats   protocol.SessionStats
	agentSpeaking bool
	graceTimer    *time.Timer
	graceDelay    time.Duration
	closed        bool
}

type CoordinatorOption func(*CompletionCoordinator)

// WithGraceDelay overrides the post-speech grace delay.
func WithGraceDelay(delay time.Duration) CoordinatorOption {
	return func(c *CompletionCoordinator) { c.graceDelay = delay }
}

func NewCompletionCoordinator(onComplete func(stats protocol.SessionStats), opts ...CoordinatorOption) *CompletionCoordinator {
	coordinator := &CompletionCoordinator{
		onComplete: onComplete,
		graceDelay: completionGraceDelay,
	}
	for _, opt := range opts {
		opt(coordinator)
	}
	return coordinator
}

// SetTeardown registers the transport teardown to run when the staged
// completion fires. Kept as a settable reference so the coordinator can
// be created before the connection exists.
func (c *CompletionCoordinator) SetTeardown(teardown func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardown = teardown
}

// HandleSessionComplete stages the transport's completion signal. The
// handoff is deferred until the agent's closing speech has played out.
func (c *CompletionCoordinator) HandleSessionComplete(stats protocol.SessionStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latched || c.staged || c.closed {
		return
	}
	c.staged = true
	c.stagedStats = stats
	if !c.agentSpeaking {
		c.scheduleGraceLocked()
	}
}

// HandleAgentSpeaking tracks the agent's speech. Silence arms the grace
// timer when a completion is staged; resumed speech disarms it.
func (c *CompletionCoordinator) HandleAgentSpeaking(speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.agentSpeaking = speaking
	if speaking {
		c.cancelGraceLocked()
		return
	}
	if c.staged && !c.latched && !c.closed {
		c.scheduleGraceLocked()
	}
}

// HandleLifecycleComplete latches a completion that arrived through the
// REST lifecycle. The session was ended deliberately, so there is no
// closing speech to wait for and no transport teardown to run here.
func (c *CompletionCoordinator) HandleLifecycleComplete(stats protocol.SessionStats) {
	c.mu.Lock()
	if c.latched || c.closed {
		c.mu.Unlock()
		return
	}
	c.latched = true
	c.cancelGraceLocked()
	onComplete := c.onComplete
	c.mu.Unlock()

	if onComplete != nil {
		onComplete(stats)
	}
}

// Completed reports whether a completion has been handed off.
func (c *CompletionCoordinator) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latched
}

// Close disarms any pending completion. Used when the surface owning the
// coordinator goes away before the session finishes.
func (c *CompletionCoordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.cancelGraceLocked()
}

func (c *CompletionCoordinator) scheduleGraceLocked() {
	if c.graceTimer != nil {
		return
	}
	c.graceTimer = time.AfterFunc(c.graceDelay, c.fireStaged)
}

func (c *CompletionCoordinator) cancelGraceLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

func (c *CompletionCoordinator) fireStaged() {
	c.mu.Lock()
	if c.latched || c.closed {
		c.mu.Unlock()
		return
	}
	c.latched = true
	c.graceTimer = nil
	stats := c.stagedStats
	onComplete := c.onComplete
	teardown := c.teardown
	c.mu.Unlock()

	if onComplete != nil {
		onComplete(stats)
	}
	if teardown != nil {
		teardown()
	}
}

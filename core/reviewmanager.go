package tutoring

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jinzhu/copier"
	"go.opentelemetry.io/otel/codes"

	"github.com/uncons/review-core/core/restapi"
)

// LifecycleState is the review session's REST-side lifecycle.
type LifecycleState string

const (
	StateIdle     LifecycleState = "idle"
	StateLoading  LifecycleState = "loading"
	StateActive   LifecycleState = "active"
	StateEnding   LifecycleState = "ending"
	StateComplete LifecycleState = "complete"
	StateError    LifecycleState = "error"
)

var (
	// ErrSessionInProgress is returned by Start while a session is
	// already loading, active, or ending.
	ErrSessionInProgress = errors.New("a review session is already in progress")
	// ErrNoActiveSession is returned by End when there is no active
	// session to end.
	ErrNoActiveSession = errors.New("no active review session")
)

// ReviewAPI is the slice of the session API the manager depends on.
type ReviewAPI interface {
	StartSession(ctx context.Context, deckName string) (*restapi.StartSessionResponse, error)
	EndSession(ctx context.Context, sessionID string) (*restapi.EndSessionResponse, error)
	SessionExists(ctx context.Context) (bool, error)
	CurrentSession(ctx context.Context) (*restapi.CurrentSessionResponse, error)
	ForceEndSessions(ctx context.Context) (*restapi.ForceEndResponse, error)
}

// SessionSnapshot is a detached copy of the manager's visible state, safe
// to hold across later mutations.
type SessionSnapshot struct {
	State         LifecycleState
	SessionID     string
	DeckName      string
	Recovered     bool
	CurrentCard   *restapi.CardResponse
	CardsReviewed int
	Remaining     int
}

// ReviewSessionManager owns the REST side of a review session: starting
// and ending it, recovering one left behind by a previous process, and
// walking the served card list.
type ReviewSessionManager struct {
	mu  sync.Mutex
	api ReviewAPI

	state     LifecycleState
	errorText string

	sessionID string
	deckName  string
	recovered bool

	cards     []restapi.CardResponse
	cardIndex int
	dueCount  int

	// Recovered sessions are not re-served the card list; these carry
	// the server's counters instead.
	recoveredReviewed  int
	recoveredRemaining int
	recoveredCard      *restapi.CardResponse

	stats   *restapi.SessionStatsResponse
	warning string
}

func NewReviewSessionManager(api ReviewAPI) *ReviewSessionManager {
	return &ReviewSessionManager{
		api:   api,
		state: StateIdle,
	}
}

// Start creates a new session for the named deck. Only one session may be
// in flight; finished and failed sessions are implicitly reset.
func (m *ReviewSessionManager) Start(ctx context.Context, deckName string) error {
	ctx, span := tracer.Start(ctx, "start review session")
	defer span.End()

	m.mu.Lock()
	if m.state == StateLoading || m.state == StateActive || m.state == StateEnding {
		m.mu.Unlock()
		return ErrSessionInProgress
	}
	m.resetLocked()
	m.state = StateLoading
	m.mu.Unlock()

	resp, err := m.api.StartSession(ctx, deckName)
	if err != nil {
		err = fmt.Errorf("failed to start review session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "session start failed")
		m.failWith(err)
		return err
	}

	m.mu.Lock()
	m.state = StateActive
	m.sessionID = resp.SessionID
	m.deckName = resp.DeckName
	m.cards = resp.Cards
	m.cardIndex = 0
	m.dueCount = resp.DueCount
	m.mu.Unlock()

	if resp.RecoveredRatings > 0 {
		logger.Info("session start recovered unsynced ratings", "count", resp.RecoveredRatings)
	}
	return nil
}

// Recover adopts a session left active by a previous process. It probes
// first so the common no-session case stays quiet, then fetches the
// detail. A not-found on the fetch means the session ended between the
// two calls; that race is benign and reports as no session.
func (m *ReviewSessionManager) Recover(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "recover review session")
	defer span.End()

	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return false, ErrSessionInProgress
	}
	m.mu.Unlock()

	exists, err := m.api.SessionExists(ctx)
	if err != nil {
		err = fmt.Errorf("failed to probe for an active session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "session probe failed")
		m.failWith(err)
		return false, err
	}
	if !exists {
		return false, nil
	}

	m.mu.Lock()
	m.state = StateLoading
	m.mu.Unlock()

	resp, err := m.api.CurrentSession(ctx)
	if err != nil {
		if restapi.IsNotFound(err) {
			// The session ended between probe and fetch.
			m.mu.Lock()
			m.state = StateIdle
			m.mu.Unlock()
			return false, nil
		}
		err = fmt.Errorf("failed to fetch the active session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "session fetch failed")
		m.failWith(err)
		return false, err
	}

	m.mu.Lock()
	m.state = StateActive
	m.sessionID = resp.SessionID
	m.deckName = resp.DeckName
	m.recovered = true
	m.recoveredCard = resp.CurrentCard
	m.recoveredReviewed = resp.CardsReviewed
	m.recoveredRemaining = resp.RemainingCount
	m.mu.Unlock()
	return true, nil
}

// End closes the active session and records its final stats. A sync
// warning from the server is kept alongside the stats, it does not fail
// the session.
func (m *ReviewSessionManager) End(ctx context.Context) (*restapi.SessionStatsResponse, error) {
	ctx, span := tracer.Start(ctx, "end review session")
	defer span.End()

	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	sessionID := m.sessionID
	m.state = StateEnding
	m.mu.Unlock()

	resp, err := m.api.EndSession(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("failed to end review session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "session end failed")
		m.failWith(err)
		return nil, err
	}

	m.mu.Lock()
	m.state = StateComplete
	stats := resp.Stats
	m.stats = &stats
	m.warning = resp.Warning
	m.mu.Unlock()

	if resp.Warning != "" {
		logger.Warn("session ended with a sync warning", "warning", resp.Warning)
	}
	return &stats, nil
}

// ForceEnd clears any active sessions server-side and resets the manager.
// It is the recovery hammer for a stuck SESSION_CONFLICT.
func (m *ReviewSessionManager) ForceEnd(ctx context.Context) error {
	resp, err := m.api.ForceEndSessions(ctx)
	if err != nil {
		logger.Warn("failed to force-end sessions", "error", err)
		return fmt.Errorf("failed to force-end sessions: %w", err)
	}

	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()

	logger.Info("force-ended sessions", "count", resp.EndedSessions)
	return nil
}

// Reset returns the manager to idle, dropping all session state.
func (m *ReviewSessionManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// CurrentCard returns the card under review, nil when none is available.
func (m *ReviewSessionManager) CurrentCard() *restapi.CardResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentCardLocked()
}

// NextCard advances to the next served card. The second return is false
// once the list is exhausted. Recovered sessions have no local list to
// advance; they follow the agent's card messages instead.
func (m *ReviewSessionManager) NextCard() (*restapi.CardResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recovered || m.cardIndex+1 >= len(m.cards) {
		m.cardIndex = len(m.cards)
		return nil, false
	}
	m.cardIndex++
	return m.currentCardLocked(), true
}

// Progress reports reviewed and remaining card counts. For sessions this
// process started they derive from position in the served list; for
// recovered sessions they come from the server's counters.
func (m *ReviewSessionManager) Progress() (reviewed, remaining int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recovered {
		return m.recoveredReviewed, m.recoveredRemaining
	}
	return m.cardIndex, len(m.cards) - m.cardIndex
}

// ProgressFraction reports review progress in [0, 1].
func (m *ReviewSessionManager) ProgressFraction() float64 {
	reviewed, remaining := m.Progress()
	total := reviewed + remaining
	if total == 0 {
		return 0
	}
	return float64(reviewed) / float64(total)
}

// State reports the lifecycle state.
func (m *ReviewSessionManager) State() LifecycleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID reports the active session's id, empty when idle.
func (m *ReviewSessionManager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// DeckName reports the deck under review.
func (m *ReviewSessionManager) DeckName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deckName
}

// DueCount reports how many cards the server said were due when the
// session started.
func (m *ReviewSessionManager) DueCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dueCount
}

// Stats returns the final stats once the session has ended.
func (m *ReviewSessionManager) Stats() *restapi.SessionStatsResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Warning returns the soft sync warning from ending, if any.
func (m *ReviewSessionManager) Warning() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warning
}

// ErrorText returns the message of the failure that put the manager in
// the error state.
func (m *ReviewSessionManager) ErrorText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorText
}

// Snapshot returns a detached copy of the visible session state.
func (m *ReviewSessionManager) Snapshot() SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := SessionSnapshot{
		State:     m.state,
		SessionID: m.sessionID,
		DeckName:  m.deckName,
		Recovered: m.recovered,
	}
	if m.recovered {
		snapshot.CardsReviewed = m.recoveredReviewed
		snapshot.Remaining = m.recoveredRemaining
	} else {
		snapshot.CardsReviewed = m.cardIndex
		snapshot.Remaining = len(m.cards) - m.cardIndex
	}
	if card := m.currentCardLocked(); card != nil {
		copied := restapi.CardResponse{}
		if err := copier.Copy(&copied, card); err == nil {
			snapshot.CurrentCard = &copied
		}
	}
	return snapshot
}

func (m *ReviewSessionManager) currentCardLocked() *restapi.CardResponse {
	if m.recovered {
		return m.recoveredCard
	}
	if m.cardIndex < len(m.cards) {
		return &m.cards[m.cardIndex]
	}
	return nil
}

func (m *ReviewSessionManager) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateError
	m.errorText = err.Error()
}

func (m *ReviewSessionManager) resetLocked() {
	m.state = StateIdle
	m.errorText = ""
	m.sessionID = ""
	m.deckName = ""
	m.recovered = false
	m.cards = nil
	m.cardIndex = 0
	m.dueCount = 0
	m.recoveredReviewed = 0
	m.recoveredRemaining = 0
	m.recoveredCard = nil
	m.stats = nil
	m.warning = ""
}

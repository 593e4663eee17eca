// Package tutoring orchestrates the client side of a voice-and-text
// tutoring review session: the real-time transport session, push-to-talk,
// the REST session lifecycle, and the completion handoff between the two.
package tutoring

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/codes"

	"github.com/uncons/review-core/core/protocol"
	"github.com/uncons/review-core/core/transport"
	"github.com/uncons/review-core/internal/utils"
)

var (
	// ErrTransportNotConfigured is returned by Connect when the session
	// has no dialer to reach the room with.
	ErrTransportNotConfigured = errors.New("transport endpoint not configured")
	// ErrConnectionActive is returned by Connect while a previous
	// connection attempt is still connecting or connected.
	ErrConnectionActive = errors.New("connection already active")
	// ErrNotConnected is returned by outbound commands when there is no
	// live connection to publish on.
	ErrNotConnected = errors.New("no active connection")
)

// PTTState tracks push-to-talk as the session believes it to be. The
// recording flag flips optimistically on local commands and is overwritten
// by the server's confirmations.
type PTTState struct {
	IsPTTMode   bool
	IsRecording bool
}

// TransportSession owns one real-time connection to the tutoring room: the
// connect/disconnect lifecycle, outbound commands, and dispatch of inbound
// data messages to per-connection callbacks.
type TransportSession struct {
	mu sync.Mutex

	dialer   transport.Dialer
	capture  AudioCapture
	playback AudioPlayback

	status    transport.Status
	conn      transport.Conn
	callbacks connectCallbacks

	dedup  *dedupCache
	unlock *audioUnlockQueue

	ptt   PTTState
	muted bool

	// Per-connection view state, cleared on every connect and disconnect.
	lastRating      *int
	progress        protocol.Progress
	showingResult   bool
	pendingCardBack string
	completed       bool

	playbackStarted bool
	playbackQueued  bool
}

func NewTransportSession(opts ...SessionOption) *TransportSession {
	session := &TransportSession{
		status: transport.StatusDisconnected,
		dedup:  newDedupCache(dedupCacheCapacity),
		unlock: newAudioUnlockQueue(),
	}
	for _, opt := range opts {
		opt(session)
	}
	return session
}

// SetDialer replaces the transport endpoint. The endpoint is often only
// known after a token grant, so it may be set between connections; it
// must not change while a connection is active.
func (s *TransportSession) SetDialer(dialer transport.Dialer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialer = dialer
}

// Connect dials the room with the given access token. The attempt moves
// the session through connecting to connected, or to error when the dial
// fails. Only one connection may be active at a time.
func (s *TransportSession) Connect(ctx context.Context, token string, opts ...ConnectOption) error {
	options := ConnectOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "connect transport session")
	defer span.End()

	s.mu.Lock()
	if s.status == transport.StatusConnecting || s.status == transport.StatusConnected {
		s.mu.Unlock()
		return ErrConnectionActive
	}
	if s.dialer == nil {
		s.status = transport.StatusError
		s.callbacks = options.callbacks
		s.mu.Unlock()
		span.RecordError(ErrTransportNotConfigured)
		span.SetStatus(codes.Error, "transport session misconfigured")
		s.notifyStatus(transport.StatusError)
		return ErrTransportNotConfigured
	}
	s.status = transport.StatusConnecting
	s.callbacks = options.callbacks
	s.mu.Unlock()
	s.notifyStatus(transport.StatusConnecting)

	dialOpts := []transport.DialOption{}
	if options.RoomName != "" {
		dialOpts = append(dialOpts, transport.WithRoom(options.RoomName))
	}
	if options.ParticipantName != "" {
		dialOpts = append(dialOpts, transport.WithParticipantName(options.ParticipantName))
	}

	conn, err := s.dialer.Dial(ctx, token, transport.Callbacks{
		OnData:            s.handleData,
		OnAudioFrame:      s.handleAudioFrame,
		OnAudioTrackEnded: s.handleAudioTrackEnded,
		OnDisconnected:    s.handleDisconnected,
	}, dialOpts...)
	if err != nil {
		err = fmt.Errorf("failed to dial room: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport dial failed")
		s.mu.Lock()
		s.status = transport.StatusError
		s.mu.Unlock()
		s.notifyStatus(transport.StatusError)
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.resetConnectionViewLocked()
	s.dedup.Reset()
	s.unlock.Reset()
	s.ptt = PTTState{IsPTTMode: options.PTTMode}
	s.muted = true
	s.status = transport.StatusConnected
	s.mu.Unlock()
	s.notifyStatus(transport.StatusConnected)

	if options.EnableMicrophone && !options.PTTMode {
		if err := s.enableMicrophone(ctx); err != nil {
			logger.Warn("failed to start continuous microphone capture", "error", err)
		} else {
			s.mu.Lock()
			s.muted = false
			s.mu.Unlock()
		}
	}

	if options.DeckName != "" || options.SessionID != "" {
		if err := s.publish(ctx, protocol.NewInitSession(options.DeckName, options.SessionID)); err != nil {
			logger.Warn("failed to announce session to agent", "error", err)
		}
	}
	return nil
}

// Disconnect tears the connection down and clears all per-connection
// state. It is safe to call at any time, including when the session is
// already disconnected.
func (s *TransportSession) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	alreadyDown := conn == nil && s.status == transport.StatusDisconnected
	s.conn = nil
	s.status = transport.StatusDisconnected
	s.resetConnectionViewLocked()
	s.ptt = PTTState{}
	s.muted = false
	s.mu.Unlock()

	if alreadyDown {
		return
	}

	s.dedup.Reset()
	s.unlock.Reset()
	if s.capture != nil {
		if err := s.capture.StopCapture(); err != nil {
			logger.Warn("failed to stop microphone capture", "error", err)
		}
	}
	if s.playback != nil {
		s.playback.ClearBuffer()
		if err := s.playback.StopPlayback(); err != nil {
			logger.Warn("failed to stop audio playback", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Warn("failed to close room connection", "error", err)
		}
	}
	s.notifyStatus(transport.StatusDisconnected)
}

// Status reports the current connection status.
func (s *TransportSession) Status() transport.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PTT reports the session's current push-to-talk state.
func (s *TransportSession) PTT() PTTState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ptt
}

// IsMuted reports whether microphone audio is currently withheld.
func (s *TransportSession) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Progress reports the latest review progress received on this connection.
func (s *TransportSession) Progress() protocol.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// LastRating reports the rating of the previously graded card, nil when
// no card has been graded on this connection yet.
func (s *TransportSession) LastRating() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRating == nil {
		return nil
	}
	return utils.Ptr(*s.lastRating)
}

// ShowingResult reports whether the current card's back side has been
// exposed, either by grading or by giving up.
func (s *TransportSession) ShowingResult() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showingResult
}

// PendingCardBack returns the revealed back of the current card, empty
// until a grading result or reveal arrives.
func (s *TransportSession) PendingCardBack() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingCardBack
}

// Completed reports whether the transport announced session completion on
// this connection.
func (s *TransportSession) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// NotifyUserGesture reports a user gesture to the session, releasing any
// playback attempts held back by the environment's autoplay policy.
func (s *TransportSession) NotifyUserGesture() {
	s.unlock.Unlock()
}

// SendTextInput publishes a typed answer to the agent.
func (s *TransportSession) SendTextInput(ctx context.Context, text string) error {
	return s.publish(ctx, protocol.NewUserTextInput(text))
}

// AskQuestion publishes a free-form question about the current card.
func (s *TransportSession) AskQuestion(ctx context.Context, text string) error {
	return s.publish(ctx, protocol.NewUserQuestion(text))
}

// RequestHint asks the agent for a hint on the current card.
func (s *TransportSession) RequestHint(ctx context.Context) error {
	return s.publish(ctx, protocol.NewHint())
}

// GiveUp concedes the current card and asks for the answer.
func (s *TransportSession) GiveUp(ctx context.Context) error {
	return s.publish(ctx, protocol.NewGiveUp())
}

// RequestMnemonic asks the agent to produce a memory aid for the current
// card.
func (s *TransportSession) RequestMnemonic(ctx context.Context) error {
	return s.publish(ctx, protocol.NewMnemonicRequest())
}

func (s *TransportSession) publish(ctx context.Context, msg protocol.Message) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	payload, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s command: %w", msg.Type(), err)
	}
	if err := conn.PublishData(ctx, protocol.TopicUserInput, payload); err != nil {
		return fmt.Errorf("failed to publish %s command: %w", msg.Type(), err)
	}
	return nil
}

func (s *TransportSession) enableMicrophone(ctx context.Context) error {
	if s.capture == nil {
		return nil
	}
	return s.capture.StartCapture(ctx, func(audio []byte) {
		s.mu.Lock()
		conn := s.conn
		muted := s.muted
		s.mu.Unlock()
		if conn == nil || muted {
			return
		}
		if err := conn.SendAudio(audio); err != nil {
			logger.Debug("failed to send microphone audio", "error", err)
		}
	})
}

func (s *TransportSession) disableMicrophone() error {
	if s.capture == nil {
		return nil
	}
	return s.capture.StopCapture()
}

func (s *TransportSession) handleAudioFrame(audio []byte) {
	if s.playback == nil {
		return
	}

	s.mu.Lock()
	started := s.playbackStarted
	queued := s.playbackQueued
	s.mu.Unlock()

	if !started {
		if err := s.playback.StartPlayback(); err != nil {
			if queued {
				return
			}
			accepted := s.unlock.Enqueue(func() error {
				if err := s.playback.StartPlayback(); err != nil {
					return err
				}
				s.mu.Lock()
				s.playbackStarted = true
				s.playbackQueued = false
				s.mu.Unlock()
				return nil
			})
			if accepted {
				s.mu.Lock()
				s.playbackQueued = true
				s.mu.Unlock()
				logger.Info("audio playback blocked, waiting for user gesture", "error", err)
			} else {
				logger.Warn("failed to start audio playback", "error", err)
			}
			return
		}
		s.mu.Lock()
		s.playbackStarted = true
		s.mu.Unlock()
	}

	if err := s.playback.SendAudio(audio); err != nil {
		logger.Debug("failed to queue agent audio frame", "error", err)
	}
}

func (s *TransportSession) handleAudioTrackEnded() {
	s.mu.Lock()
	s.playbackQueued = false
	callback := s.callbacks.onAudioTrackEnded
	s.mu.Unlock()
	if callback != nil {
		callback()
	}
}

func (s *TransportSession) handleDisconnected(reason error) {
	if reason != nil {
		logger.Warn("room connection dropped", "error", reason)
	}
	s.Disconnect()
}

func (s *TransportSession) notifyStatus(status transport.Status) {
	s.mu.Lock()
	callback := s.callbacks.onStatusChanged
	s.mu.Unlock()
	if callback != nil {
		callback(status)
	}
}

func (s *TransportSession) resetConnectionViewLocked() {
	s.lastRating = nil
	s.progress = protocol.Progress{}
	s.showingResult = false
	s.pendingCardBack = ""
	s.completed = false
	s.playbackStarted = false
	s.playbackQueued = false
}

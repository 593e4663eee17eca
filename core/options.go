package tutoring

import (
	"context"

	"github.com/uncons/review-core/core/protocol"
	"github.com/uncons/review-core/core/transport"
)

type SessionOption func(*TransportSession)

// WithDialer configures the transport endpoint. A session without a
// dialer fails every connect attempt with ErrTransportNotConfigured.
func WithDialer(dialer transport.Dialer) SessionOption {
	return func(s *TransportSession) { s.dialer = dialer }
}

// AudioCapture produces microphone audio frames while capture is active.
type AudioCapture interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

// WithAudioCapture wires a microphone backend into the session.
func WithAudioCapture(client AudioCapture) SessionOption {
	return func(s *TransportSession) { s.capture = client }
}

// AudioPlayback plays the agent's speech. StartPlayback may be rejected
// by the environment's autoplay policy until a user gesture has occurred.
type AudioPlayback interface {
	StartPlayback() error
	StopPlayback() error
	SendAudio(audio []byte) error
	ClearBuffer()
}

// WithAudioPlayback wires a speaker backend into the session.
func WithAudioPlayback(client AudioPlayback) SessionOption {
	return func(s *TransportSession) { s.playback = client }
}

type connectCallbacks struct {
	onStatusChanged        func(status transport.Status)
	onTranscript           func(text string, isFinal bool)
	onCard                 func(card protocol.Card)
	onRatingResult         func(result protocol.RatingResult)
	onRevealAnswer         func(reveal protocol.RevealAnswer)
	onProcessing           func(processing bool)
	onAgentMessage         func(text string)
	onVoiceTranscript      func(text string)
	onUserTranscript       func(text string)
	onSessionComplete      func(stats protocol.SessionStats)
	onPTTStateChanged      func(recording bool)
	onAgentSpeakingChanged func(speaking bool)
	onAudioTrackEnded      func()
}

// ConnectOptions shape one connection attempt. Callbacks registered here
// live for the duration of that connection.
type ConnectOptions struct {
	EnableMicrophone bool
	PTTMode          bool
	DeckName         string
	SessionID        string
	RoomName         string
	ParticipantName  string

	callbacks connectCallbacks
}

type ConnectOption func(*ConnectOptions)

// WithMicrophone enables local microphone capture for the connection. In
// push-to-talk mode capture still waits for an explicit PTT start.
func WithMicrophone() ConnectOption {
	return func(o *ConnectOptions) { o.EnableMicrophone = true }
}

// WithPTTMode gates recording on explicit push-to-talk commands instead
// of continuous capture.
func WithPTTMode() ConnectOption {
	return func(o *ConnectOptions) { o.PTTMode = true }
}

// WithSessionIdentity announces an already-started review session right
// after connecting, bypassing server-side session recovery.
func WithSessionIdentity(deckName, sessionID string) ConnectOption {
	return func(o *ConnectOptions) {
		o.DeckName = deckName
		o.SessionID = sessionID
	}
}

// WithRoomIdentity names the room and participant presented to the
// transport.
func WithRoomIdentity(roomName, participantName string) ConnectOption {
	return func(o *ConnectOptions) {
		o.RoomName = roomName
		o.ParticipantName = participantName
	}
}

// WithStatusCallback registers a callback for connection status changes.
func WithStatusCallback(callback func(status transport.Status)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onStatusChanged = callback }
}

// WithTranscriptCallback registers a callback for live answer
// transcription updates.
func WithTranscriptCallback(callback func(text string, isFinal bool)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onTranscript = callback }
}

// WithCardCallback registers a callback for card presentations.
func WithCardCallback(callback func(card protocol.Card)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onCard = callback }
}

// WithRatingResultCallback registers a callback for grading results.
func WithRatingResultCallback(callback func(result protocol.RatingResult)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onRatingResult = callback }
}

// WithRevealAnswerCallback registers a callback for answer reveals.
func WithRevealAnswerCallback(callback func(reveal protocol.RevealAnswer)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onRevealAnswer = callback }
}

// WithProcessingCallback registers a callback for the agent's thinking
// indicator.
func WithProcessingCallback(callback func(processing bool)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onProcessing = callback }
}

// WithAgentMessageCallback registers a callback for deduplicated agent
// transcript lines.
func WithAgentMessageCallback(callback func(text string)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onAgentMessage = callback }
}

// WithVoiceTranscriptCallback registers a callback for agent speech
// rendered as text.
func WithVoiceTranscriptCallback(callback func(text string)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onVoiceTranscript = callback }
}

// WithUserTranscriptCallback registers a callback for echoed user speech.
func WithUserTranscriptCallback(callback func(text string)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onUserTranscript = callback }
}

// WithSessionCompleteCallback registers a callback for the transport's
// completion signal.
func WithSessionCompleteCallback(callback func(stats protocol.SessionStats)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onSessionComplete = callback }
}

// WithPTTStateCallback registers a callback for server-confirmed
// recording state.
func WithPTTStateCallback(callback func(recording bool)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onPTTStateChanged = callback }
}

// WithAgentSpeakingCallback registers a callback for agent speaking-state
// changes.
func WithAgentSpeakingCallback(callback func(speaking bool)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onAgentSpeakingChanged = callback }
}

// WithAudioTrackEndedCallback registers a callback for remote audio
// track boundaries.
func WithAudioTrackEndedCallback(callback func()) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.onAudioTrackEnded = callback }
}

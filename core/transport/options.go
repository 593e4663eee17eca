// Package transport abstracts the real-time connection that carries the
// review session's audio and its reliable data channel.
package transport

import "context"

// Status describes the lifecycle of a connection attempt. There is no
// automatic reconnection: a dropped connection stays disconnected until a
// collaborator dials again.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Conn is a live room connection.
type Conn interface {
	// PublishData sends a payload on the reliable data channel.
	PublishData(ctx context.Context, topic string, payload []byte) error
	// SendAudio ships a frame of captured microphone audio.
	SendAudio(audio []byte) error
	Close() error
}

// Callbacks receive inbound traffic and connection-level signals. All
// callbacks are optional and are invoked from the connection's reader
// goroutine.
type Callbacks struct {
	OnData            func(topic string, payload []byte)
	OnAudioFrame      func(audio []byte)
	OnAudioTrackEnded func()
	OnDisconnected    func(reason error)
}

// Dialer opens connections against a configured endpoint.
type Dialer interface {
	Dial(ctx context.Context, token string, callbacks Callbacks, opts ...DialOption) (Conn, error)
}

type DialOptions struct {
	RoomName        string
	ParticipantName string
	SampleRate      int
}

type DialOption func(*DialOptions)

// WithRoom joins the named room instead of letting the server pick one.
func WithRoom(name string) DialOption {
	return func(o *DialOptions) { o.RoomName = name }
}

// WithParticipantName sets the participant identity presented to the room.
func WithParticipantName(name string) DialOption {
	return func(o *DialOptions) { o.ParticipantName = name }
}

// WithSampleRate declares the sample rate of published microphone audio.
func WithSampleRate(sampleRate int) DialOption {
	return func(o *DialOptions) { o.SampleRate = sampleRate }
}

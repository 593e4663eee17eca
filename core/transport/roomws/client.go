// Package roomws implements the room transport over a websocket. Text
// frames carry JSON envelopes for the data channel, binary frames carry
// agent audio, and media-control envelopes delimit audio tracks.
package roomws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/uncons/review-core/core/audio"
	"github.com/uncons/review-core/core/transport"
)

var _ transport.Dialer = (*Client)(nil)

// Client dials room connections against a fixed endpoint.
type Client struct {
	endpoint string
}

// NewClient creates a dialer for the given websocket endpoint.
func NewClient(endpoint string) *Client {
	return &Client{endpoint: endpoint}
}

// Dial joins a room and starts the reader goroutine. The access token is
// presented in the Authorization header; room parameters travel as query
// params.
func (c *Client) Dial(ctx context.Context, token string, callbacks transport.Callbacks, opts ...transport.DialOption) (transport.Conn, error) {
	options := transport.DialOptions{SampleRate: audio.DefaultSampleRate}
	for _, opt := range opts {
		opt(&options)
	}

	roomURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid room endpoint: %w", err)
	}

	queryParams := roomURL.Query()
	if options.RoomName != "" {
		queryParams.Set("room", options.RoomName)
	}
	if options.ParticipantName != "" {
		queryParams.Set("participant", options.ParticipantName)
	}
	queryParams.Set("sample_rate", strconv.Itoa(options.SampleRate))
	queryParams.Set("encoding", string(audio.DefaultFormat))
	roomURL.RawQuery = queryParams.Encode()

	wsConn, _, err := websocket.DefaultDialer.DialContext(ctx, roomURL.String(),
		http.Header{"Authorization": {"Token " + token}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to room: %w", err)
	}

	conn := &roomConn{conn: wsConn, callbacks: callbacks}
	go conn.readAndProcessFrames()

	return conn, nil
}

// envelope is the wire form of one data-channel message.
type envelope struct {
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// mediaControl delimits remote audio tracks inside the frame stream.
type mediaControl struct {
	Event string `json:"event"`
}

const (
	topicMediaControl = "media-control"

	mediaEventTrackEnded = "track_ended"
)

type roomConn struct {
	connMu sync.Mutex
	conn   *websocket.Conn

	closeOnce sync.Once
	callbacks transport.Callbacks
}

func (c *roomConn) PublishData(_ context.Context, topic string, payload []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if err := c.conn.WriteJSON(envelope{Topic: topic, Payload: payload}); err != nil {
		return fmt.Errorf("failed to publish data message: %w", err)
	}
	return nil
}

func (c *roomConn) SendAudio(audio []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

func (c *roomConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.conn.Close()
		c.connMu.Unlock()
	})
	return err
}

func (c *roomConn) readAndProcessFrames() {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("Failed to read room websocket message", "error", err)
				c.notifyDisconnected(err)
			} else {
				c.notifyDisconnected(nil)
			}
			_ = c.Close()
			return
		}

		if msgType == websocket.BinaryMessage {
			if c.callbacks.OnAudioFrame != nil {
				c.callbacks.OnAudioFrame(msg)
			}
			continue
		}

		c.processEnvelope(msg)
	}
}

func (c *roomConn) processEnvelope(msg []byte) {
	var parsed envelope
	if err := json.Unmarshal(msg, &parsed); err != nil {
		log.Println("Failed to unmarshal room envelope", "error", err)
		return
	}

	if parsed.Topic == topicMediaControl {
		var control mediaControl
		if err := json.Unmarshal(parsed.Payload, &control); err != nil {
			log.Println("Failed to unmarshal media control message", "error", err)
			return
		}
		if control.Event == mediaEventTrackEnded && c.callbacks.OnAudioTrackEnded != nil {
			c.callbacks.OnAudioTrackEnded()
		}
		return
	}

	if c.callbacks.OnData != nil {
		c.callbacks.OnData(parsed.Topic, parsed.Payload)
	}
}

func (c *roomConn) notifyDisconnected(reason error) {
	if c.callbacks.OnDisconnected != nil {
		c.callbacks.OnDisconnected(reason)
	}
}

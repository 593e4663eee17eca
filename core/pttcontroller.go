package tutoring

import (
	"context"
	"fmt"

	"github.com/uncons/review-core/core/protocol"
)

// PTTController drives push-to-talk over a transport session. Local
// commands flip the recording state optimistically; the server's ptt_state
// confirmations overwrite it when they disagree.
type PTTController struct {
	session *TransportSession
}

func NewPTTController(session *TransportSession) *PTTController {
	return &PTTController{session: session}
}

// Start opens a recording window. The triggering user gesture doubles as
// the audio unlock for blocked playback. A microphone failure aborts the
// attempt before anything is published; a publish failure does not undo
// the local state, the server's next confirmation settles it.
func (c *PTTController) Start(ctx context.Context) error {
	s := c.session

	s.mu.Lock()
	if s.conn == nil || !s.ptt.IsPTTMode || s.ptt.IsRecording {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.unlock.Unlock()

	if err := s.enableMicrophone(ctx); err != nil {
		return fmt.Errorf("failed to start microphone capture: %w", err)
	}

	if err := s.publish(ctx, protocol.NewPTTStart()); err != nil {
		logger.Warn("failed to publish ptt_start", "error", err)
	}

	c.setRecording(true)
	return nil
}

// End closes the recording window and submits the captured speech.
func (c *PTTController) End(ctx context.Context) error {
	return c.stop(ctx, protocol.NewPTTEnd())
}

// Cancel closes the recording window and discards the captured speech.
func (c *PTTController) Cancel(ctx context.Context) error {
	return c.stop(ctx, protocol.NewPTTCancel())
}

func (c *PTTController) stop(ctx context.Context, cmd protocol.Message) error {
	s := c.session

	s.mu.Lock()
	if s.conn == nil || !s.ptt.IsRecording {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.publish(ctx, cmd); err != nil {
		logger.Warn("failed to publish recording stop", "type", cmd.Type(), "error", err)
	}

	if err := s.disableMicrophone(); err != nil {
		logger.Warn("failed to stop microphone capture", "error", err)
	}

	c.setRecording(false)
	return nil
}

func (c *PTTController) setRecording(recording bool) {
	s := c.session

	s.mu.Lock()
	s.ptt.IsRecording = recording
	s.muted = !recording
	callback := s.callbacks.onPTTStateChanged
	s.mu.Unlock()

	if callback != nil {
		callback(recording)
	}
}

package tutoring

import (
	"github.com/uncons/review-core/core/protocol"
	"github.com/uncons/review-core/internal/utils"
)

func (s *TransportSession) handleData(topic string, payload []byte) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		logger.Warn("dropping undecodable data message", "topic", topic, "error", err)
		return
	}
	s.dispatch(msg)
}

// dispatch routes one decoded inbound message, updating per-connection
// view state before invoking the matching callback.
func (s *TransportSession) dispatch(msg protocol.Message) {
	s.mu.Lock()
	callbacks := s.callbacks
	s.mu.Unlock()

	switch m := msg.(type) {
	case *protocol.Transcript:
		if callbacks.onTranscript != nil {
			callbacks.onTranscript(m.Text, m.IsFinal)
		}
	case *protocol.Card:
		s.mu.Lock()
		s.showingResult = false
		s.pendingCardBack = ""
		s.lastRating = m.LastRating
		s.progress = m.Progress
		s.mu.Unlock()
		if callbacks.onCard != nil {
			callbacks.onCard(*m)
		}
	case *protocol.RatingResult:
		s.mu.Lock()
		s.showingResult = true
		s.pendingCardBack = m.CardBack
		s.lastRating = utils.Ptr(m.Rating)
		s.progress = m.Progress
		s.mu.Unlock()
		if callbacks.onRatingResult != nil {
			callbacks.onRatingResult(*m)
		}
	case *protocol.RevealAnswer:
		s.mu.Lock()
		s.showingResult = true
		s.pendingCardBack = m.CardBack
		s.progress = m.Progress
		s.mu.Unlock()
		if callbacks.onRevealAnswer != nil {
			callbacks.onRevealAnswer(*m)
		}
	case *protocol.Processing:
		if callbacks.onProcessing != nil {
			callbacks.onProcessing(m.Value)
		}
	case *protocol.AgentMessage:
		if m.ID != "" && !s.dedup.CheckAndRecord(m.ID) {
			logger.Debug("dropping duplicate agent message", "id", m.ID)
			return
		}
		if callbacks.onAgentMessage != nil {
			callbacks.onAgentMessage(m.Text)
		}
	case *protocol.VoiceTranscript:
		if callbacks.onVoiceTranscript != nil {
			callbacks.onVoiceTranscript(m.Text)
		}
	case *protocol.UserTranscript:
		if callbacks.onUserTranscript != nil {
			callbacks.onUserTranscript(m.Text)
		}
	case *protocol.SessionComplete:
		s.mu.Lock()
		s.completed = true
		s.mu.Unlock()
		if callbacks.onSessionComplete != nil {
			callbacks.onSessionComplete(m.Stats)
		}
	case *protocol.PTTState:
		s.mu.Lock()
		s.ptt.IsRecording = m.Recording
		s.muted = !m.Recording
		s.mu.Unlock()
		if callbacks.onPTTStateChanged != nil {
			callbacks.onPTTStateChanged(m.Recording)
		}
	case *protocol.AgentSpeakingState:
		if callbacks.onAgentSpeakingChanged != nil {
			callbacks.onAgentSpeakingChanged(m.Speaking)
		}
	default:
		logger.Warn("no dispatch rule for message", "type", msg.Type())
	}
}

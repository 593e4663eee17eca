package tui

import (
	"github.com/uncons/review-core/core/protocol"
	"github.com/uncons/review-core/core/transport"
)

// Messages fed into the program by the session callbacks.

type StatusMsg struct{ Status transport.Status }

type TranscriptMsg struct {
	Text  string
	Final bool
}

type CardMsg struct{ Card protocol.Card }

type RatingResultMsg struct{ Result protocol.RatingResult }

type RevealAnswerMsg struct{ Reveal protocol.RevealAnswer }

type ProcessingMsg struct{ Processing bool }

type AgentMessageMsg struct{ Text string }

type VoiceTranscriptMsg struct{ Text string }

type UserTranscriptMsg struct{ Text string }

type SessionCompleteMsg struct{ Stats protocol.SessionStats }

type PTTStateMsg struct{ Recording bool }

type AgentSpeakingMsg struct{ Speaking bool }

type ErrorMsg struct{ Err error }

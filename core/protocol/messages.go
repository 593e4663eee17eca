// Package protocol defines the JSON messages carried over the review
// session's data channel: commands published by the client on the
// user-input topic and messages received from the tutoring agent.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type tags a data-channel message.
type Type string

const (
	// Inbound message types.
	TypeTranscript         Type = "transcript"
	TypeCard               Type = "card"
	TypeRatingResult       Type = "rating_result"
	TypeRevealAnswer       Type = "reveal_answer"
	TypeProcessing         Type = "processing"
	TypeAgentMessage       Type = "agent_message"
	TypeVoiceTranscript    Type = "voice_transcript"
	TypeUserTranscript     Type = "user_transcript"
	TypeSessionComplete    Type = "session_complete"
	TypePTTState           Type = "ptt_state"
	TypeAgentSpeakingState Type = "agent_speaking_state"
)

// Topics used on the data channel. Outbound commands go to the user-input
// topic, agent messages arrive on the agent-response topic.
const (
	TopicUserInput     = "user-input"
	TopicAgentResponse = "agent-response"
)

// Message is a decoded data-channel payload.
type Message interface {
	Type() Type
}

// Progress reports how far the agent believes the review has advanced.
type Progress struct {
	CardsReviewed  int `json:"cards_reviewed"`
	CardsRemaining int `json:"cards_remaining"`
}

// CardPayload is a flashcard as served over the wire.
type CardPayload struct {
	ID           int64   `json:"id"`
	QuestionHTML string  `json:"question_html"`
	AnswerHTML   string  `json:"answer_html"`
	DeckName     string  `json:"deck_name,omitempty"`
	ImageURL     *string `json:"image_url,omitempty"`
}

// SessionStats summarizes a finished review session.
type SessionStats struct {
	CardsReviewed   int            `json:"cards_reviewed"`
	Ratings         map[string]int `json:"ratings"`
	DurationMinutes float64        `json:"duration_minutes"`
	SyncedCount     int            `json:"synced_count"`
	FailedCount     int            `json:"failed_count"`
}

// Transcript carries a live speech-to-text update for the user's answer.
type Transcript struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

func (Transcript) Type() Type { return TypeTranscript }

// Card presents the next flashcard, alongside progress and the rating
// earned on the previous card.
type Card struct {
	Card       CardPayload `json:"card"`
	Progress   Progress    `json:"progress"`
	LastRating *int        `json:"last_rating"`
}

func (Card) Type() Type { return TypeCard }

// RatingResult delivers the agent's grading of the current card without
// advancing to the next one.
type RatingResult struct {
	Rating        int      `json:"rating"`
	Feedback      string   `json:"feedback"`
	CardBack      string   `json:"card_back"`
	AnswerSummary string   `json:"answer_summary,omitempty"`
	Progress      Progress `json:"progress"`
}

func (RatingResult) Type() Type { return TypeRatingResult }

// RevealAnswer flips the current card without assigning a rating.
type RevealAnswer struct {
	CardBack string   `json:"card_back"`
	Progress Progress `json:"progress"`
}

func (RevealAnswer) Type() Type { return TypeRevealAnswer }

// Processing toggles the agent's "thinking" indicator.
type Processing struct {
	Value bool `json:"value"`
}

func (Processing) Type() Type { return TypeProcessing }

// AgentMessage is a line of agent text for the transcript panel. ID is
// used for duplicate suppression; senders that predate ids omit it.
type AgentMessage struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

func (AgentMessage) Type() Type { return TypeAgentMessage }

// VoiceTranscript carries agent speech rendered as text.
type VoiceTranscript struct {
	Text string `json:"text"`
}

func (VoiceTranscript) Type() Type { return TypeVoiceTranscript }

// UserTranscript echoes back the user's recognized speech.
type UserTranscript struct {
	Text string `json:"text"`
}

func (UserTranscript) Type() Type { return TypeUserTranscript }

// SessionComplete announces that every due card has been reviewed.
type SessionComplete struct {
	Stats SessionStats `json:"stats"`
}

func (SessionComplete) Type() Type { return TypeSessionComplete }

// PTTState is the server's authoritative view of the recording state.
type PTTState struct {
	Recording bool `json:"recording"`
}

func (PTTState) Type() Type { return TypePTTState }

// AgentSpeakingState reports whether the agent is currently producing
// audio output.
type AgentSpeakingState struct {
	Speaking bool `json:"speaking"`
}

func (AgentSpeakingState) Type() Type { return TypeAgentSpeakingState }

// Decode parses a data-channel payload into its typed message.
func Decode(payload []byte) (Message, error) {
	var envelope struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse message envelope: %w", err)
	}

	var msg Message
	switch envelope.Type {
	case TypeTranscript:
		msg = &Transcript{}
	case TypeCard:
		msg = &Card{}
	case TypeRatingResult:
		msg = &RatingResult{}
	case TypeRevealAnswer:
		msg = &RevealAnswer{}
	case TypeProcessing:
		msg = &Processing{}
	case TypeAgentMessage:
		msg = &AgentMessage{}
	case TypeVoiceTranscript:
		msg = &VoiceTranscript{}
	case TypeUserTranscript:
		msg = &UserTranscript{}
	case TypeSessionComplete:
		msg = &SessionComplete{}
	case TypePTTState:
		msg = &PTTState{}
	case TypeAgentSpeakingState:
		msg = &AgentSpeakingState{}
	default:
		return nil, fmt.Errorf("unknown message type %q", envelope.Type)
	}

	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("failed to parse %q message: %w", envelope.Type, err)
	}

	return msg, nil
}

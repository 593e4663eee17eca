package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeCardMessage(t *testing.T) {
	payload := []byte(`{
		"type": "card",
		"card": {
			"id": 42,
			"question_html": "<b>Capital of France?</b>",
			"answer_html": "Paris",
			"deck_name": "Geography"
		},
		"progress": {"cards_reviewed": 3, "cards_remaining": 17},
		"last_rating": 4
	}`)

	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("expected card payload to decode, got error: %v", err)
	}

	card, ok := msg.(*Card)
	if !ok {
		t.Fatalf("expected *Card, got %T", msg)
	}
	if card.Card.ID != 42 {
		t.Fatalf("expected card id 42, got %d", card.Card.ID)
	}
	if card.Progress.CardsRemaining != 17 {
		t.Fatalf("expected 17 cards remaining, got %d", card.Progress.CardsRemaining)
	}
	if card.LastRating == nil || *card.LastRating != 4 {
		t.Fatalf("expected last rating 4, got %v", card.LastRating)
	}
}

func TestDecodeCardMessageWithoutLastRating(t *testing.T) {
	payload := []byte(`{
		"type": "card",
		"card": {"id": 1, "question_html": "q", "answer_html": "a"},
		"progress": {"cards_reviewed": 0, "cards_remaining": 1},
		"last_rating": null
	}`)

	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("expected card payload to decode, got error: %v", err)
	}

	if rating := msg.(*Card).LastRating; rating != nil {
		t.Fatalf("expected nil last rating, got %d", *rating)
	}
}

func TestDecodeAgentMessageWithoutID(t *testing.T) {
	msg, err := Decode([]byte(`{"type": "agent_message", "text": "hello"}`))
	if err != nil {
		t.Fatalf("expected agent message to decode, got error: %v", err)
	}

	agentMsg, ok := msg.(*AgentMessage)
	if !ok {
		t.Fatalf("expected *AgentMessage, got %T", msg)
	}
	if agentMsg.ID != "" {
		t.Fatalf("expected empty id, got %q", agentMsg.ID)
	}
	if agentMsg.Text != "hello" {
		t.Fatalf("expected text %q, got %q", "hello", agentMsg.Text)
	}
}

func TestDecodeReportsTypes(t *testing.T) {
	testCases := []struct {
		name     string
		payload  string
		expected Type
	}{
		{name: "transcript", payload: `{"type": "transcript", "text": "the mito", "isFinal": false}`, expected: TypeTranscript},
		{name: "rating result", payload: `{"type": "rating_result", "rating": 3, "feedback": "close", "card_back": "b", "progress": {"cards_reviewed": 1, "cards_remaining": 2}}`, expected: TypeRatingResult},
		{name: "reveal answer", payload: `{"type": "reveal_answer", "card_back": "b", "progress": {"cards_reviewed": 1, "cards_remaining": 2}}`, expected: TypeRevealAnswer},
		{name: "processing", payload: `{"type": "processing", "value": true}`, expected: TypeProcessing},
		{name: "voice transcript", payload: `{"type": "voice_transcript", "text": "t"}`, expected: TypeVoiceTranscript},
		{name: "user transcript", payload: `{"type": "user_transcript", "text": "t"}`, expected: TypeUserTranscript},
		{name: "session complete", payload: `{"type": "session_complete", "stats": {"cards_reviewed": 5, "ratings": {"3": 5}, "duration_minutes": 4.5, "synced_count": 5, "failed_count": 0}}`, expected: TypeSessionComplete},
		{name: "ptt state", payload: `{"type": "ptt_state", "recording": true}`, expected: TypePTTState},
		{name: "agent speaking state", payload: `{"type": "agent_speaking_state", "speaking": false}`, expected: TypeAgentSpeakingState},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			msg, err := Decode([]byte(testCase.payload))
			if err != nil {
				t.Fatalf("expected payload to decode, got error: %v", err)
			}
			if got := msg.Type(); got != testCase.expected {
				t.Fatalf("expected type %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := Decode([]byte(`{"type": "telemetry", "value": 1}`)); err == nil {
		t.Fatalf("expected unknown message type to be rejected")
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := Decode([]byte(`{"type": "card", "card": "not-an-object"}`)); err == nil {
		t.Fatalf("expected malformed card payload to be rejected")
	}
}

func TestEncodeInjectsTypeTag(t *testing.T) {
	testCases := []struct {
		name     string
		msg      Message
		expected Type
	}{
		{name: "init session", msg: NewInitSession("Geography", "sess-1"), expected: TypeInitSession},
		{name: "user text input", msg: NewUserTextInput("Paris"), expected: TypeUserTextInput},
		{name: "user question", msg: NewUserQuestion("why?"), expected: TypeUserQuestion},
		{name: "ptt start", msg: NewPTTStart(), expected: TypePTTStart},
		{name: "ptt end", msg: NewPTTEnd(), expected: TypePTTEnd},
		{name: "ptt cancel", msg: NewPTTCancel(), expected: TypePTTCancel},
		{name: "hint", msg: NewHint(), expected: TypeHint},
		{name: "give up", msg: NewGiveUp(), expected: TypeGiveUp},
		{name: "mnemonic request", msg: NewMnemonicRequest(), expected: TypeMnemonicRequest},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			payload, err := Encode(testCase.msg)
			if err != nil {
				t.Fatalf("expected command to encode, got error: %v", err)
			}

			var envelope struct {
				Type Type `json:"type"`
			}
			if err := json.Unmarshal(payload, &envelope); err != nil {
				t.Fatalf("expected encoded command to be valid JSON, got error: %v", err)
			}
			if envelope.Type != testCase.expected {
				t.Fatalf("expected type tag %q, got %q", testCase.expected, envelope.Type)
			}
		})
	}
}

func TestEncodedInitSessionCarriesIdentity(t *testing.T) {
	payload, err := Encode(NewInitSession("Geography", "sess-1"))
	if err != nil {
		t.Fatalf("expected init_session to encode, got error: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("expected encoded command to be valid JSON, got error: %v", err)
	}
	if fields["deck_name"] != "Geography" {
		t.Fatalf("expected deck_name %q, got %v", "Geography", fields["deck_name"])
	}
	if fields["session_id"] != "sess-1" {
		t.Fatalf("expected session_id %q, got %v", "sess-1", fields["session_id"])
	}
}

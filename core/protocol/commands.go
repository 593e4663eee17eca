package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// Outbound command types.
	TypeInitSession     Type = "init_session"
	TypeUserTextInput   Type = "user_text_input"
	TypeUserQuestion    Type = "user_question"
	TypePTTStart        Type = "ptt_start"
	TypePTTEnd          Type = "ptt_end"
	TypePTTCancel       Type = "ptt_cancel"
	TypeHint            Type = "hint"
	TypeGiveUp          Type = "give_up"
	TypeMnemonicRequest Type = "mnemonic_request"
)

// InitSession binds a fresh connection to an already-started review
// session, letting the agent skip its own recovery lookup.
type InitSession struct {
	DeckName  string `json:"deck_name"`
	SessionID string `json:"session_id"`
}

func (InitSession) Type() Type { return TypeInitSession }

// NewInitSession creates an init_session command.
func NewInitSession(deckName, sessionID string) InitSession {
	return InitSession{DeckName: deckName, SessionID: sessionID}
}

// UserTextInput submits a typed answer in text-input mode.
type UserTextInput struct {
	Text string `json:"text"`
}

func (UserTextInput) Type() Type { return TypeUserTextInput }

// NewUserTextInput creates a user_text_input command.
func NewUserTextInput(text string) UserTextInput {
	return UserTextInput{Text: text}
}

// UserQuestion asks the agent a free-form question about the current card.
type UserQuestion struct {
	Text string `json:"text"`
}

func (UserQuestion) Type() Type { return TypeUserQuestion }

// NewUserQuestion creates a user_question command.
func NewUserQuestion(text string) UserQuestion {
	return UserQuestion{Text: text}
}

// PTTStart opens a push-to-talk recording window.
type PTTStart struct{}

func (PTTStart) Type() Type { return TypePTTStart }

// NewPTTStart creates a ptt_start command.
func NewPTTStart() PTTStart { return PTTStart{} }

// PTTEnd closes the recording window and submits the captured speech.
type PTTEnd struct{}

func (PTTEnd) Type() Type { return TypePTTEnd }

// NewPTTEnd creates a ptt_end command.
func NewPTTEnd() PTTEnd { return PTTEnd{} }

// PTTCancel closes the recording window and discards the captured speech.
type PTTCancel struct{}

func (PTTCancel) Type() Type { return TypePTTCancel }

// NewPTTCancel creates a ptt_cancel command.
func NewPTTCancel() PTTCancel { return PTTCancel{} }

// Hint asks for a progressively stronger hint on the current card.
type Hint struct{}

func (Hint) Type() Type { return TypeHint }

// NewHint creates a hint command.
func NewHint() Hint { return Hint{} }

// GiveUp concedes the current card and asks for the answer.
type GiveUp struct{}

func (GiveUp) Type() Type { return TypeGiveUp }

// NewGiveUp creates a give_up command.
func NewGiveUp() GiveUp { return GiveUp{} }

// MnemonicRequest asks the agent to produce a memory aid for the card.
type MnemonicRequest struct{}

func (MnemonicRequest) Type() Type { return TypeMnemonicRequest }

// NewMnemonicRequest creates a mnemonic_request command.
func NewMnemonicRequest() MnemonicRequest { return MnemonicRequest{} }

// Encode serializes a message with its type tag injected, producing the
// wire form expected on the data channel.
func Encode(msg Message) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %q message: %w", msg.Type(), err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to tag %q message: %w", msg.Type(), err)
	}
	fields["type"] = msg.Type()

	return json.Marshal(fields)
}

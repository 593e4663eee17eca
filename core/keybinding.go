package tutoring

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/uncons/review-core/core/transport"
)

// KeyboardPTTBinding maps the spacebar to push-to-talk toggling. The
// binding only claims the key while the session is connected in
// push-to-talk mode and no text input has focus, so typing a space into
// an answer field is never swallowed.
type KeyboardPTTBinding struct {
	session    *TransportSession
	controller *PTTController
	toggle     key.Binding

	inputFocused func() bool
}

type BindingOption func(*KeyboardPTTBinding)

// WithInputFocusCheck tells the binding how to ask whether a text input
// currently has focus.
func WithInputFocusCheck(check func() bool) BindingOption {
	return func(b *KeyboardPTTBinding) { b.inputFocused = check }
}

func NewKeyboardPTTBinding(session *TransportSession, controller *PTTController, opts ...BindingOption) *KeyboardPTTBinding {
	binding := &KeyboardPTTBinding{
		session:    session,
		controller: controller,
		toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle recording"),
		),
	}
	for _, opt := range opts {
		opt(binding)
	}
	return binding
}

// Toggle exposes the binding for help views.
func (b *KeyboardPTTBinding) Toggle() key.Binding {
	return b.toggle
}

// HandleKey toggles recording on a matching key press. It reports whether
// the key was claimed; unclaimed keys should be handled normally.
func (b *KeyboardPTTBinding) HandleKey(ctx context.Context, msg tea.KeyMsg) bool {
	if !key.Matches(msg, b.toggle) {
		return false
	}
	if b.inputFocused != nil && b.inputFocused() {
		return false
	}

	ptt := b.session.PTT()
	if !ptt.IsPTTMode || b.session.Status() != transport.StatusConnected {
		return false
	}

	if ptt.IsRecording {
		if err := b.controller.End(ctx); err != nil {
			logger.Warn("failed to end recording from keyboard", "error", err)
		}
	} else {
		if err := b.controller.Start(ctx); err != nil {
			logger.Warn("failed to start recording from keyboard", "error", err)
		}
	}
	return true
}

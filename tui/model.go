// Package tui is the terminal surface for a tutoring review session. It
// renders the card under review and the running conversation with the
// agent, and maps keys onto session commands.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jinzhu/copier"
	"github.com/muesli/reflow/wordwrap"

	tutoring "github.com/uncons/review-core/core"
	"github.com/uncons/review-core/core/protocol"
	"github.com/uncons/review-core/core/restapi"
	"github.com/uncons/review-core/core/transport"
)

const transcriptLines = 12

type keyMap struct {
	Quit       key.Binding
	EndSession key.Binding
	Hint       key.Binding
	GiveUp     key.Binding
	Mnemonic   key.Binding
	Submit     key.Binding
	Up         key.Binding
	Down       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:       key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
		EndSession: key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "end session")),
		Hint:       key.NewBinding(key.WithKeys("ctrl+h"), key.WithHelp("ctrl+h", "hint")),
		GiveUp:     key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "give up")),
		Mnemonic:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "mnemonic")),
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
	}
}

type transcriptLine struct {
	speaker string
	text    string
}

// Deps are the session collaborators the model drives.
type Deps struct {
	Config      tutoring.Config
	Session     *tutoring.TransportSession
	PTT         *tutoring.PTTController
	Manager     *tutoring.ReviewSessionManager
	Coordinator *tutoring.CompletionCoordinator

	// Decks populates the deck picker. Empty means a session is already
	// active and the picker is skipped.
	Decks []restapi.DeckInfo
	// Start creates the review session for a picked deck.
	Start func(ctx context.Context, deckName string) error
	// Connect joins the agent's room for the active session.
	Connect func(ctx context.Context) error
}

type mode int

const (
	modePicker mode = iota
	modeSession
)

// sessionStartedMsg flips the picker over to the session view. A non-nil
// connect error is surfaced there.
type sessionStartedMsg struct{ connectErr error }

type Model struct {
	session     *tutoring.TransportSession
	ptt         *tutoring.PTTController
	binding     *tutoring.KeyboardPTTBinding
	manager     *tutoring.ReviewSessionManager
	coordinator *tutoring.CompletionCoordinator
	textMode    bool

	start   func(ctx context.Context, deckName string) error
	connect func(ctx context.Context) error

	input        textinput.Model
	inputFocused *bool
	keys         keyMap
	progressBar  progress.Model

	mode   mode
	decks  []restapi.DeckInfo
	cursor int

	width          int
	status         transport.Status
	lines          []transcriptLine
	liveTranscript string
	card           *protocol.Card
	cardBack       string
	feedback       string
	processing     bool
	recording      bool
	agentSpeaking  bool
	stats          *protocol.SessionStats
	errText        string
}

func NewModel(deps Deps) Model {
	input := textinput.New()
	input.Placeholder = "type an answer, end with ? to ask a question"
	input.CharLimit = 500
	if deps.Config.TextInputMode {
		input.Focus()
	}

	focused := deps.Config.TextInputMode
	binding := tutoring.NewKeyboardPTTBinding(deps.Session, deps.PTT,
		tutoring.WithInputFocusCheck(func() bool { return focused }),
	)

	viewMode := modeSession
	if len(deps.Decks) > 0 {
		viewMode = modePicker
	}

	return Model{
		session:      deps.Session,
		ptt:          deps.PTT,
		binding:      binding,
		manager:      deps.Manager,
		coordinator:  deps.Coordinator,
		textMode:     deps.Config.TextInputMode,
		start:        deps.Start,
		connect:      deps.Connect,
		input:        input,
		inputFocused: &focused,
		keys:         defaultKeyMap(),
		progressBar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(24)),
		mode:         viewMode,
		decks:        deps.Decks,
		status:       deps.Session.Status(),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.mode == modeSession && m.connect != nil {
		cmds = append(cmds, m.connectCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 20)
		return m, nil

	case tea.KeyMsg:
		if m.mode == modePicker {
			return m.handlePickerKey(msg)
		}
		return m.handleKey(msg)

	case sessionStartedMsg:
		m.mode = modeSession
		if msg.connectErr != nil {
			m.errText = msg.connectErr.Error()
		}
		return m, nil

	case StatusMsg:
		m.status = msg.Status
		return m, nil

	case TranscriptMsg:
		if msg.Final {
			m.liveTranscript = ""
			m.appendLine("you", msg.Text)
		} else {
			m.liveTranscript = msg.Text
		}
		return m, nil

	case CardMsg:
		card := msg.Card
		m.card = &card
		m.cardBack = ""
		m.feedback = ""
		m.processing = false
		return m, nil

	case RatingResultMsg:
		m.cardBack = msg.Result.CardBack
		m.feedback = msg.Result.Feedback
		m.processing = false
		if msg.Result.AnswerSummary != "" {
			m.appendLine("agent", msg.Result.AnswerSummary)
		}
		return m, nil

	case RevealAnswerMsg:
		m.cardBack = msg.Reveal.CardBack
		m.processing = false
		return m, nil

	case ProcessingMsg:
		m.processing = msg.Processing
		return m, nil

	case AgentMessageMsg:
		m.appendLine("agent", msg.Text)
		return m, nil

	case VoiceTranscriptMsg:
		m.appendLine("agent", msg.Text)
		return m, nil

	case UserTranscriptMsg:
		m.appendLine("you", msg.Text)
		return m, nil

	case SessionCompleteMsg:
		stats := msg.Stats
		m.stats = &stats
		return m, nil

	case PTTStateMsg:
		m.recording = msg.Recording
		return m, nil

	case AgentSpeakingMsg:
		m.agentSpeaking = msg.Speaking
		return m, nil

	case ErrorMsg:
		m.errText = msg.Err.Error()
		return m, nil
	}

	return m, nil
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.decks)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		deck := m.decks[m.cursor].Name
		start := m.start
		connect := m.connect
		return m, func() tea.Msg {
			if start != nil {
				if err := start(context.Background(), deck); err != nil {
					return ErrorMsg{Err: err}
				}
			}
			var connectErr error
			if connect != nil {
				connectErr = connect(context.Background())
			}
			return sessionStartedMsg{connectErr: connectErr}
		}
	}
	return m, nil
}

func (m *Model) connectCmd() tea.Cmd {
	connect := m.connect
	return func() tea.Msg {
		if err := connect(context.Background()); err != nil {
			return ErrorMsg{Err: err}
		}
		return nil
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.coordinator.Close()
		m.session.Disconnect()
		return m, tea.Quit

	case key.Matches(msg, m.keys.EndSession):
		return m, m.endSessionCmd()

	case key.Matches(msg, m.keys.Hint):
		m.session.NotifyUserGesture()
		return m, m.commandCmd(m.session.RequestHint)

	case key.Matches(msg, m.keys.GiveUp):
		m.session.NotifyUserGesture()
		return m, m.commandCmd(m.session.GiveUp)

	case key.Matches(msg, m.keys.Mnemonic):
		m.session.NotifyUserGesture()
		return m, m.commandCmd(m.session.RequestMnemonic)

	case key.Matches(msg, m.keys.Submit):
		return m, m.submitCmd()
	}

	if m.binding.HandleKey(context.Background(), msg) {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	*m.inputFocused = m.input.Focused()
	return m, cmd
}

func (m *Model) submitCmd() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()
	m.appendLine("you", text)
	m.session.NotifyUserGesture()

	send := m.session.SendTextInput
	if strings.HasSuffix(text, "?") {
		send = m.session.AskQuestion
	}
	return func() tea.Msg {
		if err := send(context.Background(), text); err != nil {
			return ErrorMsg{Err: err}
		}
		return nil
	}
}

func (m *Model) commandCmd(command func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := command(context.Background()); err != nil {
			return ErrorMsg{Err: err}
		}
		return nil
	}
}

func (m *Model) endSessionCmd() tea.Cmd {
	manager := m.manager
	coordinator := m.coordinator
	return func() tea.Msg {
		ended, err := manager.End(context.Background())
		if err != nil {
			return ErrorMsg{Err: err}
		}
		stats := protocol.SessionStats{}
		if err := copier.Copy(&stats, ended); err != nil {
			return ErrorMsg{Err: fmt.Errorf("failed to carry over session stats: %w", err)}
		}
		coordinator.HandleLifecycleComplete(stats)
		return nil
	}
}

func (m *Model) appendLine(speaker, text string) {
	m.lines = append(m.lines, transcriptLine{speaker: speaker, text: text})
	if len(m.lines) > transcriptLines*4 {
		m.lines = m.lines[len(m.lines)-transcriptLines*4:]
	}
}

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}

	if m.mode == modePicker {
		return m.pickerView(width)
	}

	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")

	if m.stats != nil {
		b.WriteString(m.statsView())
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("press esc to leave"))
		b.WriteString("\n")
		return b.String()
	}

	if m.card != nil {
		b.WriteString(cardStyle.Width(width - 2).Render(wordwrap.String(stripHTML(m.card.Card.QuestionHTML), width-4)))
		b.WriteString("\n")
	}
	if m.cardBack != "" {
		b.WriteString(answerStyle.Width(width - 2).Render(wordwrap.String(stripHTML(m.cardBack), width-4)))
		b.WriteString("\n")
	}
	if m.feedback != "" {
		b.WriteString(agentStyle.Render(wordwrap.String(m.feedback, width-2)))
		b.WriteString("\n")
	}

	start := max(len(m.lines)-transcriptLines, 0)
	for _, line := range m.lines[start:] {
		style := agentStyle
		prefix := "agent"
		if line.speaker == "you" {
			style = userStyle
			prefix = "you"
		}
		b.WriteString(style.Render(wordwrap.String(prefix+": "+line.text, width-2)))
		b.WriteString("\n")
	}
	if m.liveTranscript != "" {
		b.WriteString(mutedStyle.Render(wordwrap.String("you (speaking): "+m.liveTranscript, width-2)))
		b.WriteString("\n")
	}

	b.WriteString(m.indicatorView())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.errText != "" {
		b.WriteString(errorStyle.Render(wordwrap.String(m.errText, width-2)))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("space: talk · enter: send · ctrl+h: hint · ctrl+g: give up · ctrl+n: mnemonic · ctrl+e: end · esc: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) pickerView(width int) string {
	var b strings.Builder

	b.WriteString("pick a deck to review\n\n")
	for i, deck := range m.decks {
		line := fmt.Sprintf("%s  %s", deck.Name,
			mutedStyle.Render(fmt.Sprintf("(%d due / %d total)", deck.DueCount, deck.TotalCount)))
		if i == m.cursor {
			line = userStyle.Render("▸ " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(wordwrap.String(line, width-2))
		b.WriteString("\n")
	}
	if m.errText != "" {
		b.WriteString(errorStyle.Render(wordwrap.String(m.errText, width-2)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("↑/↓: move · enter: start · esc: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) headerView() string {
	deck := m.manager.DeckName()
	if deck == "" {
		deck = "review"
	}
	reviewed, remaining := m.manager.Progress()
	if progress := m.session.Progress(); progress.CardsReviewed > 0 || progress.CardsRemaining > 0 {
		reviewed, remaining = progress.CardsReviewed, progress.CardsRemaining
	}
	fraction := 0.0
	if total := reviewed + remaining; total > 0 {
		fraction = float64(reviewed) / float64(total)
	}
	return fmt.Sprintf("%s %s %s %s",
		deck,
		m.progressBar.ViewAs(fraction),
		progressStyle.Render(fmt.Sprintf("[%d done, %d left]", reviewed, remaining)),
		mutedStyle.Render(string(m.status)),
	)
}

func (m Model) indicatorView() string {
	indicators := []string{}
	if m.recording {
		indicators = append(indicators, recordStyle.Render("● recording"))
	}
	if m.agentSpeaking {
		indicators = append(indicators, agentStyle.Render("speaking…"))
	}
	if m.processing {
		indicators = append(indicators, mutedStyle.Render("thinking…"))
	}
	if len(indicators) == 0 {
		return mutedStyle.Render("idle")
	}
	return strings.Join(indicators, "  ")
}

func (m Model) statsView() string {
	stats := m.stats
	ratings := []string{}
	for _, grade := range []string{"1", "2", "3", "4"} {
		if n, ok := stats.Ratings[grade]; ok {
			ratings = append(ratings, fmt.Sprintf("%s×%d", grade, n))
		}
	}
	summary := fmt.Sprintf("session complete: %d cards in %.1f min", stats.CardsReviewed, stats.DurationMinutes)
	if len(ratings) > 0 {
		summary += " · ratings " + strings.Join(ratings, " ")
	}
	if stats.FailedCount > 0 {
		summary += fmt.Sprintf(" · %d ratings failed to sync", stats.FailedCount)
	}
	return answerStyle.Render(summary)
}

var htmlTags = regexp.MustCompile(`<[^>]*>`)

// stripHTML renders card HTML as plain terminal text.
func stripHTML(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "<br />", "\n")
	s = htmlTags.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	return strings.TrimSpace(s)
}

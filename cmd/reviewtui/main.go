// Command reviewtui runs a voice-and-text tutoring review session in the
// terminal. It recovers a session left behind by a previous run or starts
// a new one, joins the agent's room, and hands the conversation to the
// TUI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	tutoring "github.com/uncons/review-core/core"
	"github.com/uncons/review-core/core/audio/miniaudio"
	"github.com/uncons/review-core/core/protocol"
	"github.com/uncons/review-core/core/restapi"
	"github.com/uncons/review-core/core/transport"
	"github.com/uncons/review-core/core/transport/roomws"
	"github.com/uncons/review-core/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "reviewtui:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	config := tutoring.LoadConfig()

	deck := flag.String("deck", "", "deck to start a review session for (skips the picker)")
	flag.Parse()

	ctx := context.Background()
	api := restapi.NewClient(config.APIURL)
	manager := tutoring.NewReviewSessionManager(api)

	recovered, err := manager.Recover(ctx)
	if err != nil {
		return err
	}
	if !recovered && *deck != "" {
		if err := startSession(ctx, manager, *deck); err != nil {
			return err
		}
	}

	// With no session to resume and no -deck flag, the TUI opens on the
	// deck picker.
	var decks []restapi.DeckInfo
	if !recovered && *deck == "" {
		decks, err = api.ListDecks(ctx)
		if err != nil {
			return err
		}
		if len(decks) == 0 {
			return fmt.Errorf("no decks available to review")
		}
	}

	sessionOpts := []tutoring.SessionOption{}
	if !config.TextInputMode {
		audioClient, err := miniaudio.NewClient()
		if err != nil {
			log.Printf("audio unavailable, falling back to text input: %v", err)
			config.TextInputMode = true
		} else {
			defer audioClient.Close()
			sessionOpts = append(sessionOpts,
				tutoring.WithAudioCapture(audioClient),
				tutoring.WithAudioPlayback(audioClient),
			)
		}
	}
	session := tutoring.NewTransportSession(sessionOpts...)

	var program *tea.Program
	coordinator := tutoring.NewCompletionCoordinator(func(stats protocol.SessionStats) {
		program.Send(tui.SessionCompleteMsg{Stats: stats})
	})
	coordinator.SetTeardown(session.Disconnect)

	participant := "tui-" + uuid.NewString()[:8]

	// Token issuance needs the session id, so the room is only joined once
	// a session exists: on startup for a resumed or -deck session, after
	// the picker otherwise. The model drives this through a tea.Cmd.
	connect := func(ctx context.Context) error {
		roomName := "review-" + manager.SessionID()
		inputMode := "voice"
		if config.TextInputMode {
			inputMode = "text"
		}

		grant, err := api.IssueToken(ctx, restapi.TokenRequest{
			RoomName:        roomName,
			ParticipantName: participant,
			DeckName:        manager.DeckName(),
			InputMode:       inputMode,
		})
		if err != nil {
			return err
		}

		endpoint := grant.URL
		if config.TransportURL != "" {
			endpoint = config.TransportURL
		}
		session.SetDialer(roomws.NewClient(endpoint))

		connectOpts := connectOptions(manager, coordinator, &program, roomName, participant)
		if !config.TextInputMode {
			connectOpts = append(connectOpts, tutoring.WithMicrophone(), tutoring.WithPTTMode())
		}
		return session.Connect(ctx, grant.Token, connectOpts...)
	}

	model := tui.NewModel(tui.Deps{
		Config:      config,
		Session:     session,
		PTT:         tutoring.NewPTTController(session),
		Manager:     manager,
		Coordinator: coordinator,
		Decks:       decks,
		Start: func(ctx context.Context, deckName string) error {
			return startSession(ctx, manager, deckName)
		},
		Connect: connect,
	})
	program = tea.NewProgram(model, tea.WithAltScreen())

	_, runErr := program.Run()
	coordinator.Close()
	session.Disconnect()
	return runErr
}

// connectOptions wires every inbound callback to a program message. The
// program pointer is resolved lazily because the model, and therefore the
// program, is built after the connect closure.
func connectOptions(manager *tutoring.ReviewSessionManager, coordinator *tutoring.CompletionCoordinator, program **tea.Program, roomName, participant string) []tutoring.ConnectOption {
	send := func(msg tea.Msg) { (*program).Send(msg) }
	return []tutoring.ConnectOption{
		tutoring.WithSessionIdentity(manager.DeckName(), manager.SessionID()),
		tutoring.WithRoomIdentity(roomName, participant),
		tutoring.WithStatusCallback(func(status transport.Status) {
			send(tui.StatusMsg{Status: status})
		}),
		tutoring.WithTranscriptCallback(func(text string, isFinal bool) {
			send(tui.TranscriptMsg{Text: text, Final: isFinal})
		}),
		tutoring.WithCardCallback(func(card protocol.Card) {
			send(tui.CardMsg{Card: card})
		}),
		tutoring.WithRatingResultCallback(func(result protocol.RatingResult) {
			send(tui.RatingResultMsg{Result: result})
		}),
		tutoring.WithRevealAnswerCallback(func(reveal protocol.RevealAnswer) {
			send(tui.RevealAnswerMsg{Reveal: reveal})
		}),
		tutoring.WithProcessingCallback(func(processing bool) {
			send(tui.ProcessingMsg{Processing: processing})
		}),
		tutoring.WithAgentMessageCallback(func(text string) {
			send(tui.AgentMessageMsg{Text: text})
		}),
		tutoring.WithVoiceTranscriptCallback(func(text string) {
			send(tui.VoiceTranscriptMsg{Text: text})
		}),
		tutoring.WithUserTranscriptCallback(func(text string) {
			send(tui.UserTranscriptMsg{Text: text})
		}),
		tutoring.WithSessionCompleteCallback(coordinator.HandleSessionComplete),
		tutoring.WithPTTStateCallback(func(recording bool) {
			send(tui.PTTStateMsg{Recording: recording})
		}),
		tutoring.WithAgentSpeakingCallback(func(speaking bool) {
			coordinator.HandleAgentSpeaking(speaking)
			send(tui.AgentSpeakingMsg{Speaking: speaking})
		}),
		tutoring.WithAudioTrackEndedCallback(func() {
			coordinator.HandleAgentSpeaking(false)
		}),
	}
}

// startSession starts a session for the deck, clearing a stuck one first
// when the server reports a conflict.
func startSession(ctx context.Context, manager *tutoring.ReviewSessionManager, deck string) error {
	err := manager.Start(ctx, deck)
	if err == nil {
		return nil
	}
	if restapi.ErrorCode(err) != restapi.CodeSessionConflict {
		return err
	}

	log.Printf("a session is already active, force-ending it")
	if err := manager.ForceEnd(ctx); err != nil {
		return err
	}
	return manager.Start(ctx, deck)
}

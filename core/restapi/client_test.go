package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListDecksDecodesCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/decks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"decks": [
			{"name": "Geography", "new_count": 3, "learn_count": 1, "due_count": 12, "total_count": 160},
			{"name": "Kanji", "new_count": 0, "learn_count": 0, "due_count": 4, "total_count": 90}
		]}`))
	}))
	defer server.Close()

	decks, err := NewClient(server.URL).ListDecks(context.Background())
	if err != nil {
		t.Fatalf("expected deck listing to succeed, got error: %v", err)
	}
	if len(decks) != 2 {
		t.Fatalf("expected 2 decks, got %d", len(decks))
	}
	if decks[0].Name != "Geography" || decks[0].DueCount != 12 {
		t.Fatalf("unexpected first deck %+v", decks[0])
	}
}

func TestListDecksSurfacesBackendUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail": {"error": {"code": "ANKI_UNAVAILABLE", "message": "Could not connect to Anki"}}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).ListDecks(context.Background())
	if err == nil {
		t.Fatalf("expected unavailable backend to surface as error")
	}
	if code := ErrorCode(err); code != CodeBackendUnavailable {
		t.Fatalf("expected code %q, got %q (error: %v)", CodeBackendUnavailable, code, err)
	}
}

func TestStartSessionDecodesCards(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/session/start" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if req["deck_name"] != "Geography" {
			t.Errorf("expected deck_name %q, got %q", "Geography", req["deck_name"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"session_id": "sess-1",
			"deck_name": "Geography",
			"state": "active",
			"due_count": 2,
			"cards": [
				{"id": 1, "question_html": "q1", "answer_html": "a1", "deck_name": "Geography"},
				{"id": 2, "question_html": "q2", "answer_html": "a2", "deck_name": "Geography", "image_url": "/api/cards/2/image"}
			],
			"recovered_ratings": 0
		}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).StartSession(context.Background(), "Geography")
	if err != nil {
		t.Fatalf("expected start to succeed, got error: %v", err)
	}
	if resp.SessionID != "sess-1" {
		t.Fatalf("expected session id %q, got %q", "sess-1", resp.SessionID)
	}
	if len(resp.Cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(resp.Cards))
	}
	if resp.Cards[1].ImageURL == nil || *resp.Cards[1].ImageURL != "/api/cards/2/image" {
		t.Fatalf("expected image url on second card, got %v", resp.Cards[1].ImageURL)
	}
}

func TestStartSessionSurfacesConflictCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail": {"error": {"code": "SESSION_CONFLICT", "message": "Another session is active", "details": {"existing_session_id": "sess-0"}}}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).StartSession(context.Background(), "Geography")
	if err == nil {
		t.Fatalf("expected conflict to surface as error")
	}
	if code := ErrorCode(err); code != CodeSessionConflict {
		t.Fatalf("expected code %q, got %q (error: %v)", CodeSessionConflict, code, err)
	}
}

func TestEndSessionKeepsSoftWarning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"session_id": "sess-1",
			"state": "complete",
			"stats": {"cards_reviewed": 5, "ratings": {"3": 4, "4": 1}, "synced_count": 4, "failed_count": 1, "duration_minutes": 6.5},
			"warning": "1 rating failed to sync"
		}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).EndSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("expected end to succeed, got error: %v", err)
	}
	if resp.Warning != "1 rating failed to sync" {
		t.Fatalf("expected warning to be kept, got %q", resp.Warning)
	}
	if resp.Stats.CardsReviewed != 5 {
		t.Fatalf("expected stats to survive alongside the warning, got %+v", resp.Stats)
	}
}

func TestSessionExistsTranslatesStatusCodes(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		expected bool
		wantErr  bool
	}{
		{name: "exists", status: http.StatusNoContent, expected: true},
		{name: "missing", status: http.StatusNotFound, expected: false},
		{name: "broken", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("expected HEAD probe, got %s", r.Method)
				}
				w.WriteHeader(testCase.status)
			}))
			defer server.Close()

			exists, err := NewClient(server.URL).SessionExists(context.Background())
			if testCase.wantErr {
				if err == nil {
					t.Fatalf("expected probe error for status %d", testCase.status)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected probe to succeed, got error: %v", err)
			}
			if exists != testCase.expected {
				t.Fatalf("expected exists=%t for status %d, got %t", testCase.expected, testCase.status, exists)
			}
		})
	}
}

func TestCurrentSessionNotFoundIsRecognizable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": {"error": {"code": "SESSION_NOT_FOUND", "message": "No active session"}}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).CurrentSession(context.Background())
	if err == nil {
		t.Fatalf("expected not-found to surface as error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected IsNotFound to recognize the error, got: %v", err)
	}
}

func TestIssueTokenPostsRoomIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/livekit/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode token request: %v", err)
		}
		if req.RoomName != "session-sess-1" || req.InputMode != "ptt" {
			t.Errorf("unexpected token request %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token": "jwt", "url": "wss://rooms.example"}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL).IssueToken(context.Background(), TokenRequest{
		RoomName:        "session-sess-1",
		ParticipantName: "reviewer-1",
		DeckName:        "Geography",
		InputMode:       "ptt",
	})
	if err != nil {
		t.Fatalf("expected token issuance to succeed, got error: %v", err)
	}
	if resp.Token != "jwt" || resp.URL != "wss://rooms.example" {
		t.Fatalf("unexpected token response %+v", resp)
	}
}

func TestDecodeAPIErrorFallsBackToRawBody(t *testing.T) {
	apiErr := decodeAPIError(http.StatusBadGateway, []byte("upstream exploded"))
	if apiErr.Code != "" {
		t.Fatalf("expected no code on unstructured error, got %q", apiErr.Code)
	}
	if apiErr.Message != "upstream exploded" {
		t.Fatalf("expected raw body as message, got %q", apiErr.Message)
	}
}

package restapi

// DeckInfo is a deck with its card counts by category.
type DeckInfo struct {
	Name       string `json:"name"`
	NewCount   int    `json:"new_count"`
	LearnCount int    `json:"learn_count"`
	DueCount   int    `json:"due_count"`
	TotalCount int    `json:"total_count"`
}

type decksResponse struct {
	Decks []DeckInfo `json:"decks"`
}

// CardResponse is a flashcard as served by the session API.
type CardResponse struct {
	ID           int64   `json:"id"`
	QuestionHTML string  `json:"question_html"`
	AnswerHTML   string  `json:"answer_html"`
	DeckName     string  `json:"deck_name"`
	ImageURL     *string `json:"image_url,omitempty"`
}

// StartSessionResponse is returned when a review session is created.
type StartSessionResponse struct {
	SessionID        string         `json:"session_id"`
	DeckName         string         `json:"deck_name"`
	State            string         `json:"state"`
	DueCount         int            `json:"due_count"`
	Cards            []CardResponse `json:"cards"`
	RecoveredRatings int            `json:"recovered_ratings"`
}

// SessionStatsResponse summarizes a finished session.
type SessionStatsResponse struct {
	CardsReviewed   int            `json:"cards_reviewed"`
	Ratings         map[string]int `json:"ratings"`
	SyncedCount     int            `json:"synced_count"`
	FailedCount     int            `json:"failed_count"`
	DurationMinutes float64        `json:"duration_minutes"`
}

// EndSessionResponse is returned when a session is ended. Warning carries
// a soft sync failure that does not invalidate the stats.
type EndSessionResponse struct {
	SessionID string               `json:"session_id"`
	State     string               `json:"state"`
	Stats     SessionStatsResponse `json:"stats"`
	Warning   string               `json:"warning,omitempty"`
}

// CurrentSessionResponse describes the active session, if any. The full
// card list is not re-served on recovery.
type CurrentSessionResponse struct {
	SessionID      string        `json:"session_id"`
	DeckName       string        `json:"deck_name"`
	State          string        `json:"state"`
	CurrentCard    *CardResponse `json:"current_card"`
	RemainingCount int           `json:"remaining_count"`
	CardsReviewed  int           `json:"cards_reviewed"`
}

// ForceEndResponse is returned by the administrative force-end override.
type ForceEndResponse struct {
	EndedSessions int    `json:"ended_sessions"`
	Message       string `json:"message"`
}

// TokenRequest asks for a transport access token.
type TokenRequest struct {
	RoomName        string `json:"room_name"`
	ParticipantName string `json:"participant_name"`
	DeckName        string `json:"deck_name,omitempty"`
	InputMode       string `json:"input_mode,omitempty"`
}

// TokenResponse carries the transport access token and endpoint.
type TokenResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type startSessionRequest struct {
	DeckName string `json:"deck_name"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

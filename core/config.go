package tutoring

import (
	"os"
	"strconv"
)

const defaultAPIURL = "http://localhost:8000"

// Config carries the environment-driven settings of a review surface.
type Config struct {
	// TransportURL overrides the room endpoint returned by the token
	// grant. Empty means follow the grant.
	TransportURL string
	// APIURL is the base URL of the session API.
	APIURL string
	// TextInputMode switches the surface from voice to typed answers.
	TextInputMode bool
}

// LoadConfig reads configuration from the environment.
func LoadConfig() Config {
	config := Config{APIURL: defaultAPIURL}
	if v := os.Getenv("REVIEW_API_URL"); v != "" {
		config.APIURL = v
	}
	config.TransportURL = os.Getenv("REVIEW_TRANSPORT_URL")
	if v := os.Getenv("REVIEW_TEXT_INPUT"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("ignoring invalid REVIEW_TEXT_INPUT value", "value", v)
		}
		config.TextInputMode = enabled && err == nil
	}
	return config
}

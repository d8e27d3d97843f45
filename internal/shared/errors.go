package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Pipeline errors
	ErrEmptyInput          = fmt.Errorf("empty input")
	ErrTranscription       = fmt.Errorf("transcription failed")
	ErrUpstreamUnavailable = fmt.Errorf("catalog search unavailable")
	ErrPlaylistPersistence = fmt.Errorf("playlist persistence failed")

	// API and service errors
	ErrAPIRequest = fmt.Errorf("API request failed")
	ErrRateLimit  = fmt.Errorf("rate limited")
	ErrNotFound   = fmt.Errorf("not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

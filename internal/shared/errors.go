package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrInvalidLevel  = fmt.Errorf("invalid censorship level")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotInteractive   = fmt.Errorf("credential prompt requires an interactive terminal")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrSessionNotFound    = fmt.Errorf("session not found")
	ErrStreamClosed       = fmt.Errorf("stream closed")

	// Session and review errors
	ErrNotReviewable     = fmt.Errorf("session has no changes to review")
	ErrChangeNotFound    = fmt.Errorf("change not found")
	ErrMalformedChangeID = fmt.Errorf("malformed change id")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

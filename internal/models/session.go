package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/bookclean/internal/shared"
)

// SessionStatus is the closed set of states a processing session moves through.
type SessionStatus int

const (
	SessionUnknown SessionStatus = iota
	SessionUploading
	SessionProcessing
	SessionReview
	SessionComplete
	SessionError
	SessionCancelled
)

var sessionStatusNames = map[SessionStatus]string{
	SessionUploading:  "uploading",
	SessionProcessing: "processing",
	SessionReview:     "review",
	SessionComplete:   "complete",
	SessionError:      "error",
	SessionCancelled:  "cancelled",
}

func (s SessionStatus) String() string {
	return sessionStatusNames[s]
}

// ParseSessionStatus maps a backend status label onto a [SessionStatus].
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uploading", "queued", "pending":
		return SessionUploading, nil
	case "processing", "running":
		return SessionProcessing, nil
	case "review", "reviewing":
		return SessionReview, nil
	case "complete", "completed", "done":
		return SessionComplete, nil
	case "error", "failed":
		return SessionError, nil
	case "cancelled", "canceled":
		return SessionCancelled, nil
	default:
		return SessionUnknown, fmt.Errorf("%w: unknown session status %q", shared.ErrInvalidArgument, s)
	}
}

// Terminal reports whether no further events are expected for this status.
//
// Review counts as terminal for streaming: processing is over and the full change set can be fetched.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionReview, SessionComplete, SessionError, SessionCancelled:
		return true
	default:
		return false
	}
}

// Reviewable reports whether the session carries a change set.
func (s SessionStatus) Reviewable() bool {
	return s == SessionReview || s == SessionComplete
}

func (s SessionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = SessionUnknown
		return nil
	}
	status, err := ParseSessionStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Session is the backend's view of one processing job.
//
// Phase is a free-form pipeline label and only meaningful while Status is [SessionProcessing].
type Session struct {
	ID       string        `json:"session_id"`
	Filename string        `json:"filename"`
	Status   SessionStatus `json:"status"`
	Phase    string        `json:"phase,omitempty"`
	Progress int           `json:"progress"`
	Error    string        `json:"error,omitempty"`
	Chapters []Chapter     `json:"chapters,omitempty"`
	Changes  []Change      `json:"changes,omitempty"`
}

// StatusUpdate is one snapshot from the status stream.
type StatusUpdate struct {
	Progress int           `json:"progress"`
	Phase    string        `json:"phase"`
	Status   SessionStatus `json:"status"`
	Error    string        `json:"error,omitempty"`
}

// LogLine is one message from the log stream.
type LogLine struct {
	Message string `json:"message"`
}

// ProcessOptions are the target levels and model sent when processing starts.
type ProcessOptions struct {
	Language int    `json:"language"`
	Sexual   int    `json:"sexual"`
	Violence int    `json:"violence"`
	Model    string `json:"model,omitempty"`
}

// ClampProgress bounds a progress value to 0..100.
func ClampProgress(p int) int {
	return max(0, min(100, p))
}

package repositories

import (
	"fmt"

	"github.com/desertthunder/bookclean/internal/models"
)

// Recorder writes engine snapshots and decisions into the local history.
type Recorder struct {
	Sessions  *SessionRepository
	Decisions *DecisionRepository
}

// NewRecorder wraps the two repositories.
func NewRecorder(sessions *SessionRepository, decisions *DecisionRepository) *Recorder {
	return &Recorder{Sessions: sessions, Decisions: decisions}
}

// RecordSession creates or refreshes the local record for s.
func (r *Recorder) RecordSession(s models.Session, shareURL string) error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	_, err := r.Sessions.Upsert(s, shareURL)
	return err
}

// RecordDecision appends a confirmed decision. Pending changes are not decisions and are ignored.
func (r *Recorder) RecordDecision(sessionID string, c models.Change) error {
	if c.Status == models.StatusPending {
		return nil
	}
	return r.Decisions.Create(models.NewDecision(0, sessionID, c))
}

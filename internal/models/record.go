package models

import (
	"fmt"
	"time"
)

// SessionRecord is the local record of a session this client has started, resumed, or opened.
type SessionRecord struct {
	id           string
	sequence     int
	sessionID    string
	filename     string
	status       SessionStatus
	phase        string
	progress     int
	errorMessage string
	shareURL     string
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewSessionRecord creates a record from a backend session snapshot.
func NewSessionRecord(sequence int, s Session, shareURL string) *SessionRecord {
	now := time.Now()
	return &SessionRecord{
		sequence:     sequence,
		sessionID:    s.ID,
		filename:     s.Filename,
		status:       s.Status,
		phase:        s.Phase,
		progress:     ClampProgress(s.Progress),
		errorMessage: s.Error,
		shareURL:     shareURL,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (r *SessionRecord) ID() string { return r.id }
func (r *SessionRecord) Sequence() int { return r.sequence }
func (r *SessionRecord) SessionID() string { return r.sessionID }
func (r *SessionRecord) Filename() string { return r.filename }
func (r *SessionRecord) Status() SessionStatus { return r.status }
func (r *SessionRecord) Phase() string { return r.phase }
func (r *SessionRecord) Progress() int { return r.progress }
func (r *SessionRecord) ErrorMessage() string { return r.errorMessage }
func (r *SessionRecord) ShareURL() string { return r.shareURL }
func (r *SessionRecord) CreatedAt() time.Time { return r.createdAt }
func (r *SessionRecord) UpdatedAt() time.Time { return r.updatedAt }
func (r *SessionRecord) DeletedAt() *time.Time { return r.deletedAt }

func (r *SessionRecord) SetID(id string) { r.id = id }
func (r *SessionRecord) SetSequence(seq int) { r.sequence = seq }
func (r *SessionRecord) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *SessionRecord) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *SessionRecord) SetDeletedAt(t *time.Time) { r.deletedAt = t }
func (r *SessionRecord) SetShareURL(link string) { r.shareURL = link }
func (r *SessionRecord) SetErrorMessage(msg string) { r.errorMessage = msg }
func (r *SessionRecord) SetStatus(s SessionStatus) { r.status = s }
func (r *SessionRecord) SetFilename(filename string) { r.filename = filename }
func (r *SessionRecord) SetPhase(phase string) { r.phase = phase }
func (r *SessionRecord) SetProgress(progress int) { r.progress = ClampProgress(progress) }

// Apply copies the mutable fields of a newer backend snapshot onto the record.
func (r *SessionRecord) Apply(s Session) {
	if s.Filename != "" {
		r.filename = s.Filename
	}
	if s.Status != SessionUnknown {
		r.status = s.Status
	}
	r.phase = s.Phase
	r.progress = ClampProgress(s.Progress)
	r.errorMessage = s.Error
}

// Validate checks if the record has the fields required for persistence.
func (r *SessionRecord) Validate() error {
	if r.sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if r.status == SessionUnknown {
		return fmt.Errorf("session status is required")
	}
	if r.progress < 0 || r.progress > 100 {
		return fmt.Errorf("progress out of range: %d", r.progress)
	}
	return nil
}

// Decision is a confirmed accept or reject of one change, with the text that was accepted.
type Decision struct {
	id           string
	sequence     int
	sessionID    string
	changeID     string
	chapterIndex int
	status       ChangeStatus
	proposedText string
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewDecision records the current state of a change for the given session.
func NewDecision(sequence int, sessionID string, c Change) *Decision {
	now := time.Now()
	return &Decision{
		sequence:     sequence,
		sessionID:    sessionID,
		changeID:     c.ID.Raw(),
		chapterIndex: c.ChapterIndex,
		status:       c.Status,
		proposedText: c.Proposed,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (d *Decision) ID() string { return d.id }
func (d *Decision) Sequence() int { return d.sequence }
func (d *Decision) SessionID() string { return d.sessionID }
func (d *Decision) ChangeID() string { return d.changeID }
func (d *Decision) ChapterIndex() int { return d.chapterIndex }
func (d *Decision) Status() ChangeStatus { return d.status }
func (d *Decision) ProposedText() string { return d.proposedText }
func (d *Decision) CreatedAt() time.Time { return d.createdAt }
func (d *Decision) UpdatedAt() time.Time { return d.updatedAt }
func (d *Decision) DeletedAt() *time.Time { return d.deletedAt }

func (d *Decision) SetID(id string) { d.id = id }
func (d *Decision) SetSequence(seq int) { d.sequence = seq }
func (d *Decision) SetCreatedAt(t time.Time) { d.createdAt = t }
func (d *Decision) SetUpdatedAt(t time.Time) { d.updatedAt = t }
func (d *Decision) SetDeletedAt(t *time.Time) { d.deletedAt = t }
func (d *Decision) SetStatus(s ChangeStatus) { d.status = s }
func (d *Decision) SetProposedText(text string) { d.proposedText = text }

// Validate checks that the decision is a final, attributable status.
func (d *Decision) Validate() error {
	if d.sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if d.changeID == "" {
		return fmt.Errorf("change id is required")
	}
	if d.status == StatusPending {
		return fmt.Errorf("decision status must be accepted or rejected")
	}
	return nil
}

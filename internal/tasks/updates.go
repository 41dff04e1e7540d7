package tasks

import (
	"fmt"

	"github.com/desertthunder/bookclean/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Kind      UpdateKind           // What happened
	SessionID string               // Session the update belongs to
	Status    models.SessionStatus // Status after the update
	Phase     string               // Backend pipeline label while processing
	Progress  int                  // Percent complete, 0-100
	Step      int                  // Current step number for bulk operations
	Total     int                  // Total steps for bulk operations
	Message   string               // Human-readable message for display
	Data      any                  // Optional kind-specific data for advanced UIs
}

// UpdateKind enumerates progress events.
type UpdateKind int

const (
	StatusChanged UpdateKind = iota
	LogReceived
	Resuming
	Finished
	Notice
	Exported
)

func (k UpdateKind) String() string {
	switch k {
	case StatusChanged:
		return "status"
	case LogReceived:
		return "log"
	case Resuming:
		return "resuming"
	case Finished:
		return "finished"
	case Notice:
		return "notice"
	case Exported:
		return "exported"
	default:
		return ""
	}
}

func statusUpdate(s models.Session) ProgressUpdate {
	msg := fmt.Sprintf("%s %d%%", s.Status, s.Progress)
	if s.Phase != "" && s.Status == models.SessionProcessing {
		msg = fmt.Sprintf("%s (%s) %d%%", s.Status, s.Phase, s.Progress)
	}
	return ProgressUpdate{
		Kind:      StatusChanged,
		SessionID: s.ID,
		Status:    s.Status,
		Phase:     s.Phase,
		Progress:  s.Progress,
		Message:   msg,
	}
}

func logUpdate(s models.Session, line string) ProgressUpdate {
	return ProgressUpdate{
		Kind:      LogReceived,
		SessionID: s.ID,
		Status:    s.Status,
		Phase:     s.Phase,
		Progress:  s.Progress,
		Message:   line,
	}
}

func resumingUpdate(s models.Session) ProgressUpdate {
	u := statusUpdate(s)
	u.Kind = Resuming
	u.Message = resumeMarker(s)
	return u
}

func resumeMarker(s models.Session) string {
	return fmt.Sprintf("--- resuming session %s at %d%% ---", s.ID, s.Progress)
}

func finishedUpdate(s models.Session, err error) ProgressUpdate {
	u := statusUpdate(s)
	u.Kind = Finished
	switch {
	case err != nil:
		u.Message = fmt.Sprintf("Session %s ended with error: %v", s.ID, err)
		u.Data = err
	case s.Status == models.SessionCancelled:
		u.Message = fmt.Sprintf("Session %s cancelled", s.ID)
	default:
		u.Message = fmt.Sprintf("Session %s is %s", s.ID, s.Status)
	}
	return u
}

func noticeUpdate(sessionID, format string, args ...any) ProgressUpdate {
	return ProgressUpdate{
		Kind:      Notice,
		SessionID: sessionID,
		Message:   fmt.Sprintf(format, args...),
	}
}

func exportStartedUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Kind:      Notice,
		SessionID: id,
		Step:      step,
		Total:     total,
		Message:   fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, id),
	}
}

func exportCompletedUpdate(step, total int, id string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Kind:      Exported,
		SessionID: id,
		Step:      step,
		Total:     total,
		Message:   fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, id, filesCount),
	}
}

func exportFailedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Kind:      Exported,
		SessionID: id,
		Step:      step,
		Total:     total,
		Message:   fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
		Data:      err,
	}
}

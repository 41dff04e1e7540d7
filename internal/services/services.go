// package services defines the [Backend] interface for the book cleaning service
package services

import (
	"context"
	"io"

	"github.com/desertthunder/bookclean/internal/models"
)

// Backend is the external processing service a session is driven against.
type Backend interface {
	// Upload sends the book file and returns the new session, normally in processing.
	Upload(ctx context.Context, filename string, r io.Reader) (*models.Session, error)

	// StartProcessing begins rating and cleaning with the given target levels.
	StartProcessing(ctx context.Context, sessionID string, opts models.ProcessOptions) error

	// StreamLogs subscribes to the session's log lines from now on.
	StreamLogs(ctx context.Context, sessionID string) (Stream[models.LogLine], error)

	// StreamStatus subscribes to progress snapshots.
	StreamStatus(ctx context.Context, sessionID string) (Stream[models.StatusUpdate], error)

	// GetSession fetches the session, including its changes once it is reviewable.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// UpdateChange records a decision and the final proposed text for one change.
	UpdateChange(ctx context.Context, sessionID, changeID string, status models.ChangeStatus, proposed string) error

	// AcceptAllChanges accepts every pending change on the backend.
	AcceptAllChanges(ctx context.Context, sessionID string) error

	// Export downloads the final artifact.
	Export(ctx context.Context, sessionID string) (*Artifact, error)

	// Cancel stops the backend worker for the session.
	Cancel(ctx context.Context, sessionID string) error

	// SetCredentials attaches credentials to every later request.
	SetCredentials(creds Credentials)
}

// Stream is a cancellable sequence of events read by iteration.
type Stream[T any] interface {
	// Next blocks for the next event. It returns [io.EOF] when the stream ends normally and
	// [shared.ErrStreamClosed] once Close has been called.
	Next() (T, error)

	// Close releases the subscription. It is safe to call more than once and from another goroutine.
	Close() error
}

// Credentials are the username and password sent as basic auth.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether no username was supplied.
func (c Credentials) Empty() bool {
	return c.Username == ""
}

// Artifact is the exported book as returned by the backend.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

package testing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/services"
	"github.com/desertthunder/bookclean/internal/shared"
)

// FakeStream is an in-memory [services.Stream].
//
// It yields Events in order, then returns Err (or [io.EOF]). With Hold set it blocks after the
// last event until closed or the context ends.
type FakeStream[T any] struct {
	Events []T
	Err    error
	Hold   bool

	ctx    context.Context
	mu     sync.Mutex
	next   int
	done   chan struct{}
	once   sync.Once
	closed bool
}

func newFakeStream[T any](ctx context.Context, events []T, err error, hold bool) *FakeStream[T] {
	return &FakeStream[T]{Events: events, Err: err, Hold: hold, ctx: ctx, done: make(chan struct{})}
}

func (s *FakeStream[T]) Next() (T, error) {
	var zero T

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return zero, shared.ErrStreamClosed
	}
	if s.next < len(s.Events) {
		ev := s.Events[s.next]
		s.next++
		s.mu.Unlock()
		return ev, nil
	}
	s.mu.Unlock()

	if s.Hold {
		select {
		case <-s.done:
			return zero, shared.ErrStreamClosed
		case <-s.ctx.Done():
			return zero, s.ctx.Err()
		}
	}
	if s.Err != nil {
		return zero, s.Err
	}
	return zero, io.EOF
}

func (s *FakeStream[T]) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

// Closed reports whether Close was called.
func (s *FakeStream[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ChangeUpdate records one UpdateChange call.
type ChangeUpdate struct {
	SessionID string
	ChangeID  string
	Status    models.ChangeStatus
	Proposed  string
}

// FakeBackend is an in-memory [services.Backend] for engine and command tests.
//
// When Want is set, every call made with different credentials fails with
// [shared.ErrNotAuthenticated]. Sessions are returned by copy.
type FakeBackend struct {
	mu sync.Mutex

	Sessions      map[string]*models.Session
	UploadSession *models.Session
	Want          services.Credentials
	Creds         services.Credentials

	StatusEvents []models.StatusUpdate
	LogEvents    []models.LogLine
	StatusErr    error
	HoldStatus   bool
	HoldLogs     bool

	UploadErr error
	StartErr  error
	GetErr    error
	UpdateErr error
	CancelErr error
	Artifact  *services.Artifact

	Calls         []string
	Updates       []ChangeUpdate
	StatusStreams []*FakeStream[models.StatusUpdate]
	LogStreams    []*FakeStream[models.LogLine]
	Uploaded      []string
	Started       []models.ProcessOptions
}

// NewFakeBackend returns a backend holding the given sessions.
func NewFakeBackend(sessions ...*models.Session) *FakeBackend {
	f := &FakeBackend{Sessions: make(map[string]*models.Session)}
	for _, s := range sessions {
		f.Sessions[s.ID] = s
	}
	return f
}

func (f *FakeBackend) record(call string) error {
	f.Calls = append(f.Calls, call)
	if !f.Want.Empty() && f.Creds != f.Want {
		return fmt.Errorf("%w: status 401", shared.ErrNotAuthenticated)
	}
	return nil
}

// CallCount returns how many times call was made.
func (f *FakeBackend) CallCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == call {
			n++
		}
	}
	return n
}

// SetSession replaces a stored session.
func (f *FakeBackend) SetSession(s *models.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sessions[s.ID] = s
}

func (f *FakeBackend) Upload(ctx context.Context, filename string, r io.Reader) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("upload"); err != nil {
		return nil, err
	}
	if f.UploadErr != nil {
		return nil, f.UploadErr
	}
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	f.Uploaded = append(f.Uploaded, filename)

	s := f.UploadSession
	if s == nil {
		s = &models.Session{ID: "session-1", Status: models.SessionProcessing}
	}
	s.Filename = filename
	if _, ok := f.Sessions[s.ID]; !ok {
		f.Sessions[s.ID] = s
	}
	out := *s
	return &out, nil
}

func (f *FakeBackend) StartProcessing(ctx context.Context, sessionID string, opts models.ProcessOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("start"); err != nil {
		return err
	}
	f.Started = append(f.Started, opts)
	return f.StartErr
}

func (f *FakeBackend) StreamLogs(ctx context.Context, sessionID string) (services.Stream[models.LogLine], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("logs"); err != nil {
		return nil, err
	}
	s := newFakeStream(ctx, f.LogEvents, nil, f.HoldLogs)
	f.LogStreams = append(f.LogStreams, s)
	return s, nil
}

func (f *FakeBackend) StreamStatus(ctx context.Context, sessionID string) (services.Stream[models.StatusUpdate], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("status"); err != nil {
		return nil, err
	}
	s := newFakeStream(ctx, f.StatusEvents, f.StatusErr, f.HoldStatus)
	f.StatusStreams = append(f.StatusStreams, s)
	return s, nil
}

func (f *FakeBackend) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("get"); err != nil {
		return nil, err
	}
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	s, ok := f.Sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, sessionID)
	}
	out := *s
	out.Chapters = cloneChapters(s.Chapters)
	out.Changes = append([]models.Change(nil), s.Changes...)
	return &out, nil
}

func cloneChapters(chapters []models.Chapter) []models.Chapter {
	out := make([]models.Chapter, len(chapters))
	for i, ch := range chapters {
		out[i] = ch
		out[i].Changes = append([]models.Change(nil), ch.Changes...)
	}
	return out
}

func (f *FakeBackend) UpdateChange(ctx context.Context, sessionID, changeID string, status models.ChangeStatus, proposed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("update"); err != nil {
		return err
	}
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.Updates = append(f.Updates, ChangeUpdate{sessionID, changeID, status, proposed})
	return nil
}

func (f *FakeBackend) AcceptAllChanges(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("accept-all"); err != nil {
		return err
	}
	return f.UpdateErr
}

func (f *FakeBackend) Export(ctx context.Context, sessionID string) (*services.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("export"); err != nil {
		return nil, err
	}
	if f.Artifact == nil {
		return &services.Artifact{Filename: sessionID + ".epub", Data: []byte("book")}, nil
	}
	return f.Artifact, nil
}

func (f *FakeBackend) Cancel(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("cancel"); err != nil {
		return err
	}
	if f.CancelErr != nil {
		return f.CancelErr
	}
	if s, ok := f.Sessions[sessionID]; ok {
		s.Status = models.SessionCancelled
	}
	return nil
}

func (f *FakeBackend) SetCredentials(creds services.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creds = creds
}

var _ services.Backend = (*FakeBackend)(nil)

// FakePrompter returns fixed credentials and counts prompts.
type FakePrompter struct {
	mu    sync.Mutex
	Creds services.Credentials
	Err   error
	calls int
}

func (p *FakePrompter) PromptCredentials(ctx context.Context, reason error) (services.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.Creds, p.Err
}

// Calls returns how many times the prompter was asked.
func (p *FakePrompter) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

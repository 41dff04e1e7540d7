package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/review"
	"github.com/desertthunder/bookclean/internal/shared"
)

// Snapshot is a consistent copy of a tracker's session state.
type Snapshot struct {
	models.Session
	ShareURL  string
	Watching  bool
	Cancelled bool
	Err       error
	LogCount  int
}

// ReviewState is a consistent copy of the review position.
type ReviewState struct {
	Current       models.Change
	HasCurrent    bool
	Index         int
	Pending       int
	Counts        review.Counts
	Chapter       int
	EmptyChapter  bool
	ChapterCounts review.Counts
	Chapters      []models.Chapter
}

// Tracker owns the mutable state of one session.
//
// Status updates, log lines, change set replacement and review mutations all go through its lock,
// so a status update can never interleave with a partial change set replacement.
type Tracker struct {
	mu        sync.RWMutex
	session   models.Session
	shareURL  string
	set       *review.ChangeSet
	cursor    *review.Cursor
	logs      []string
	err       error
	cancelled bool
	watching  bool
	cancel    context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

func newTracker(s models.Session, shareURL string) *Tracker {
	s.Chapters, s.Changes = nil, nil
	t := &Tracker{session: s, shareURL: shareURL, done: make(chan struct{})}
	return t
}

// ID returns the session id.
func (t *Tracker) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.session.ID
}

// Snapshot returns the current session state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		Session:   t.session,
		ShareURL:  t.shareURL,
		Watching:  t.watching,
		Cancelled: t.cancelled,
		Err:       t.err,
		LogCount:  len(t.logs),
	}
}

// Logs returns every log line received since tracking began.
func (t *Tracker) Logs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.logs...)
}

// Done is closed once the session reaches a terminal state for streaming purposes.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until Done or ctx ends and returns the tracker's terminal error.
func (t *Tracker) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the terminal error, if any.
func (t *Tracker) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Watching reports whether streams are still being consumed.
func (t *Tracker) Watching() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.watching
}

// Reviewable reports whether a change set is loaded.
func (t *Tracker) Reviewable() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.set != nil
}

// Review returns the current review position, or false when no change set is loaded.
func (t *Tracker) Review() (ReviewState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.set == nil {
		return ReviewState{}, false
	}
	return t.reviewState(), true
}

// Navigate runs fn against the cursor under the tracker lock. Navigation never contacts the backend.
func (t *Tracker) Navigate(fn func(*review.Cursor)) (ReviewState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.set == nil {
		return ReviewState{}, shared.ErrNotReviewable
	}
	fn(t.cursor)
	return t.reviewState(), nil
}

func (t *Tracker) reviewState() ReviewState {
	cur, ok := t.cursor.Current()
	chapter := t.cursor.SelectedChapter()
	return ReviewState{
		Current:       cur,
		HasCurrent:    ok,
		Index:         t.cursor.Index(),
		Pending:       t.cursor.Len(),
		Counts:        t.set.Counts(),
		Chapter:       chapter,
		EmptyChapter:  t.cursor.ViewingEmptyChapter(),
		ChapterCounts: t.set.ChapterCounts(chapter),
		Chapters:      t.set.Chapters(),
	}
}

// current returns the change under the cursor.
func (t *Tracker) current() (models.Change, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.set == nil {
		return models.Change{}, shared.ErrNotReviewable
	}
	cur, ok := t.cursor.Current()
	if !ok {
		return models.Change{}, shared.ErrChangeNotFound
	}
	return cur, nil
}

// lookup resolves a change reference against the loaded change set.
func (t *Tracker) lookup(ref string) (models.Change, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.set == nil {
		return models.Change{}, shared.ErrNotReviewable
	}
	c, ok := t.set.Lookup(ref)
	if !ok {
		return models.Change{}, shared.ErrChangeNotFound
	}
	return c, nil
}

// mutate applies fn to the change set and cursor under the tracker lock.
func (t *Tracker) mutate(fn func(*review.ChangeSet, *review.Cursor) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.set == nil {
		return shared.ErrNotReviewable
	}
	return fn(t.set, t.cursor)
}

func (t *Tracker) startWatching(cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watching = true
	t.cancel = cancel
}

// applyStatus merges a status snapshot and returns the session state that results.
func (t *Tracker) applyStatus(u models.StatusUpdate) models.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return t.session
	}
	if u.Status != models.SessionUnknown {
		t.session.Status = u.Status
	}
	t.session.Phase = u.Phase
	t.session.Progress = models.ClampProgress(u.Progress)
	if u.Error != "" {
		t.session.Error = u.Error
	}
	return t.session
}

func (t *Tracker) appendLog(line string) models.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs = append(t.logs, line)
	return t.session
}

func (t *Tracker) setStatus(s models.SessionStatus) models.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.Status = s
	return t.session
}

// finish installs the definitive session from a terminal fetch and closes Done.
//
// A cancelled tracker ignores the fetched session and never exposes a change set.
func (t *Tracker) finish(s *models.Session, err error) models.Session {
	t.mu.Lock()
	defer func() {
		t.mu.Unlock()
		t.doneOnce.Do(func() { close(t.done) })
	}()

	t.watching = false
	if t.cancelled {
		return t.session
	}
	if err != nil {
		t.err = err
		return t.session
	}
	if s != nil {
		t.load(*s)
	}
	return t.session
}

// load replaces the session state; a reviewable session gets a fresh change set.
func (t *Tracker) load(s models.Session) {
	id := t.session.ID
	if s.ID == "" {
		s.ID = id
	}
	if s.Filename == "" {
		s.Filename = t.session.Filename
	}

	if s.Status.Reviewable() {
		t.set = review.FromSession(s)
		t.cursor = review.NewCursor(t.set)
	} else {
		t.set, t.cursor = nil, nil
	}
	s.Chapters, s.Changes = nil, nil
	s.Progress = models.ClampProgress(s.Progress)
	t.session = s
	t.err = nil
}

// markCancelled moves the tracker to the cancelled terminal state and stops its watch.
func (t *Tracker) markCancelled() models.Session {
	t.mu.Lock()
	t.cancelled = true
	t.session.Status = models.SessionCancelled
	t.set, t.cursor = nil, nil
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !t.Watching() {
		t.doneOnce.Do(func() { close(t.done) })
	}
	return t.Snapshot().Session
}

// warnings returns the change set's load warnings.
func (t *Tracker) warnings() []error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.set == nil {
		return nil
	}
	return t.set.Warnings()
}

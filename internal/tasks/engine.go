package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookclean/internal/formatter"
	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/review"
	"github.com/desertthunder/bookclean/internal/services"
	"github.com/desertthunder/bookclean/internal/shared"
)

const defaultFetchTimeout = 30 * time.Second

// Prompter asks the user for credentials after an authentication failure.
type Prompter interface {
	PromptCredentials(ctx context.Context, reason error) (services.Credentials, error)
}

// Recorder persists session snapshots and review decisions.
//
// Recording is best effort: failures are logged and never interrupt a session.
type Recorder interface {
	RecordSession(s models.Session, shareURL string) error
	RecordDecision(sessionID string, c models.Change) error
}

// EngineOpts contains optional collaborators and tuning for an [Engine].
type EngineOpts struct {
	Prompter     Prompter      // Asked once per operation on an auth failure; nil fails immediately
	Recorder     Recorder      // Optional local history
	Logger       *log.Logger   // Defaults to a stderr logger
	ShareURL     string        // Base of shareable session links
	FetchTimeout time.Duration // Bound on the terminal fetch
	WatchTimeout time.Duration // Optional bound on waiting for a terminal status; zero waits forever
}

// Engine drives sessions against a [services.Backend].
type Engine struct {
	backend  services.Backend
	registry *Registry
	prompter Prompter
	recorder Recorder
	logger   *log.Logger

	shareURL     string
	fetchTimeout time.Duration
	watchTimeout time.Duration

	promptMu sync.Mutex
	reviewMu sync.Mutex
	wg       sync.WaitGroup
}

// NewEngine creates an engine with an empty registry.
func NewEngine(backend services.Backend, opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}

	return &Engine{
		backend:      backend,
		registry:     NewRegistry(),
		prompter:     opts.Prompter,
		recorder:     opts.Recorder,
		logger:       opts.Logger,
		shareURL:     opts.ShareURL,
		fetchTimeout: opts.FetchTimeout,
		watchTimeout: opts.WatchTimeout,
	}
}

// Registry returns the engine's session registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// SetPrompter replaces the credential prompter, e.g. once a terminal UI owns the screen.
func (e *Engine) SetPrompter(p Prompter) {
	e.promptMu.Lock()
	defer e.promptMu.Unlock()
	e.prompter = p
}

// Wait blocks until every watch started by the engine has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// withAuthRetry runs op and, on an authentication error, prompts once and retries once.
//
// A second authentication failure, or no way to prompt, is returned as [shared.ErrAuthFailed].
func (e *Engine) withAuthRetry(ctx context.Context, name string, op func(context.Context) error) error {
	err := op(ctx)
	if !errors.Is(err, shared.ErrNotAuthenticated) {
		return err
	}

	e.promptMu.Lock()
	prompter := e.prompter
	if prompter == nil {
		e.promptMu.Unlock()
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	e.logger.Warn("authentication required", "operation", name)
	creds, perr := prompter.PromptCredentials(ctx, err)
	e.promptMu.Unlock()
	if perr != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, perr)
	}
	e.backend.SetCredentials(creds)

	if err := op(ctx); err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return err
	}
	return nil
}

func (e *Engine) link(id string) string {
	if e.shareURL == "" {
		return ""
	}
	link, err := shared.ShareURL(e.shareURL, id)
	if err != nil {
		e.logger.Debug("could not build share link", "session", id, "error", err)
		return ""
	}
	return link
}

func (e *Engine) record(s models.Session) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordSession(s, e.link(s.ID)); err != nil {
		e.logger.Warn("failed to record session", "session", s.ID, "error", err)
	}
}

func (e *Engine) recordDecision(id string, c models.Change) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordDecision(id, c); err != nil {
		e.logger.Warn("failed to record decision", "session", id, "change", c.ID.Raw(), "error", err)
	}
}

// register replaces any idle tracker for the session with a fresh one.
func (e *Engine) register(s models.Session) (*Tracker, error) {
	if old, ok := e.registry.Get(s.ID); ok {
		if old.Watching() {
			return nil, fmt.Errorf("%w: session %s is already being watched", shared.ErrInvalidInput, s.ID)
		}
		e.registry.Remove(s.ID)
	}

	t := newTracker(s, e.link(s.ID))
	if err := e.registry.Create(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Start uploads the file, starts processing and begins watching the new session.
//
// Upload or start failures are returned before any stream is opened.
func (e *Engine) Start(ctx context.Context, path string, opts models.ProcessOptions, progress chan<- ProgressUpdate) (*Tracker, error) {
	var session *models.Session
	err := e.withAuthRetry(ctx, "start", func(ctx context.Context) error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		s, err := e.backend.Upload(ctx, filepath.Base(path), f)
		if err != nil {
			return err
		}
		e.logger.Info("uploaded", "session", s.ID, "file", s.Filename)

		if err := e.backend.StartProcessing(ctx, s.ID, opts); err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionUnknown || session.Status == models.SessionUploading {
		session.Status = models.SessionProcessing
	}
	if session.Phase == "" {
		session.Phase = "converting"
	}

	t, err := e.register(*session)
	if err != nil {
		return nil, err
	}
	e.record(t.Snapshot().Session)
	e.sendProgress(progress, statusUpdate(t.Snapshot().Session))
	e.watch(ctx, t, progress)
	return t, nil
}

// Resume fetches a session once by id or share link.
//
// A processing session is watched again from now on, behind a resume marker; earlier log lines
// are not replayed. A session that is already reviewable or terminal opens no streams.
func (e *Engine) Resume(ctx context.Context, ref string, progress chan<- ProgressUpdate) (*Tracker, error) {
	id, err := shared.ParseSessionRef(ref)
	if err != nil {
		return nil, err
	}
	if t, ok := e.registry.Get(id); ok && t.Watching() {
		return t, nil
	}

	session, err := e.fetch(ctx, "resume", id)
	if err != nil {
		return nil, err
	}

	t, err := e.register(*session)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case models.SessionProcessing, models.SessionUploading:
		snap := t.Snapshot().Session
		t.appendLog(resumeMarker(snap))
		e.logger.Info("resuming", "session", id, "phase", snap.Phase, "progress", snap.Progress)
		e.record(snap)
		e.sendProgress(progress, resumingUpdate(snap))
		e.watch(ctx, t, progress)
	default:
		final := t.finish(session, nil)
		e.warn(t)
		e.record(final)
		e.sendProgress(progress, finishedUpdate(final, nil))
	}
	return t, nil
}

// Open fetches a session and registers it without streaming, whatever its status.
func (e *Engine) Open(ctx context.Context, ref string) (*Tracker, error) {
	id, err := shared.ParseSessionRef(ref)
	if err != nil {
		return nil, err
	}
	if t, ok := e.registry.Get(id); ok && t.Watching() {
		return t, nil
	}

	session, err := e.fetch(ctx, "open", id)
	if err != nil {
		return nil, err
	}

	t, err := e.register(*session)
	if err != nil {
		return nil, err
	}
	final := t.finish(session, nil)
	e.warn(t)
	e.record(final)
	return t, nil
}

func (e *Engine) fetch(ctx context.Context, name, id string) (*models.Session, error) {
	var session *models.Session
	err := e.withAuthRetry(ctx, name, func(ctx context.Context) error {
		s, err := e.backend.GetSession(ctx, id)
		session = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (e *Engine) warn(t *Tracker) {
	for _, w := range t.warnings() {
		e.logger.Warn("change set", "session", t.ID(), "warning", w)
	}
}

// watch consumes the log and status streams in the background until the status stream ends.
func (e *Engine) watch(ctx context.Context, t *Tracker, progress chan<- ProgressUpdate) {
	var (
		watchCtx context.Context
		cancel   context.CancelFunc
	)
	if e.watchTimeout > 0 {
		watchCtx, cancel = context.WithTimeout(ctx, e.watchTimeout)
	} else {
		watchCtx, cancel = context.WithCancel(ctx)
	}
	t.startWatching(cancel)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.consume(watchCtx, t, progress)
	}()
}

// consume runs both subscriptions and then performs the terminal fetch.
//
// The status stream is authoritative: its end (normal, error, timeout or a terminal status)
// tears down the log stream before the session is fetched one last time.
func (e *Engine) consume(ctx context.Context, t *Tracker, progress chan<- ProgressUpdate) {
	id := t.ID()
	logger := shared.WithLogger(e.logger, "session", id)

	logCtx, stopLogs := context.WithCancel(ctx)
	var logsDone sync.WaitGroup

	var logs services.Stream[models.LogLine]
	err := e.withAuthRetry(logCtx, "log stream", func(ctx context.Context) error {
		var err error
		logs, err = e.backend.StreamLogs(ctx, id)
		return err
	})
	if err != nil {
		logger.Warn("log stream unavailable", "error", err)
	} else {
		logsDone.Add(1)
		go func() {
			defer logsDone.Done()
			for {
				line, err := logs.Next()
				if err != nil {
					if !errors.Is(err, io.EOF) && !errors.Is(err, shared.ErrStreamClosed) && logCtx.Err() == nil {
						logger.Debug("log stream ended", "error", err)
					}
					return
				}
				snap := t.appendLog(line.Message)
				e.sendProgress(progress, logUpdate(snap, line.Message))
			}
		}()
	}

	var status services.Stream[models.StatusUpdate]
	err = e.withAuthRetry(ctx, "status stream", func(ctx context.Context) error {
		var err error
		status, err = e.backend.StreamStatus(ctx, id)
		return err
	})
	if err != nil {
		logger.Warn("status stream unavailable", "error", err)
	} else {
		for {
			u, err := status.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					logger.Warn("status stream ended", "error", err)
				}
				break
			}
			snap := t.applyStatus(u)
			e.sendProgress(progress, statusUpdate(snap))
			if snap.Status.Terminal() {
				break
			}
		}
		status.Close()
	}

	stopLogs()
	if logs != nil {
		logs.Close()
	}
	logsDone.Wait()

	if t.Snapshot().Cancelled {
		final := t.finish(nil, nil)
		e.sendProgress(progress, finishedUpdate(final, nil))
		return
	}

	var session *models.Session
	err = e.withAuthRetry(context.WithoutCancel(ctx), "terminal fetch", func(ctx context.Context) error {
		fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()
		var err error
		session, err = e.backend.GetSession(fetchCtx, id)
		return err
	})
	if err != nil {
		logger.Error("terminal fetch failed", "error", err)
	}
	final := t.finish(session, err)
	if err == nil {
		e.warn(t)
	}
	e.record(final)
	e.sendProgress(progress, finishedUpdate(final, err))
}

// Cancel stops the backend worker and moves the session to the cancelled terminal state.
func (e *Engine) Cancel(ctx context.Context, ref string) error {
	id, err := shared.ParseSessionRef(ref)
	if err != nil {
		return err
	}

	if err := e.withAuthRetry(ctx, "cancel", func(ctx context.Context) error {
		return e.backend.Cancel(ctx, id)
	}); err != nil {
		return err
	}

	t, ok := e.registry.Get(id)
	if !ok {
		t = newTracker(models.Session{ID: id}, e.link(id))
		if err := e.registry.Create(t); err != nil {
			return err
		}
	}
	final := t.markCancelled()
	e.logger.Info("cancelled", "session", id)
	e.record(final)
	return nil
}

// tracker returns the registered tracker for ref, opening the session when it is not tracked yet.
func (e *Engine) tracker(ctx context.Context, ref string) (*Tracker, error) {
	id, err := shared.ParseSessionRef(ref)
	if err != nil {
		return nil, err
	}
	if t, ok := e.registry.Get(id); ok {
		return t, nil
	}
	return e.Open(ctx, id)
}

// decide confirms a decision with the backend, then applies it locally.
func (e *Engine) decide(ctx context.Context, t *Tracker, target models.Change, status models.ChangeStatus, proposed string) (models.Change, error) {
	id := t.ID()
	err := e.withAuthRetry(ctx, "update change", func(ctx context.Context) error {
		return e.backend.UpdateChange(ctx, id, target.ID.Raw(), status, proposed)
	})
	if err != nil {
		return models.Change{}, err
	}

	var result models.Change
	err = t.mutate(func(set *review.ChangeSet, cursor *review.Cursor) error {
		if cur, ok := cursor.Current(); ok && cur.ID.Same(target.ID) {
			var err error
			switch status {
			case models.StatusAccepted:
				result, err = cursor.AcceptCurrent(proposed)
				return err
			case models.StatusRejected:
				result, err = cursor.RejectCurrent()
				return err
			}
		}

		if status == models.StatusAccepted {
			if err := set.SetProposed(target.ID, proposed); err != nil {
				return err
			}
		}
		if err := set.SetStatus(target.ID, status); err != nil {
			return err
		}
		cursor.Resync()
		result, _ = set.Lookup(target.ID.String())
		return nil
	})
	if err != nil {
		return models.Change{}, err
	}

	e.logger.Debug("change decided", "session", id, "change", target.ID.Raw(), "status", status)
	if status != models.StatusPending {
		e.recordDecision(id, result)
	}
	return result, nil
}

// AcceptCurrent accepts the change under the cursor with editedText as its final proposed text.
func (e *Engine) AcceptCurrent(ctx context.Context, ref, editedText string) (models.Change, error) {
	e.reviewMu.Lock()
	defer e.reviewMu.Unlock()

	t, err := e.tracker(ctx, ref)
	if err != nil {
		return models.Change{}, err
	}
	cur, err := t.current()
	if err != nil {
		return models.Change{}, err
	}
	return e.decide(ctx, t, cur, models.StatusAccepted, editedText)
}

// RejectCurrent rejects the change under the cursor.
func (e *Engine) RejectCurrent(ctx context.Context, ref string) (models.Change, error) {
	e.reviewMu.Lock()
	defer e.reviewMu.Unlock()

	t, err := e.tracker(ctx, ref)
	if err != nil {
		return models.Change{}, err
	}
	cur, err := t.current()
	if err != nil {
		return models.Change{}, err
	}
	return e.decide(ctx, t, cur, models.StatusRejected, cur.Proposed)
}

// SetStatus sets a change, addressed by id, to status. An empty proposed keeps the current text.
func (e *Engine) SetStatus(ctx context.Context, ref, changeRef string, status models.ChangeStatus, proposed string) (models.Change, error) {
	e.reviewMu.Lock()
	defer e.reviewMu.Unlock()

	t, err := e.tracker(ctx, ref)
	if err != nil {
		return models.Change{}, err
	}
	target, err := t.lookup(changeRef)
	if err != nil {
		return models.Change{}, fmt.Errorf("%w: %s", err, changeRef)
	}
	if proposed == "" {
		proposed = target.Proposed
	}
	return e.decide(ctx, t, target, status, proposed)
}

// Accept accepts a change by id.
func (e *Engine) Accept(ctx context.Context, ref, changeRef, proposed string) (models.Change, error) {
	return e.SetStatus(ctx, ref, changeRef, models.StatusAccepted, proposed)
}

// Reject rejects a change by id.
func (e *Engine) Reject(ctx context.Context, ref, changeRef string) (models.Change, error) {
	return e.SetStatus(ctx, ref, changeRef, models.StatusRejected, "")
}

// AcceptAll accepts every pending change and returns how many were accepted.
func (e *Engine) AcceptAll(ctx context.Context, ref string) (int, error) {
	e.reviewMu.Lock()
	defer e.reviewMu.Unlock()

	t, err := e.tracker(ctx, ref)
	if err != nil {
		return 0, err
	}
	if !t.Reviewable() {
		return 0, shared.ErrNotReviewable
	}

	id := t.ID()
	if err := e.withAuthRetry(ctx, "accept all", func(ctx context.Context) error {
		return e.backend.AcceptAllChanges(ctx, id)
	}); err != nil {
		return 0, err
	}

	var accepted []models.Change
	err = t.mutate(func(set *review.ChangeSet, cursor *review.Cursor) error {
		for _, changeID := range set.AcceptAll() {
			if c, ok := set.Lookup(changeID.String()); ok {
				accepted = append(accepted, c)
			}
		}
		cursor.Resync()
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, c := range accepted {
		e.recordDecision(id, c)
	}
	e.logger.Info("accepted all", "session", id, "count", len(accepted))
	return len(accepted), nil
}

// Export downloads the final artifact and marks the session complete. It may be repeated.
func (e *Engine) Export(ctx context.Context, ref string) (*services.Artifact, error) {
	t, err := e.tracker(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !t.Reviewable() {
		return nil, shared.ErrNotReviewable
	}

	id := t.ID()
	var artifact *services.Artifact
	if err := e.withAuthRetry(ctx, "export", func(ctx context.Context) error {
		a, err := e.backend.Export(ctx, id)
		artifact = a
		return err
	}); err != nil {
		return nil, err
	}

	snap := t.setStatus(models.SessionComplete)
	e.record(snap)
	e.logger.Info("exported", "session", id, "bytes", len(artifact.Data))
	return artifact, nil
}

// Navigate moves the review cursor of a tracked session.
func (e *Engine) Navigate(ctx context.Context, ref string, fn func(*review.Cursor)) (ReviewState, error) {
	t, err := e.tracker(ctx, ref)
	if err != nil {
		return ReviewState{}, err
	}
	return t.Navigate(fn)
}

// Report builds a review report for a tracked session.
func (e *Engine) Report(ctx context.Context, ref string) (*formatter.Report, error) {
	t, err := e.tracker(ctx, ref)
	if err != nil {
		return nil, err
	}

	var report *formatter.Report
	session := t.Snapshot().Session
	err = t.mutate(func(set *review.ChangeSet, _ *review.Cursor) error {
		report = formatter.NewReport(session, set)
		return nil
	})
	return report, err
}

// Change resolves a change reference within a tracked session.
func (e *Engine) Change(ctx context.Context, ref, changeRef string) (models.Change, error) {
	t, err := e.tracker(ctx, ref)
	if err != nil {
		return models.Change{}, err
	}
	c, err := t.lookup(changeRef)
	if err != nil {
		return models.Change{}, fmt.Errorf("%w: %s", err, changeRef)
	}
	return c, nil
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l *log.Logger) {
	e.logger = l
}

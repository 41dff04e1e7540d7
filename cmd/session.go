package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/review"
	"github.com/desertthunder/bookclean/internal/shared"
	"github.com/desertthunder/bookclean/internal/tasks"
	"github.com/urfave/cli/v3"
)

const progressBuffer = 64

// sessionView is the JSON shape of `session status`.
type sessionView struct {
	SessionID string         `json:"session_id"`
	Filename  string         `json:"filename"`
	Status    string         `json:"status"`
	Phase     string         `json:"phase,omitempty"`
	Progress  int            `json:"progress"`
	Error     string         `json:"error,omitempty"`
	ShareURL  string         `json:"share_url,omitempty"`
	Counts    *review.Counts `json:"counts,omitempty"`
}

func newSessionView(t *tasks.Tracker) sessionView {
	snap := t.Snapshot()
	v := sessionView{
		SessionID: snap.ID,
		Filename:  snap.Filename,
		Status:    snap.Status.String(),
		Phase:     snap.Phase,
		Progress:  snap.Progress,
		Error:     snap.Error,
		ShareURL:  snap.ShareURL,
	}
	if state, ok := t.Review(); ok {
		v.Counts = &state.Counts
	}
	return v
}

// processOptions merges level flags over the configured defaults and validates them.
func (r *Runner) processOptions(cmd *cli.Command) (models.ProcessOptions, error) {
	p := r.config.Processing
	opts := models.ProcessOptions{
		Language: p.Language,
		Sexual:   p.Sexual,
		Violence: p.Violence,
		Model:    p.Model,
	}

	if cmd.IsSet("language") {
		opts.Language = int(cmd.Int("language"))
	}
	if cmd.IsSet("sexual") {
		opts.Sexual = int(cmd.Int("sexual"))
	}
	if cmd.IsSet("violence") {
		opts.Violence = int(cmd.Int("violence"))
	}
	if m := cmd.String("model"); m != "" {
		opts.Model = m
	}

	levels := []struct {
		name  string
		value int
	}{
		{"language", opts.Language},
		{"sexual", opts.Sexual},
		{"violence", opts.Violence},
	}
	for _, l := range levels {
		if err := shared.ValidateLevel(l.name, l.value, p.MaxLevel); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// SessionStart uploads a book and starts processing.
func (r *Runner) SessionStart(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: a book file is required", shared.ErrMissingArgument)
	}

	opts, err := r.processOptions(cmd)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	t, err := r.engine.Start(runCtx, path, opts, progress)
	if err != nil {
		return err
	}

	snap := t.Snapshot()
	r.writePlain("Started session %s for %s\n", snap.ID, snap.Filename)
	if snap.ShareURL != "" {
		r.writePlain("Share link: %s\n", snap.ShareURL)
	}

	if !cmd.Bool("wait") {
		r.writePlain("Run 'bookclean session resume %s' to follow progress\n", snap.ID)
		return nil
	}
	return r.follow(ctx, t, progress)
}

// SessionResume reattaches to a session, following it while it is still processing.
func (r *Runner) SessionResume(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	ref := cmd.StringArg("session")
	if cmd.Bool("last") {
		if err := r.requireHistory(); err != nil {
			return err
		}
		rec, err := r.sessions.Latest()
		if err != nil {
			return err
		}
		ref = rec.SessionID()
	}
	if ref == "" {
		return fmt.Errorf("%w: a session id, share link, or --last is required", shared.ErrMissingArgument)
	}

	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	t, err := r.engine.Resume(ctx, ref, progress)
	if err != nil {
		return err
	}
	return r.follow(ctx, t, progress)
}

// follow prints progress until the tracker is done, then prints the final state.
func (r *Runner) follow(ctx context.Context, t *tasks.Tracker, progress <-chan tasks.ProgressUpdate) error {
	for {
		select {
		case u := <-progress:
			r.printUpdate(u)
		case <-t.Done():
			r.drain(progress)
			r.writePlain("\n")
			r.printSession(newSessionView(t))
			return t.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Runner) drain(progress <-chan tasks.ProgressUpdate) {
	for {
		select {
		case u := <-progress:
			r.printUpdate(u)
		default:
			return
		}
	}
}

func (r *Runner) printUpdate(u tasks.ProgressUpdate) {
	switch u.Kind {
	case tasks.LogReceived:
		r.writePlain("  │ %s\n", u.Message)
	default:
		r.writePlain("• %s\n", u.Message)
	}
}

func (r *Runner) printSession(v sessionView) {
	r.writePlainHeader("Session " + v.SessionID)
	r.writePlain("File:     %s\n", v.Filename)
	r.writePlain("Status:   %s\n", v.Status)
	if v.Phase != "" && v.Status == models.SessionProcessing.String() {
		r.writePlain("Phase:    %s\n", v.Phase)
	}
	r.writePlain("Progress: %d%%\n", v.Progress)
	if v.Error != "" {
		r.writePlain("Error:    %s\n", v.Error)
	}
	if v.ShareURL != "" {
		r.writePlain("Link:     %s\n", v.ShareURL)
	}
	if v.Counts != nil {
		c := v.Counts
		r.writePlain("Changes:  %d total, %d pending, %d accepted, %d rejected\n", c.Total, c.Pending, c.Accepted, c.Rejected)
	}
}

// SessionStatus fetches a session once and prints it.
func (r *Runner) SessionStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	t, err := r.engine.Open(ctx, cmd.StringArg("session"))
	if err != nil {
		return err
	}

	view := newSessionView(t)
	if cmd.Bool("json") {
		return r.writeJSON(view, true)
	}
	r.printSession(view)
	return nil
}

// SessionCancel cancels a session on the backend.
func (r *Runner) SessionCancel(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	ref := cmd.StringArg("session")
	if err := r.engine.Cancel(ctx, ref); err != nil {
		return err
	}

	id, _ := shared.ParseSessionRef(ref)
	r.writePlain("✓ Session %s cancelled\n", id)
	return nil
}

// SessionOpen prints the share link for a session and optionally opens it.
func (r *Runner) SessionOpen(ctx context.Context, cmd *cli.Command) error {
	id, err := shared.ParseSessionRef(cmd.StringArg("session"))
	if err != nil {
		return err
	}

	if cmd.Bool("browser") {
		link, err := shared.OpenSessionLink(r.config.API.ShareURL, id)
		if link != "" {
			r.writePlain("%s\n", link)
		}
		return err
	}

	link, err := shared.ShareURL(r.config.API.ShareURL, id)
	if err != nil {
		return err
	}
	r.writePlain("%s\n", link)
	return nil
}

// SessionList prints sessions recorded in the local database.
func (r *Runner) SessionList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireHistory(); err != nil {
		return err
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if status := cmd.String("status"); status != "" {
		s, err := models.ParseSessionStatus(status)
		if err != nil {
			return err
		}
		criteria["status"] = s.String()
	}

	records, err := r.sessions.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]sessionView, 0, len(records))
		for _, rec := range records {
			views = append(views, sessionView{
				SessionID: rec.SessionID(),
				Filename:  rec.Filename(),
				Status:    rec.Status().String(),
				Phase:     rec.Phase(),
				Progress:  rec.Progress(),
				Error:     rec.ErrorMessage(),
				ShareURL:  rec.ShareURL(),
			})
		}
		return r.writeJSON(views, true)
	}

	if len(records) == 0 {
		r.writePlain("No sessions recorded\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Sessions (%d)", len(records)))
	for _, rec := range records {
		r.writePlain("%-36s  %-10s %3d%%  %-30s  %s\n",
			rec.SessionID(), rec.Status(), rec.Progress(), shared.Truncate(rec.Filename(), 30),
			rec.UpdatedAt().Format("2006-01-02 15:04"))
	}
	return nil
}

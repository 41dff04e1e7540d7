package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"github.com/desertthunder/bookclean/internal/formatter"
	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
	"github.com/desertthunder/bookclean/internal/tasks"
	"github.com/desertthunder/bookclean/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

const defaultWidth = 100

// width is the terminal width when output is a terminal, otherwise defaultWidth.
func (r *Runner) width() int {
	f, ok := r.output.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// ReviewList prints every change grouped by chapter.
func (r *Runner) ReviewList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	t, err := r.engine.Open(ctx, cmd.StringArg("session"))
	if err != nil {
		return err
	}
	state, ok := t.Review()
	if !ok {
		return fmt.Errorf("%w: session %s is %s", shared.ErrNotReviewable, t.ID(), t.Snapshot().Status)
	}

	pendingOnly := cmd.Bool("pending")
	chapters := make([]models.Chapter, 0, len(state.Chapters))
	for _, ch := range state.Chapters {
		if pendingOnly {
			kept := ch.Changes[:0:0]
			for _, c := range ch.Changes {
				if c.Status == models.StatusPending {
					kept = append(kept, c)
				}
			}
			ch.Changes = kept
		}
		chapters = append(chapters, ch)
	}

	if cmd.Bool("json") {
		return r.writeJSON(chapters, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s: %s", t.ID(), ui.RenderCounts(state.Counts)))
	for _, ch := range chapters {
		r.writePlainln("%s  [%s]", ch.Name(), ch.Rating)
		if len(ch.Changes) == 0 {
			r.writePlain("  (no changes)\n")
			continue
		}
		for _, c := range ch.Changes {
			r.writePlain("  %-8s %-9s %s\n", c.ID, c.Status, shared.Truncate(c.Original, 60))
		}
	}
	return nil
}

// ReviewShow renders one change with its differences highlighted.
func (r *Runner) ReviewShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	c, err := r.engine.Change(ctx, cmd.StringArg("session"), cmd.StringArg("change"))
	if err != nil {
		return err
	}

	title := c.ChapterTitle
	if title == "" {
		title = models.Chapter{Index: c.ChapterIndex}.Name()
	}
	r.writePlain("%s · %s · %s\n", c.ID, title, c.Status)
	if c.Reason != "" {
		r.writePlain("Reason: %s\n", c.Reason)
	}
	r.writePlain("%s\n", ui.RenderChange(c, r.width()))
	return nil
}

func (r *Runner) decided(c models.Change) error {
	verb := "Rejected"
	if c.Status == models.StatusAccepted {
		verb = "Accepted"
	}
	r.writePlain("✓ %s %s\n", verb, c.ID)
	return nil
}

// ReviewAccept accepts one change, with replacement text when --text is given.
func (r *Runner) ReviewAccept(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	c, err := r.engine.Accept(ctx, cmd.StringArg("session"), cmd.StringArg("change"), cmd.String("text"))
	if err != nil {
		return err
	}
	return r.decided(c)
}

// ReviewReject rejects one change.
func (r *Runner) ReviewReject(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	c, err := r.engine.Reject(ctx, cmd.StringArg("session"), cmd.StringArg("change"))
	if err != nil {
		return err
	}
	return r.decided(c)
}

// ReviewAcceptAll accepts every pending change.
func (r *Runner) ReviewAcceptAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	n, err := r.engine.AcceptAll(ctx, cmd.StringArg("session"))
	if err != nil {
		return err
	}
	r.writePlain("✓ Accepted %d pending changes\n", n)
	return nil
}

// ReviewSummary renders the review report as Markdown, or prints it raw with --format.
func (r *Runner) ReviewSummary(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	report, err := r.engine.Report(ctx, cmd.StringArg("session"))
	if err != nil {
		return err
	}

	if format := cmd.String("format"); format != "" {
		data, err := formatter.Export(report, format)
		if err != nil {
			return err
		}
		r.writePlain("%s\n", data)
		return nil
	}

	md, err := formatter.ExportToMarkdown(report)
	if err != nil {
		return err
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(r.width()))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(string(md))
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	return r.writePlain("%s", out)
}

// decisionView is the JSON shape of one `review history` row.
type decisionView struct {
	Sequence     int    `json:"sequence"`
	ChangeID     string `json:"change_id"`
	ChapterIndex int    `json:"chapter_index"`
	Status       string `json:"status"`
	ProposedText string `json:"proposed_text,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// ReviewHistory lists the decisions recorded locally for a session.
func (r *Runner) ReviewHistory(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireHistory(); err != nil {
		return err
	}

	id, err := shared.ParseSessionRef(cmd.StringArg("session"))
	if err != nil {
		return err
	}

	decisions, err := r.decisions.ListBySession(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]decisionView, 0, len(decisions))
		for _, d := range decisions {
			views = append(views, decisionView{
				Sequence:     d.Sequence(),
				ChangeID:     d.ChangeID(),
				ChapterIndex: d.ChapterIndex(),
				Status:       d.Status().String(),
				ProposedText: d.ProposedText(),
				CreatedAt:    d.CreatedAt().Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		return r.writeJSON(views, true)
	}

	if len(decisions) == 0 {
		r.writePlain("No decisions recorded for %s\n", id)
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Decisions for %s (%d)", id, len(decisions)))
	for _, d := range decisions {
		r.writePlain("%4d  %-8s %-9s %s  %s\n",
			d.Sequence(), d.ChangeID(), d.Status(), d.CreatedAt().Format("2006-01-02 15:04"),
			shared.Truncate(d.ProposedText(), 50))
	}
	return nil
}

// ReviewExport downloads the cleaned book and optionally writes a review report next to it.
func (r *Runner) ReviewExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	ref := cmd.StringArg("session")
	dir := cmd.String("output")

	artifact, err := r.engine.Export(ctx, ref)
	if err != nil {
		return err
	}

	id, _ := shared.ParseSessionRef(ref)
	path, err := formatter.WriteArtifact(artifact, dir, id+".epub")
	if err != nil {
		return err
	}
	r.writePlain("✓ Saved %s\n", path)

	if format := cmd.String("report"); format != "" {
		report, err := r.engine.Report(ctx, ref)
		if err != nil {
			return err
		}
		reportPath := filepath.Join(dir, id+"-review"+formatter.Extension(format))
		if _, err := formatter.WriteReport(report, format, reportPath); err != nil {
			return err
		}
		r.writePlain("✓ Saved %s\n", reportPath)
	}
	return nil
}

// ReviewExportAll exports several sessions concurrently and writes a manifest.
func (r *Runner) ReviewExportAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one session is required", shared.ErrMissingArgument)
	}

	opts := tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output-dir"),
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
		SkipBook:   cmd.Bool("report-only"),
	}

	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			r.printUpdate(u)
		}
	}()

	result, err := r.engine.BulkExport(ctx, progress, ids, opts)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("Exported %d of %d sessions to %s", result.SuccessfulExports, result.TotalSessions, result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}
	if result.FailedExports > 0 {
		return fmt.Errorf("%w: %d of %d exports failed", shared.ErrAPIRequest, result.FailedExports, result.TotalSessions)
	}
	return nil
}

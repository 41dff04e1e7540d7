package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/bookclean/internal/shared"
	"github.com/desertthunder/bookclean/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for processing and review.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireEngine(); err != nil {
		return err
	}

	file, session := cmd.String("file"), cmd.String("session")
	if file == "" && session == "" {
		return fmt.Errorf("%w: --file or --session is required", shared.ErrMissingArgument)
	}
	if file != "" && session != "" {
		return fmt.Errorf("%w: cannot specify both --file and --session", shared.ErrInvalidArgument)
	}

	opts, err := r.processOptions(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Logging.Level))
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.engine, ui.Options{
		File:      file,
		Session:   session,
		Process:   opts,
		OutputDir: cmd.String("output-dir"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	r.engine.SetPrompter(&ui.ProgramPrompter{
		Program:  p,
		Prompter: &ui.CredentialPrompter{Username: r.config.API.Username},
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/desertthunder/bookclean/internal/services"
	"github.com/desertthunder/bookclean/internal/shared"
	"golang.org/x/term"
)

// CredentialPrompter asks for username and password with a huh form on the terminal.
type CredentialPrompter struct {
	// Username pre-fills the form, typically from config.
	Username string
	// Input is checked for a terminal before prompting; defaults to stdin.
	Input *os.File
}

// PromptCredentials shows why authentication is needed and collects new credentials.
//
// It returns [shared.ErrNotInteractive] when input is not a terminal.
func (p *CredentialPrompter) PromptCredentials(ctx context.Context, reason error) (services.Credentials, error) {
	in := p.Input
	if in == nil {
		in = os.Stdin
	}
	if !term.IsTerminal(int(in.Fd())) {
		return services.Credentials{}, shared.ErrNotInteractive
	}

	creds := services.Credentials{Username: p.Username}
	description := "The backend asked for credentials."
	if reason != nil {
		description = reason.Error()
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Sign in").
				Description(description),
			huh.NewInput().
				Title("Username").
				Validate(required("username")).
				Value(&creds.Username),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Validate(required("password")).
				Value(&creds.Password),
		),
	).RunWithContext(ctx)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return services.Credentials{}, fmt.Errorf("%w: sign in aborted", shared.ErrAuthFailed)
		}
		return services.Credentials{}, fmt.Errorf("credential prompt failed: %w", err)
	}

	p.Username = creds.Username
	return creds, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// ProgramPrompter hands the terminal from a running bubbletea program to another prompter.
type ProgramPrompter struct {
	Program  *tea.Program
	Prompter interface {
		PromptCredentials(ctx context.Context, reason error) (services.Credentials, error)
	}
}

func (p *ProgramPrompter) PromptCredentials(ctx context.Context, reason error) (services.Credentials, error) {
	if err := p.Program.ReleaseTerminal(); err != nil {
		return services.Credentials{}, fmt.Errorf("failed to release terminal: %w", err)
	}
	defer p.Program.RestoreTerminal()

	return p.Prompter.PromptCredentials(ctx, reason)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookclean/internal/repositories"
	"github.com/desertthunder/bookclean/internal/services"
	"github.com/desertthunder/bookclean/internal/shared"
	"github.com/desertthunder/bookclean/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config    *shared.Config
	api       *services.APIService
	backend   services.Backend
	sessions  *repositories.SessionRepository
	decisions *repositories.DecisionRepository
	logger    *log.Logger
	output    io.Writer
	engine    *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Backend defaults to API. Sessions and Decisions are optional; without them nothing is recorded locally.
type RunnerOpts struct {
	Config    *shared.Config
	API       *services.APIService
	Backend   services.Backend
	Sessions  *repositories.SessionRepository
	Decisions *repositories.DecisionRepository
	Prompter  tasks.Prompter
	Logger    *log.Logger
	Output    io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Backend == nil && opts.API != nil {
		opts.Backend = opts.API
	}

	r := &Runner{
		config:    opts.Config,
		api:       opts.API,
		backend:   opts.Backend,
		sessions:  opts.Sessions,
		decisions: opts.Decisions,
		logger:    opts.Logger,
		output:    opts.Output,
	}

	if opts.Backend != nil {
		engineOpts := tasks.EngineOpts{
			Prompter:     opts.Prompter,
			Logger:       opts.Logger,
			ShareURL:     opts.Config.API.ShareURL,
			FetchTimeout: opts.Config.API.FetchTimeout(),
		}
		if opts.Sessions != nil && opts.Decisions != nil {
			engineOpts.Recorder = repositories.NewRecorder(opts.Sessions, opts.Decisions)
		}
		r.engine = tasks.NewEngine(opts.Backend, engineOpts)
	}

	return r
}

// SetLogger replaces the logger used by the runner and its engine.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if r.engine != nil {
		r.engine.SetLogger(l)
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, sessionCommand, reviewCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) requireEngine() error {
	if r.engine == nil {
		return fmt.Errorf("%w: backend not configured", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) requireHistory() error {
	if r.sessions == nil || r.decisions == nil {
		return fmt.Errorf("%w: local database not available, run 'bookclean setup database'", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

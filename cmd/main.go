package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/bookclean/internal/repositories"
	"github.com/desertthunder/bookclean/internal/services"
	"github.com/desertthunder/bookclean/internal/shared"
	"github.com/desertthunder/bookclean/internal/ui"
	"github.com/urfave/cli/v3"
)

const configPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}
	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		logger.Warn("invalid configuration", "error", err)
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Logging.Level))

	opts := RunnerOpts{
		Config:   config,
		API:      services.NewAPIService(config.API, nil),
		Logger:   logger,
		Prompter: &ui.CredentialPrompter{Username: config.API.Username},
	}

	if db, err := shared.OpenDatabase(config.Database); err == nil {
		defer db.Close()
		opts.Sessions = repositories.NewSessionRepository(db)
		opts.Decisions = repositories.NewDecisionRepository(db)
	} else {
		logger.Warn("local session history unavailable", "path", config.Database.Path, "error", err)
	}

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "bookclean",
		Usage:    "Clean up books with a processing backend and review every change",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	err := app.Run(context.Background(), os.Args)
	runner.engine.Wait()
	if err != nil {
		if errors.Is(err, shared.ErrAuthFailed) {
			logger.Error("authentication failed", "error", err,
				"hint", "set "+shared.EnvUsername+" and "+shared.EnvPassword+", or run in a terminal to be prompted")
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}

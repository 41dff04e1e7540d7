// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   configPath,
	}
}

func sessionArg() cli.Argument {
	return &cli.StringArg{
		Name:      "session",
		UsageText: "session id or share link",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output JSON",
	}
}

func levelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "language",
			Usage: "Target language level (defaults to processing.language)",
		},
		&cli.IntFlag{
			Name:  "sexual",
			Usage: "Target sexual content level (defaults to processing.sexual)",
		},
		&cli.IntFlag{
			Name:  "violence",
			Usage: "Target violence level (defaults to processing.violence)",
		},
		&cli.StringFlag{
			Name:  "model",
			Usage: "Model the backend should use (defaults to processing.model)",
		},
	}
}

// setupCommand initializes local files
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and local database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml populated with defaults",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the session history database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// sessionCommand handles the processing lifecycle
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"s"},
		Usage:   "Start, resume, and inspect processing sessions",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Upload a book and start processing it",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:      "file",
						UsageText: "path to the book",
					},
				},
				Flags: append(levelFlags(),
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Follow progress until processing ends",
						Value: true,
					},
				),
				Action: r.SessionStart,
			},
			{
				Name:      "resume",
				Usage:     "Reattach to a session and follow it until processing ends",
				Arguments: []cli.Argument{sessionArg()},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "last",
						Usage: "Resume the most recently recorded session",
					},
				},
				Action: r.SessionResume,
			},
			{
				Name:      "status",
				Usage:     "Fetch a session once and print its state",
				Arguments: []cli.Argument{sessionArg()},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.SessionStatus,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a session",
				Arguments: []cli.Argument{sessionArg()},
				Action:    r.SessionCancel,
			},
			{
				Name:      "open",
				Usage:     "Print the share link for a session",
				Arguments: []cli.Argument{sessionArg()},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "browser",
						Aliases: []string{"b"},
						Usage:   "Open the link in the default browser",
					},
				},
				Action: r.SessionOpen,
			},
			{
				Name:  "list",
				Usage: "List sessions recorded locally",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show sessions with this status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of sessions to show",
						Value: 20,
					},
					jsonFlag(),
				},
				Action: r.SessionList,
			},
		},
	}
}

// reviewCommand handles change review and export
func reviewCommand(r *Runner) *cli.Command {
	changeArg := &cli.StringArg{
		Name:      "change",
		UsageText: "change id, e.g. 3.12",
	}

	return &cli.Command{
		Name:    "review",
		Aliases: []string{"r"},
		Usage:   "Review proposed changes and export the result",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List changes grouped by chapter",
				Arguments: []cli.Argument{sessionArg()},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pending",
						Usage: "Only show pending changes",
					},
					jsonFlag(),
				},
				Action: r.ReviewList,
			},
			{
				Name:      "show",
				Usage:     "Show one change with highlighted differences",
				Arguments: []cli.Argument{sessionArg(), changeArg},
				Action:    r.ReviewShow,
			},
			{
				Name:      "accept",
				Usage:     "Accept a change, optionally replacing the proposed text",
				Arguments: []cli.Argument{sessionArg(), changeArg},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "text",
						Aliases: []string{"t"},
						Usage:   "Replacement text to accept instead of the suggestion",
					},
				},
				Action: r.ReviewAccept,
			},
			{
				Name:      "reject",
				Usage:     "Reject a change, keeping the original text",
				Arguments: []cli.Argument{sessionArg(), changeArg},
				Action:    r.ReviewReject,
			},
			{
				Name:      "accept-all",
				Usage:     "Accept every pending change",
				Arguments: []cli.Argument{sessionArg()},
				Action:    r.ReviewAcceptAll,
			},
			{
				Name:      "summary",
				Usage:     "Render a review summary in the terminal",
				Arguments: []cli.Argument{sessionArg()},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Print the raw report instead: csv, markdown, txt, or json",
					},
				},
				Action: r.ReviewSummary,
			},
			{
				Name:      "history",
				Usage:     "List decisions recorded locally for a session",
				Arguments: []cli.Argument{sessionArg()},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.ReviewHistory,
			},
			{
				Name:      "export",
				Usage:     "Download the cleaned book",
				Arguments: []cli.Argument{sessionArg()},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory to save the book in",
						Value:   ".",
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Also write a review report in this format: csv, markdown, txt, or json",
					},
				},
				Action: r.ReviewExport,
			},
			{
				Name:      "export-all",
				Usage:     "Export several sessions concurrently",
				ArgsUsage: "SESSION...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Review report format: csv, markdown, txt, or json",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "Output directory (default bookclean_export_<timestamp>)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent exports (max 10)",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Sessions started per second",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "report-only",
						Usage: "Write review reports without downloading books",
					},
				},
				Action: r.ReviewExportAll,
			},
		},
	}
}

// apiCommand handles direct backend calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct authenticated calls to the backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the backend, prints the response body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON responses",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON body to send",
						Value:   "{}",
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// tuiCommand launches the interactive review UI
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Process and review a book interactively",
		Flags: append(levelFlags(),
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Book to upload and process",
			},
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Session id or share link to resume",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory exported books are saved in",
				Value:   ".",
			},
		),
		Action: r.TUI,
	}
}

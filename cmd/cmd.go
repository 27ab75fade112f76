// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// rootFlags are shared by every command.
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error)",
			Value: "info",
		},
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create the config file if needed, initialize the database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Roll back every migration first, dropping cached song facts",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand runs the local OAuth flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authenticate with Spotify using OAuth2 and save the tokens to the config file",
		Action: r.Auth,
	}
}

// collectionsCommand lists the user's collections.
func collectionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "collections",
		Aliases: []string{"playlists", "ls"},
		Usage:   "List saved tracks and playlists",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Collections,
	}
}

// generateCommand enriches and groups collections.
//
// Dimension flags default to the [generate] section of the config file.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Group the tracks of one or more collections by genre, artist and language",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "collection",
				Aliases:  []string{"p"},
				Usage:    "Collection ID to read (repeatable; use 'liked' for saved tracks)",
				Required: true,
			},
			&cli.BoolFlag{Name: "genre", Usage: "Group by genre"},
			&cli.BoolFlag{Name: "artist", Usage: "Group by artist"},
			&cli.BoolFlag{Name: "language", Usage: "Group by language"},
			&cli.BoolFlag{Name: "allow-duplicates", Usage: "Allow a track in several groups of one dimension"},
			&cli.IntFlag{Name: "artist-min", Usage: "Minimum appearances for an artist group (at least 3)"},
			&cli.IntFlag{Name: "max-genres", Usage: "Maximum number of genre groups"},
			&cli.IntFlag{Name: "max-artists", Usage: "Maximum number of artist groups"},
			&cli.IntFlag{Name: "max-languages", Usage: "Maximum number of language groups"},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (text, markdown, json, csv)",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the result to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Create a playlist for every group",
			},
		},
		Action: r.Generate,
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API used by the web frontend",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "Listen host (defaults to server.host)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (defaults to server.port)"},
		},
		Action: r.Serve,
	}
}

// cacheCommand inspects and clears the song cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the song fact cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show how many songs are cached",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.CacheStats,
			},
			{
				Name:      "get",
				Usage:     "Show the cached language and genre of tracks",
				ArgsUsage: "<track-id>...",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action:    r.CacheGet,
			},
			{
				Name:  "clear",
				Usage: "Delete every cached song",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "Only report how many songs would be removed"},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive playlist building.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive TUI",
		Action:  r.TUI,
	}
}

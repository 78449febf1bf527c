// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

const defaultDescription = "Managed by plsync"

func tokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "Spotify bearer token (defaults to $PLSYNC_ACCESS_TOKEN, then the config file)",
	}
}

func playlistFlags(name string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "Playlist name used when the playlist is created",
			Value:   name,
		},
		&cli.StringFlag{
			Name:    "description",
			Aliases: []string{"d"},
			Usage:   "Playlist description used when the playlist is created",
			Value:   defaultDescription,
		},
		&cli.BoolFlag{
			Name:    "interactive",
			Aliases: []string{"i"},
			Usage:   "Follow progress in a terminal view",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the outcome as JSON",
		},
	}
}

// setupCommand handles database and configuration setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "List migrations and whether they are applied",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
		},
	}
}

// syncCommand synchronizes an explicit track list.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Create or update the managed playlist for a definition",
		Flags: append(playlistFlags(""),
			tokenFlag(),
			&cli.StringFlag{
				Name:     "management",
				Aliases:  []string{"m"},
				Usage:    "Management definition, e.g. mostPlayed:long_term or joint:id1,id2",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "track",
				Usage: "Track URI (repeatable)",
			},
			&cli.StringFlag{
				Name:  "tracks-file",
				Usage: "File with one track URI per line, or - for stdin",
			},
		),
		Action: r.Sync,
	}
}

// mostPlayedCommand fetches the user's top tracks and optionally syncs them.
func mostPlayedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "most-played",
		Aliases: []string{"top"},
		Usage:   "Show top tracks, or sync them into a managed playlist with --sync",
		Flags: append(playlistFlags(""),
			tokenFlag(),
			&cli.StringFlag{
				Name:    "range",
				Aliases: []string{"r"},
				Usage:   "Time range: short_term, medium_term or long_term",
				Value:   "long_term",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of tracks (defaults to sync.top_tracks_limit)",
			},
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "Sync the tracks into the mostPlayed playlist for this range",
			},
		),
		Action: r.MostPlayed,
	}
}

// jointCommand merges cached playlists into one managed playlist.
func jointCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "joint",
		Usage: "Sync a joint playlist built from cached source playlists",
		Flags: append(playlistFlags("Joint Playlist"),
			tokenFlag(),
			&cli.StringSliceFlag{
				Name:     "source",
				Aliases:  []string{"s"},
				Usage:    "Source playlist ID (repeatable)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Cache the source playlists before merging",
			},
		),
		Action: r.Joint,
	}
}

// cacheCommand handles the local playlist cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Cache playlists locally for joint playlists",
		Commands: []*cli.Command{
			{
				Name:  "playlist",
				Usage: "Fetch and cache one or more playlists",
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringSliceFlag{
						Name:     "id",
						Usage:    "Playlist ID to cache (repeatable)",
						Required: true,
					},
				},
				Action: r.CachePlaylists,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List cached playlists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:  "show",
				Usage: "Print or export a cached playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Cached playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: txt, csv, md or json",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.CacheShow,
			},
		},
	}
}

// libraryCommand reads the remote library without touching the cache.
func libraryCommand(r *Runner) *cli.Command {
	jsonFlag := func() cli.Flag { return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"} }
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Browse the remote profile, playlists and liked tracks",
		Commands: []*cli.Command{
			{
				Name:   "me",
				Usage:  "Show the profile behind the token",
				Flags:  []cli.Flag{tokenFlag(), jsonFlag()},
				Action: r.LibraryUser,
			},
			{
				Name:  "playlists",
				Usage: "List your playlists, or another user's with --user",
				Flags: []cli.Flag{
					tokenFlag(),
					jsonFlag(),
					&cli.StringFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "User ID whose public playlists to list",
					},
				},
				Action: r.LibraryPlaylists,
			},
			{
				Name:  "show",
				Usage: "Print or export a playlist read live from the remote",
				Flags: []cli.Flag{
					tokenFlag(),
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: txt, csv, md or json",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.LibraryShow,
			},
			{
				Name:   "liked",
				Usage:  "List your saved tracks",
				Flags:  []cli.Flag{tokenFlag(), jsonFlag()},
				Action: r.LibraryLiked,
			},
		},
	}
}

// managedCommand lists management records.
func managedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "managed",
		Usage: "List the playlists managed for the token's user",
		Flags: []cli.Flag{
			tokenFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Managed,
	}
}

// eventsCommand prints the bookkeeping log.
func eventsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Show recent create and cache events",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of events",
				Value: 20,
			},
		},
		Action: r.Events,
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the playlist sync HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

package main

import (
	"context"

	"github.com/desertthunder/plsync/internal/server"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	return server.Serve(ctx, addr, r.router(), shared.WithLogger(r.logger, "component", "http"))
}

// router wires the playlist and library endpoints behind logging and panic recovery.
func (r *Runner) router() *server.BasicRouter {
	logger := shared.WithLogger(r.logger, "component", "http")

	router := server.NewBasicRouter()
	router.Use(server.Logging(logger), server.Recover(logger))
	router.Handler(server.NewPlaylistHandler(server.PlaylistHandlerOpts{
		Syncer:         r.engine,
		Cacher:         r.cacher,
		Cache:          r.playlists,
		TopTracks:      r.topTracks,
		TopTracksLimit: r.config.Sync.TopTracksLimit,
		Logger:         logger,
	}))
	router.Handler(server.NewLibraryHandler(r.library, logger))
	return router
}

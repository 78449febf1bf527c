package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// LibraryUser prints the profile behind the token.
func (r *Runner) LibraryUser(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token(cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	user, err := r.library.User(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to fetch user: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}
	r.writePlainln("%s (%s)", user.DisplayName, user.ID)
	if user.Product != "" {
		r.writePlainln("Plan:    %s", user.Product)
	}
	if user.Country != "" {
		r.writePlainln("Country: %s", user.Country)
	}
	return nil
}

// LibraryPlaylists lists the token user's playlists, or another user's with --user.
func (r *Runner) LibraryPlaylists(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token(cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	playlists, err := r.library.Playlists(ctx, token, cmd.String("user"))
	if err != nil {
		return fmt.Errorf("failed to fetch user playlists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"playlistData": playlists}, true)
	}
	if len(playlists) == 0 {
		return r.writePlainln("No playlists.")
	}
	for _, p := range playlists {
		r.writePlainln("%-24s %-40s %4d tracks  %s", p.ID, p.Name, p.Tracks.Total, p.Owner.DisplayName)
	}
	return nil
}

// LibraryShow renders a playlist read live from the remote, like cache show does for snapshots.
func (r *Runner) LibraryShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	token, err := r.token(cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	detail, err := r.library.Playlist(ctx, token, cmd.String("id"))
	if err != nil {
		return fmt.Errorf("failed to fetch playlist tracks: %w", err)
	}

	playlist := detail.Snapshot()
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(playlist, format, path)
		if err != nil {
			return err
		}
		return r.writePlainln("%s", ui.Styles().Success("✓ Exported to "+written))
	}
	return formatter.Render(r.output, playlist, format)
}

// LibraryLiked prints the token user's saved tracks.
func (r *Runner) LibraryLiked(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token(cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	tracks, err := r.library.LikedTracks(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to fetch liked tracks: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"playlistData": tracks}, true)
	}
	if len(tracks) == 0 {
		return r.writePlainln("No liked tracks.")
	}
	n := 0
	for _, item := range tracks {
		if item.Track == nil {
			continue
		}
		n++
		r.writePlainln("%3d. %s - %s", n, item.Track.Name, strings.Join(item.Track.ArtistNames(), ", "))
	}
	return nil
}

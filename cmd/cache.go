package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// CachePlaylists fetches each --id and stores its snapshot.
func (r *Runner) CachePlaylists(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token(cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	return r.cacheAll(ctx, token, cmd.StringSlice("id"))
}

// cacheAll caches ids concurrently and reports each result. It fails if any playlist failed.
func (r *Runner) cacheAll(ctx context.Context, token string, ids []string) error {
	r.logger.Infof("caching %d playlists", len(ids))

	var failed []error
	for _, res := range r.cacher.CacheAll(ctx, nil, token, ids) {
		if res.Err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", res.PlaylistID, res.Err))
			r.writePlainln("%s", ui.Styles().Failure(fmt.Sprintf("✗ %s: %v", res.PlaylistID, res.Err)))
			continue
		}
		r.writePlainln("%s", ui.Styles().Success(fmt.Sprintf("✓ Cached %s (%d tracks)", res.Playlist.Name, len(res.Playlist.Tracks))))
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to cache %d of %d playlists: %w", len(failed), len(ids), errors.Join(failed...))
	}
	return nil
}

// CacheList prints the cached playlists.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	summaries, err := r.playlists.List()
	if err != nil {
		return fmt.Errorf("failed to list cached playlists: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, true)
	}
	if len(summaries) == 0 {
		return r.writePlainln("No cached playlists. Run 'plsync cache playlist --id <id>' first.")
	}
	return formatter.RenderSummaries(r.output, summaries)
}

// CacheShow renders a cached playlist to stdout or --output.
func (r *Runner) CacheShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	if err := r.open(); err != nil {
		return err
	}

	playlist, err := r.playlists.Get(cmd.String("id"))
	if err != nil {
		return err
	}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(playlist, format, path)
		if err != nil {
			return err
		}
		return r.writePlainln("%s", ui.Styles().Success("✓ Exported to "+written))
	}
	return formatter.Render(r.output, playlist, format)
}

type managedJSON struct {
	PlaylistID string `json:"playlistID"`
	Type       string `json:"type"`
	Key        string `json:"key"`
	UpdatedAt  string `json:"updatedAt"`
}

// Managed lists the management records owned by the token's user.
func (r *Runner) Managed(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token(cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	user, err := r.remote.CurrentUser(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	records, err := r.managements.List(user.ID)
	if err != nil {
		return fmt.Errorf("failed to list managed playlists: %w", err)
	}

	out := make([]managedJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, managedJSON{
			PlaylistID: rec.RemotePlaylistID,
			Type:       string(rec.Definition.Type()),
			Key:        rec.Definition.Key(),
			UpdatedAt:  rec.UpdatedAt.UTC().Format(time.DateTime),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(out, true)
	}
	if len(out) == 0 {
		return r.writePlainln("No managed playlists for %s.", user.ID)
	}
	for _, m := range out {
		r.writePlainln("%-24s %-40s %s", m.PlaylistID, m.Key, m.UpdatedAt)
	}
	return nil
}

// Events prints the most recent bookkeeping events.
func (r *Runner) Events(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	events, err := r.events.Recent(int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}

	for _, e := range events {
		r.writePlainln("%s  %s", e.CreatedAt.UTC().Format(time.DateTime), e.Message)
	}
	return nil
}

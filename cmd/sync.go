package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/desertthunder/plsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Sync creates or updates the managed playlist for --management with the given tracks.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	def, err := models.ParseDefinition(cmd.String("management"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	tracks, err := r.readTracks(cmd.StringSlice("track"), cmd.String("tracks-file"))
	if err != nil {
		return err
	}

	token, err := r.token(cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	req := tasks.SyncRequest{
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
		AccessToken: token,
		Tracks:      tracks,
		Definition:  def,
	}

	outcome, err := r.runSync(ctx, cmd, "Syncing "+def.Key(), func(ctx context.Context, progress chan<- tasks.ProgressUpdate) tasks.SyncOutcome {
		return r.engine.Synchronize(ctx, progress, req)
	})
	if err != nil {
		return err
	}
	return r.reportOutcome(cmd, outcome)
}

// MostPlayed prints the user's top tracks for --range, or syncs them into the matching mostPlayed playlist.
func (r *Runner) MostPlayed(ctx context.Context, cmd *cli.Command) error {
	parsed, err := services.ParseTimeRange(cmd.String("range"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	timeRange := string(parsed)

	token, err := r.token(cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		limit = r.config.Sync.TopTracksLimit
	}

	tracks, err := r.topTracks.TopTracks(ctx, token, timeRange, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch top tracks: %w", err)
	}

	if !cmd.Bool("sync") {
		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"trackData": tracks}, true)
		}
		for i, uri := range tracks {
			r.writePlainln("%3d. %s", i+1, uri)
		}
		return nil
	}

	name := cmd.String("name")
	if name == "" {
		name = "Most Played (" + timeRange + ")"
	}

	req := tasks.SyncRequest{
		Name:        name,
		Description: cmd.String("description"),
		AccessToken: token,
		Tracks:      tracks,
		Definition:  models.MostPlayed{Subtype: timeRange},
	}

	outcome, err := r.runSync(ctx, cmd, "Syncing "+name, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) tasks.SyncOutcome {
		return r.engine.Synchronize(ctx, progress, req)
	})
	if err != nil {
		return err
	}
	return r.reportOutcome(cmd, outcome)
}

// Joint merges the cached --source playlists into their joint playlist.
func (r *Runner) Joint(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token(cmd)
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	sources := cmd.StringSlice("source")
	if cmd.Bool("refresh") {
		if err := r.cacheAll(ctx, token, sources); err != nil {
			return err
		}
	}

	req := tasks.JointRequest{
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
		AccessToken: token,
		PlaylistIDs: sources,
	}

	outcome, err := r.runSync(ctx, cmd, "Syncing "+req.Name, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) tasks.SyncOutcome {
		return r.engine.SynchronizeJoint(ctx, progress, req)
	})
	if err != nil {
		return err
	}
	return r.reportOutcome(cmd, outcome)
}

// runSync runs fn either under the interactive view or with progress written to the log.
func (r *Runner) runSync(ctx context.Context, cmd *cli.Command, title string, fn ui.RunFunc) (tasks.SyncOutcome, error) {
	if cmd.Bool("interactive") {
		return ui.RunSync(ctx, r.output, r.input, title, fn)
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	outcome := fn(ctx, progress)
	close(progress)
	<-logged

	return outcome, nil
}

// reportOutcome prints outcome and turns a failed synchronization into a command error.
func (r *Runner) reportOutcome(cmd *cli.Command, outcome tasks.SyncOutcome) error {
	var err error
	if cmd.Bool("json") {
		err = r.writeJSON(outcome, true)
	} else {
		err = r.writePlainln("%s", ui.Styles().Outcome(outcome))
	}
	if err != nil {
		return err
	}

	if !outcome.Successful {
		return fmt.Errorf("sync failed: %s", outcome.Error)
	}
	return nil
}

// readTracks collects URIs from --track flags and the optional tracks file, in that order.
func (r *Runner) readTracks(flags []string, file string) (models.TrackList, error) {
	tracks := models.TrackList{}
	for _, uri := range flags {
		if uri = strings.TrimSpace(uri); uri != "" {
			tracks = append(tracks, uri)
		}
	}

	if file == "" {
		return tracks, nil
	}

	var in io.Reader = r.input
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open tracks file: %w", err)
		}
		defer f.Close()
		in = f
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tracks = append(tracks, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tracks: %w", err)
	}

	return tracks, nil
}

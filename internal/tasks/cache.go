package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheWorkers bounds concurrent playlist caching.
const DefaultCacheWorkers = 4

// PlaylistReader reads playlist metadata.
type PlaylistReader interface {
	Playlist(ctx context.Context, accessToken, playlistID string) (*services.SpotifyPlaylist, error)
}

// PlaylistStore saves playlist snapshots.
type PlaylistStore interface {
	Save(playlist *models.CachedPlaylist) error
}

// Cacher snapshots remote playlists into the local cache used by joint playlists.
type Cacher struct {
	reader  PlaylistReader
	fetcher *Fetcher
	store   PlaylistStore
	events  EventRecorder
	workers int
	logger  *log.Logger
}

// NewCacher creates a Cacher. events may be nil.
func NewCacher(reader PlaylistReader, fetcher *Fetcher, store PlaylistStore, events EventRecorder, logger *log.Logger) *Cacher {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Cacher{reader: reader, fetcher: fetcher, store: store, events: events, workers: DefaultCacheWorkers, logger: logger}
}

// CachePlaylist fetches playlistID's metadata and full track list and stores the snapshot.
func (c *Cacher) CachePlaylist(ctx context.Context, accessToken, playlistID string) (*models.CachedPlaylist, error) {
	if accessToken == "" || playlistID == "" {
		return nil, fmt.Errorf("%w: access token and playlist id are required", shared.ErrInvalidInput)
	}

	meta, err := c.reader.Playlist(ctx, accessToken, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist %s: %w", playlistID, err)
	}

	items, err := c.fetcher.PlaylistItems(ctx, accessToken, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracks of %s: %w", playlistID, err)
	}

	snapshot := Snapshot(playlistID, meta, items)
	if err := c.store.Save(snapshot); err != nil {
		return nil, fmt.Errorf("failed to cache playlist %s: %w", playlistID, err)
	}

	c.logger.Info("cached playlist", "playlist", playlistID, "name", snapshot.Name, "tracks", len(snapshot.Tracks))
	if c.events != nil {
		if err := c.events.AddEvent("cache-playlist passed for playlist " + playlistID); err != nil {
			c.logger.Warn("failed to record event", "error", err)
		}
	}
	return snapshot, nil
}

// Snapshot converts remote playlist metadata and items into a cache snapshot.
// Items without a playable track are skipped.
func Snapshot(playlistID string, meta *services.SpotifyPlaylist, items []services.SpotifyPlaylistTrack) *models.CachedPlaylist {
	snapshot := &models.CachedPlaylist{
		ServiceID: playlistID,
		URI:       meta.URI,
		Name:      meta.Name,
		OwnerName: meta.Owner.DisplayName,
		Tracks:    make([]models.CachedTrack, 0, len(items)),
	}
	for _, item := range items {
		if item.Track == nil || item.Track.URI == "" {
			continue
		}
		snapshot.Tracks = append(snapshot.Tracks, models.CachedTrack{
			URI:     item.Track.URI,
			Name:    item.Track.Name,
			Artists: item.Track.ArtistNames(),
			AddedAt: item.AddedAt,
		})
	}
	return snapshot
}

// CacheResult is the outcome of caching one playlist in [Cacher.CacheAll].
type CacheResult struct {
	PlaylistID string
	Playlist   *models.CachedPlaylist
	Err        error
}

// CacheAll caches every id with bounded concurrency. Failures are reported per playlist and do not stop the others.
func (c *Cacher) CacheAll(ctx context.Context, progress chan<- ProgressUpdate, accessToken string, playlistIDs []string) []CacheResult {
	results := make([]CacheResult, len(playlistIDs))

	var (
		mu        sync.Mutex
		completed int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, id := range playlistIDs {
		g.Go(func() error {
			playlist, err := c.CachePlaylist(ctx, accessToken, id)
			results[i] = CacheResult{PlaylistID: id, Playlist: playlist, Err: err}

			mu.Lock()
			completed++
			sendProgress(progress, cachingUpdate(completed, len(playlistIDs), id))
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return results
}

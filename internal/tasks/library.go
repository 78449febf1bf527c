package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

// LibraryRemote is the read-only remote surface used by [Library].
type LibraryRemote interface {
	CurrentUser(ctx context.Context, accessToken string) (*services.SpotifyUser, error)
	Playlist(ctx context.Context, accessToken, playlistID string) (*services.SpotifyPlaylist, error)
}

// PlaylistDetail is a remote playlist with its full item list in place of the track summary.
type PlaylistDetail struct {
	services.SpotifyPlaylist
	Tracks []services.SpotifyPlaylistTrack `json:"tracks"`
}

// Snapshot converts the detail into the shape used by the playlist cache and its renderers.
func (d *PlaylistDetail) Snapshot() *models.CachedPlaylist {
	return Snapshot(d.ID, &d.SpotifyPlaylist, d.Tracks)
}

// Library reads the remote user's profile, playlists and saved tracks through the paged [Fetcher].
type Library struct {
	remote  LibraryRemote
	fetcher *Fetcher
	events  EventRecorder
	logger  *log.Logger
}

// NewLibrary creates a Library. events may be nil.
func NewLibrary(remote LibraryRemote, fetcher *Fetcher, events EventRecorder, logger *log.Logger) *Library {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Library{remote: remote, fetcher: fetcher, events: events, logger: logger}
}

// User returns the profile behind accessToken.
func (l *Library) User(ctx context.Context, accessToken string) (*services.SpotifyUser, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}
	return l.remote.CurrentUser(ctx, accessToken)
}

// Playlists lists userID's playlists, or the token user's own playlists when userID is empty.
func (l *Library) Playlists(ctx context.Context, accessToken, userID string) ([]services.SpotifyPlaylist, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}

	playlists := []services.SpotifyPlaylist{}
	for items, err := range Items[services.SpotifyPlaylist](ctx, l.fetcher, accessToken, services.UserPlaylistsEndpoint(userID)) {
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}
		playlists = append(playlists, items...)
	}

	l.logger.Debug("listed playlists", "user", userID, "count", len(playlists))
	if userID == "" {
		l.record("get-user-playlists passed")
	} else {
		l.record("get-other-user-playlists passed for user " + userID)
	}
	return playlists, nil
}

// Playlist returns playlistID's metadata with every item, read live from the remote.
func (l *Library) Playlist(ctx context.Context, accessToken, playlistID string) (*PlaylistDetail, error) {
	if accessToken == "" || playlistID == "" {
		return nil, fmt.Errorf("%w: access token and playlist id are required", shared.ErrInvalidInput)
	}

	items, err := l.fetcher.PlaylistItems(ctx, accessToken, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracks of %s: %w", playlistID, err)
	}

	meta, err := l.remote.Playlist(ctx, accessToken, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist %s: %w", playlistID, err)
	}

	if items == nil {
		items = []services.SpotifyPlaylistTrack{}
	}
	l.record("get-playlist-tracks passed for playlist " + playlistID)
	return &PlaylistDetail{SpotifyPlaylist: *meta, Tracks: items}, nil
}

// LikedTracks returns every saved track of the token user, most recently saved first.
func (l *Library) LikedTracks(ctx context.Context, accessToken string) ([]services.SpotifyPlaylistTrack, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}

	tracks := []services.SpotifyPlaylistTrack{}
	err := Each(ctx, l.fetcher, accessToken, services.LikedTracksEndpoint, func(items []services.SpotifyPlaylistTrack) error {
		tracks = append(tracks, items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list liked tracks: %w", err)
	}

	l.logger.Debug("listed liked tracks", "count", len(tracks))
	l.record("get-liked-tracks passed")
	return tracks, nil
}

func (l *Library) record(message string) {
	if l.events == nil {
		return
	}
	if err := l.events.AddEvent(message); err != nil {
		l.logger.Warn("failed to record event", "error", err)
	}
}

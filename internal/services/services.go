package services

import (
	"context"
	"encoding/json"

	"github.com/desertthunder/plsync/internal/models"
)

// PlaylistService is the remote transport consumed by the sync engine.
type PlaylistService interface {
	// CurrentUser resolves the identity behind accessToken.
	CurrentUser(ctx context.Context, accessToken string) (*SpotifyUser, error)

	// CreatePlaylist creates a private, non-collaborative playlist owned by userID.
	CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (*SpotifyPlaylist, error)

	// Playlist retrieves playlist metadata by ID.
	Playlist(ctx context.Context, accessToken, playlistID string) (*SpotifyPlaylist, error)

	// ReplaceTracks replaces a playlist's full membership with uris.
	ReplaceTracks(ctx context.Context, accessToken, playlistID string, uris []string) error

	// AddTracks appends uris to a playlist.
	AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error

	// RemoveTracks removes every occurrence of uris from a playlist.
	RemoveTracks(ctx context.Context, accessToken, playlistID string, uris []string) error

	// GetPage fetches one page of a paged collection endpoint.
	GetPage(ctx context.Context, accessToken, endpoint string, limit, offset int) (*Page, error)
}

// TopTracksProvider supplies the desired list for most played playlists.
type TopTracksProvider interface {
	TopTracks(ctx context.Context, accessToken, timeRange string, limit int) (models.TrackList, error)
}

// Page is one page of a paged collection. Items is left undecoded so callers pick the element type.
type Page struct {
	Items  json.RawMessage `json:"items"`
	Next   *string         `json:"next"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// HasNext reports whether the remote signalled another page.
func (p *Page) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

type call struct {
	Method     string
	PlaylistID string
	URIs       []string
	Offset     int
}

// fakeRemote is an in-memory playlist service that records every call.
type fakeRemote struct {
	mu        sync.Mutex
	userID    string
	playlists map[string]models.TrackList
	names     map[string]string
	owned     map[string][]string
	liked     models.TrackList
	calls     []call
	nextID    int

	// failOn returns a non-nil error to fail the n-th call (1-based) of a method.
	failOn func(method string, n int) error
	counts map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		userID:    "user-1",
		playlists: map[string]models.TrackList{},
		names:     map[string]string{},
		owned:     map[string][]string{},
		counts:    map[string]int{},
	}
}

func (f *fakeRemote) record(c call) error {
	f.calls = append(f.calls, c)
	f.counts[c.Method]++
	if f.failOn != nil {
		return f.failOn(c.Method, f.counts[c.Method])
	}
	return nil
}

func (f *fakeRemote) seed(id string, tracks ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists[id] = slices.Clone(models.TrackList(tracks))
}

func (f *fakeRemote) tracks(id string) models.TrackList {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.playlists[id])
}

func (f *fakeRemote) callsTo(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRemote) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRemote) mutations() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		switch c.Method {
		case "replace", "add", "remove":
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRemote) CurrentUser(ctx context.Context, accessToken string) (*services.SpotifyUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(call{Method: "me"}); err != nil {
		return nil, err
	}
	return &services.SpotifyUser{ID: f.userID}, nil
}

func (f *fakeRemote) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (*services.SpotifyPlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(call{Method: "create"}); err != nil {
		return nil, err
	}
	f.nextID++
	id := fmt.Sprintf("created-%d", f.nextID)
	f.playlists[id] = models.TrackList{}
	f.names[id] = name
	return &services.SpotifyPlaylist{ID: id, Name: name, Description: description}, nil
}

func (f *fakeRemote) Playlist(ctx context.Context, accessToken, playlistID string) (*services.SpotifyPlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(call{Method: "playlist", PlaylistID: playlistID}); err != nil {
		return nil, err
	}
	return &services.SpotifyPlaylist{
		ID:    playlistID,
		Name:  "Playlist " + playlistID,
		URI:   "spotify:playlist:" + playlistID,
		Owner: services.Owner{ID: f.userID, DisplayName: "Owner"},
	}, nil
}

func (f *fakeRemote) ReplaceTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(call{Method: "replace", PlaylistID: playlistID, URIs: slices.Clone(uris)}); err != nil {
		return err
	}
	f.playlists[playlistID] = slices.Clone(models.TrackList(uris))
	return nil
}

func (f *fakeRemote) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(call{Method: "add", PlaylistID: playlistID, URIs: slices.Clone(uris)}); err != nil {
		return err
	}
	f.playlists[playlistID] = append(f.playlists[playlistID], uris...)
	return nil
}

func (f *fakeRemote) RemoveTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(call{Method: "remove", PlaylistID: playlistID, URIs: slices.Clone(uris)}); err != nil {
		return err
	}
	drop := models.TrackList(uris).Set()
	kept := models.TrackList{}
	for _, uri := range f.playlists[playlistID] {
		if _, ok := drop[uri]; !ok {
			kept = append(kept, uri)
		}
	}
	f.playlists[playlistID] = kept
	return nil
}

func (f *fakeRemote) GetPage(ctx context.Context, accessToken, endpoint string, limit, offset int) (*services.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case endpoint == services.LikedTracksEndpoint:
		if err := f.record(call{Method: "page", PlaylistID: "liked", Offset: offset}); err != nil {
			return nil, err
		}
		return pageOf(endpoint, trackItems(f.liked), limit, offset)
	case strings.HasSuffix(endpoint, "/playlists"):
		owner := f.userID
		if endpoint != services.UserPlaylistsEndpoint("") {
			owner = strings.TrimSuffix(strings.TrimPrefix(endpoint, "/users/"), "/playlists")
		}
		if err := f.record(call{Method: "page", PlaylistID: owner, Offset: offset}); err != nil {
			return nil, err
		}
		playlists := []services.SpotifyPlaylist{}
		for _, id := range f.owned[owner] {
			playlists = append(playlists, services.SpotifyPlaylist{
				ID:    id,
				Name:  "Playlist " + id,
				Owner: services.Owner{ID: owner},
			})
		}
		return pageOf(endpoint, playlists, limit, offset)
	}

	id := strings.TrimSuffix(strings.TrimPrefix(endpoint, "/playlists/"), "/tracks")
	if err := f.record(call{Method: "page", PlaylistID: id, Offset: offset}); err != nil {
		return nil, err
	}
	return pageOf(endpoint, trackItems(f.playlists[id]), limit, offset)
}

func trackItems(tracks models.TrackList) []services.SpotifyPlaylistTrack {
	items := make([]services.SpotifyPlaylistTrack, 0, len(tracks))
	for _, uri := range tracks {
		items = append(items, services.SpotifyPlaylistTrack{
			AddedAt: "2024-01-01T00:00:00Z",
			Track:   &services.SpotifyTrack{URI: uri, Name: "Track " + uri, Artists: []services.SpotifyArtist{{Name: "Artist"}}},
		})
	}
	return items
}

// pageOf slices all into the page at offset, linking the next page while items remain.
func pageOf[T any](endpoint string, all []T, limit, offset int) (*services.Page, error) {
	end := min(offset+limit, len(all))
	items := []T{}
	if offset < len(all) {
		items = all[offset:end]
	}

	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	page := &services.Page{Items: data, Total: len(all), Limit: limit, Offset: offset}
	if end < len(all) {
		next := fmt.Sprintf("%s?offset=%d&limit=%d", endpoint, end, limit)
		page.Next = &next
	}
	return page, nil
}

// memoryCache is a TrackCache backed by a map.
type memoryCache map[string]models.TrackList

func (m memoryCache) Tracks(playlistID string) (models.TrackList, error) {
	tracks, ok := m[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return tracks, nil
}

type failingEvents struct{ calls int }

func (f *failingEvents) AddEvent(string) error {
	f.calls++
	return fmt.Errorf("events table is locked")
}

func uris(prefix string, n int) models.TrackList {
	out := make(models.TrackList, n)
	for i := range out {
		out[i] = fmt.Sprintf("spotify:track:%s%d", prefix, i)
	}
	return out
}

// Spotify Web API transport
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://api.spotify.com/v1"

	maxErrorPayload = 64 << 10
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"`
}

// SpotifyArtist represents a simplified artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// ArtistNames returns the names of the track's artists in credit order.
func (t *SpotifyTrack) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for local files and tracks that are no longer available.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents playlist metadata.
type SpotifyPlaylist struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Owner         Owner          `json:"owner"`
	Public        bool           `json:"public"`
	Collaborative bool           `json:"collaborative"`
	Tracks        playlistTracks `json:"tracks"`
	URI           string         `json:"uri"`
	SnapshotID    string         `json:"snapshot_id"`
}

// APIError is a non-2xx response from the Spotify API.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error: %s %s: status %d", e.Method, e.Endpoint, e.StatusCode)
}

func (e *APIError) Unwrap() error { return shared.ErrAPIRequest }

// SpotifyClient implements [PlaylistService] over the Spotify Web API.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewSpotifyClient creates a client for baseURL. Empty values fall back to [DefaultBaseURL],
// [http.DefaultClient], and a discarding logger.
func NewSpotifyClient(baseURL string, httpClient *http.Client, logger *log.Logger) *SpotifyClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &SpotifyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// BaseURL returns the API root the client sends requests to.
func (s *SpotifyClient) BaseURL() string { return s.baseURL }

// doRequest performs an authenticated JSON request to the Spotify API.
func (s *SpotifyClient) doRequest(ctx context.Context, accessToken, method, endpoint string, body, result any) error {
	if accessToken == "" {
		return shared.ErrMissingCredentials
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.resolve(endpoint), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token := &oauth2.Token{AccessToken: accessToken}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("spotify request failed", "method", method, "endpoint", endpoint, "error", err)
		return fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPayload))
		s.logger.Error("spotify request rejected",
			"method", method, "endpoint", endpoint, "status", resp.StatusCode, "payload", string(payload))
		return &APIError{Method: method, Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(payload)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// resolve joins an endpoint onto the base URL. Absolute URLs (such as a page's next cursor) pass through.
func (s *SpotifyClient) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return s.baseURL + endpoint
}

// CurrentUser retrieves the profile of the user behind accessToken.
func (s *SpotifyClient) CurrentUser(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, accessToken, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreatePlaylist creates a private playlist for userID.
func (s *SpotifyClient) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (*SpotifyPlaylist, error) {
	body := map[string]any{
		"name":          name,
		"description":   description,
		"public":        false,
		"collaborative": false,
	}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, accessToken, http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// Playlist retrieves a playlist by ID.
func (s *SpotifyClient) Playlist(ctx context.Context, accessToken, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, accessToken, http.MethodGet, playlistPath(playlistID), nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// ReplaceTracks replaces a playlist's tracks with uris.
func (s *SpotifyClient) ReplaceTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	return s.doRequest(ctx, accessToken, http.MethodPut, tracksPath(playlistID), urisBody(uris), nil)
}

// AddTracks appends uris to a playlist.
func (s *SpotifyClient) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	return s.doRequest(ctx, accessToken, http.MethodPost, tracksPath(playlistID), urisBody(uris), nil)
}

type trackRef struct {
	URI string `json:"uri"`
}

// RemoveTracks removes uris from a playlist.
func (s *SpotifyClient) RemoveTracks(ctx context.Context, accessToken, playlistID string, uris []string) error {
	refs := make([]trackRef, 0, len(uris))
	for _, uri := range uris {
		refs = append(refs, trackRef{URI: uri})
	}
	body := map[string][]trackRef{"tracks": refs}
	return s.doRequest(ctx, accessToken, http.MethodDelete, tracksPath(playlistID), body, nil)
}

// GetPage fetches endpoint with limit and offset query parameters, keeping any parameters already present.
func (s *SpotifyClient) GetPage(ctx context.Context, accessToken, endpoint string, limit, offset int) (*Page, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid endpoint %q: %v", shared.ErrInvalidArgument, endpoint, err)
	}

	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	var page Page
	if err := s.doRequest(ctx, accessToken, http.MethodGet, u.String(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// PlaylistTracksEndpoint is the paged collection of a playlist's items.
func PlaylistTracksEndpoint(playlistID string) string {
	return tracksPath(playlistID)
}

// LikedTracksEndpoint is the paged collection of the current user's saved tracks.
const LikedTracksEndpoint = "/me/tracks"

// UserPlaylistsEndpoint is the paged collection of userID's public playlists, or the current user's
// playlists when userID is empty.
func UserPlaylistsEndpoint(userID string) string {
	if userID == "" {
		return "/me/playlists"
	}
	return "/users/" + url.PathEscape(userID) + "/playlists"
}

func playlistPath(playlistID string) string {
	return "/playlists/" + url.PathEscape(playlistID)
}

func tracksPath(playlistID string) string {
	return playlistPath(playlistID) + "/tracks"
}

func urisBody(uris []string) map[string][]string {
	return map[string][]string{"uris": uris}
}

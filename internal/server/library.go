package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
)

// LibraryReader reads live remote data for the token user.
type LibraryReader interface {
	User(ctx context.Context, accessToken string) (*services.SpotifyUser, error)
	Playlists(ctx context.Context, accessToken, userID string) ([]services.SpotifyPlaylist, error)
	Playlist(ctx context.Context, accessToken, playlistID string) (*tasks.PlaylistDetail, error)
	LikedTracks(ctx context.Context, accessToken string) ([]services.SpotifyPlaylistTrack, error)
}

// LibraryHandler serves the read-only profile, playlist and liked track endpoints.
type LibraryHandler struct {
	library LibraryReader
	logger  *log.Logger
}

func NewLibraryHandler(library LibraryReader, logger *log.Logger) *LibraryHandler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &LibraryHandler{library: library, logger: logger}
}

const (
	routeUser               = "GET /get-user"
	routeUserPlaylists      = "GET /get-user-playlists"
	routeOtherUserPlaylists = "GET /get-other-user-playlists"
	routePlaylistTracks     = "GET /get-playlist-tracks"
	routeLikedTracks        = "GET /get-liked-tracks"
)

// Routes returns the HTTP routes this handler serves.
func (h *LibraryHandler) Routes() []string {
	return []string{routeUser, routeUserPlaylists, routeOtherUserPlaylists, routePlaylistTracks, routeLikedTracks}
}

// ServeHTTP dispatches on the matched mux pattern. Every route requires ?access_token.
func (h *LibraryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("access_token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing Parameters")
		return
	}

	switch r.Pattern {
	case routeUser:
		user, err := h.library.User(r.Context(), token)
		h.respond(w, user, err, "Failed to fetch user")
	case routeUserPlaylists:
		playlists, err := h.library.Playlists(r.Context(), token, "")
		h.respond(w, map[string]any{"playlistData": playlists}, err, "Failed to fetch user playlists")
	case routeOtherUserPlaylists:
		userID := q.Get("userID")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "Missing Parameters")
			return
		}
		playlists, err := h.library.Playlists(r.Context(), token, userID)
		h.respond(w, map[string]any{"playlistData": playlists}, err, "Failed to fetch user playlists")
	case routePlaylistTracks:
		id := q.Get("playlistID")
		if id == "" {
			writeError(w, http.StatusBadRequest, "Missing Parameters")
			return
		}
		detail, err := h.library.Playlist(r.Context(), token, id)
		h.respond(w, detail, err, "Failed to fetch playlist tracks")
	case routeLikedTracks:
		tracks, err := h.library.LikedTracks(r.Context(), token)
		h.respond(w, map[string]any{"playlistData": tracks}, err, "Failed to fetch liked tracks")
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// respond writes v, or maps err to a status: remote 404s pass through, everything else is a 500 with message.
func (h *LibraryHandler) respond(w http.ResponseWriter, v any, err error, message string) {
	if err == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}

	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	h.logger.Error("library request failed", "reason", message, "error", err)
	writeError(w, http.StatusInternalServerError, message)
}

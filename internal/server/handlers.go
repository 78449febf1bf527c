package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
)

// DefaultMaxBodyBytes caps JSON request bodies when [PlaylistHandlerOpts.MaxBodyBytes] is unset.
const DefaultMaxBodyBytes = 50 << 20

// Syncer is the engine surface the routes drive.
type Syncer interface {
	Synchronize(ctx context.Context, progress chan<- tasks.ProgressUpdate, req tasks.SyncRequest) tasks.SyncOutcome
	SynchronizeJoint(ctx context.Context, progress chan<- tasks.ProgressUpdate, req tasks.JointRequest) tasks.SyncOutcome
}

// PlaylistCacher snapshots remote playlists.
type PlaylistCacher interface {
	CachePlaylist(ctx context.Context, accessToken, playlistID string) (*models.CachedPlaylist, error)
}

// CacheReader reads the playlist cache.
type CacheReader interface {
	List() ([]repositories.PlaylistSummary, error)
	Get(serviceID string) (*models.CachedPlaylist, error)
}

// PlaylistHandler serves the playlist sync and cache endpoints.
type PlaylistHandler struct {
	syncer    Syncer
	cacher    PlaylistCacher
	cache     CacheReader
	topTracks services.TopTracksProvider
	topLimit  int
	maxBody   int64
	logger    *log.Logger
}

// PlaylistHandlerOpts holds [PlaylistHandler] dependencies.
type PlaylistHandlerOpts struct {
	Syncer         Syncer
	Cacher         PlaylistCacher
	Cache          CacheReader
	TopTracks      services.TopTracksProvider
	TopTracksLimit int
	MaxBodyBytes   int64
	Logger         *log.Logger
}

func NewPlaylistHandler(opts PlaylistHandlerOpts) *PlaylistHandler {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &PlaylistHandler{
		syncer:    opts.Syncer,
		cacher:    opts.Cacher,
		cache:     opts.Cache,
		topTracks: opts.TopTracks,
		topLimit:  opts.TopTracksLimit,
		maxBody:   maxBody,
		logger:    logger,
	}
}

const (
	routeCreate       = "POST /create-playlist"
	routeCreateJoint  = "POST /create-joint-playlist"
	routeCache        = "POST /cache-playlist"
	routeCachedList   = "GET /cached-playlists"
	routeCachedTracks = "GET /cached-playlist-tracks"
	routeMostPlayed   = "GET /most-played"
)

// Routes returns the HTTP routes this handler serves.
func (h *PlaylistHandler) Routes() []string {
	return []string{routeCreate, routeCreateJoint, routeCache, routeCachedList, routeCachedTracks, routeMostPlayed}
}

// ServeHTTP dispatches on the matched mux pattern.
func (h *PlaylistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case routeCreate:
		h.createPlaylist(w, r)
	case routeCreateJoint:
		h.createJointPlaylist(w, r)
	case routeCache:
		h.cachePlaylist(w, r)
	case routeCachedList:
		h.cachedPlaylists(w, r)
	case routeCachedTracks:
		h.cachedPlaylistTracks(w, r)
	case routeMostPlayed:
		h.mostPlayed(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type createPlaylistRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	AccessToken string                 `json:"access_token"`
	SongList    []string               `json:"songList"`
	Management  *models.DefinitionData `json:"management"`
}

func (h *PlaylistHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var body createPlaylistRequest
	if err := h.decodeBody(w, r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	if body.SongList == nil {
		writeError(w, http.StatusBadRequest, "Missing Parameters")
		return
	}

	req := tasks.SyncRequest{
		Name:        body.Name,
		Description: body.Description,
		AccessToken: body.AccessToken,
		Tracks:      models.TrackList(body.SongList),
	}
	if body.Management != nil {
		def, err := body.Management.Definition()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Definition = def
	}

	writeOutcome(w, h.syncer.Synchronize(r.Context(), nil, req))
}

type createJointRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AccessToken string   `json:"access_token"`
	PlaylistIDs []string `json:"playlistIds"`
}

func (h *PlaylistHandler) createJointPlaylist(w http.ResponseWriter, r *http.Request) {
	var body createJointRequest
	if err := h.decodeBody(w, r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	if body.PlaylistIDs == nil {
		writeError(w, http.StatusBadRequest, "Missing Parameters")
		return
	}

	writeOutcome(w, h.syncer.SynchronizeJoint(r.Context(), nil, tasks.JointRequest{
		Name:        body.Name,
		Description: body.Description,
		AccessToken: body.AccessToken,
		PlaylistIDs: body.PlaylistIDs,
	}))
}

type cachePlaylistRequest struct {
	AccessToken string `json:"access_token"`
	PlaylistID  string `json:"playlistID"`
}

func (h *PlaylistHandler) cachePlaylist(w http.ResponseWriter, r *http.Request) {
	var body cachePlaylistRequest
	if err := h.decodeBody(w, r, &body); err != nil {
		writeBodyError(w, err)
		return
	}
	if body.PlaylistID == "" || body.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "Missing Parameters")
		return
	}

	playlist, err := h.cacher.CachePlaylist(r.Context(), body.AccessToken, body.PlaylistID)
	if err != nil {
		h.logger.Error("failed to cache playlist", "playlist", body.PlaylistID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to cache playlist")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "trackCount": len(playlist.Tracks)})
}

type playlistJSON struct {
	ID         string      `json:"id"`
	URI        string      `json:"uri,omitempty"`
	Name       string      `json:"name"`
	Owner      string      `json:"owner"`
	TrackCount int         `json:"trackCount"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	Tracks     []trackJSON `json:"tracks,omitempty"`
}

type trackJSON struct {
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	AddedAt string   `json:"addedAt,omitempty"`
}

func (h *PlaylistHandler) cachedPlaylists(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.cache.List()
	if err != nil {
		h.logger.Error("failed to list cached playlists", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list cached playlists")
		return
	}

	out := make([]playlistJSON, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, playlistJSON{
			ID:         s.ServiceID,
			Name:       s.Name,
			Owner:      s.OwnerName,
			TrackCount: s.TrackCount,
			UpdatedAt:  s.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PlaylistHandler) cachedPlaylistTracks(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("playlistID")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing Parameters")
		return
	}

	p, err := h.cache.Get(id)
	if errors.Is(err, shared.ErrPlaylistNotFound) {
		writeError(w, http.StatusNotFound, "Playlist not cached")
		return
	}
	if err != nil {
		h.logger.Error("failed to read cached playlist", "playlist", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read cached playlist")
		return
	}

	out := playlistJSON{
		ID:         p.ServiceID,
		URI:        p.URI,
		Name:       p.Name,
		Owner:      p.OwnerName,
		TrackCount: len(p.Tracks),
		UpdatedAt:  p.UpdatedAt,
		Tracks:     make([]trackJSON, 0, len(p.Tracks)),
	}
	for _, t := range p.Tracks {
		out.Tracks = append(out.Tracks, trackJSON{URI: t.URI, Name: t.Name, Artists: t.Artists, AddedAt: t.AddedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *PlaylistHandler) mostPlayed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := q.Get("access_token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Missing Parameters")
		return
	}

	tracks, err := h.topTracks.TopTracks(r.Context(), token, q.Get("length"), h.topLimit)
	if errors.Is(err, shared.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch most played", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch most played tracks")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"trackData": tracks})
}

func (h *PlaylistHandler) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeBodyError reports an oversized body as 413 and any other decode failure as missing parameters.
func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large (limit %d bytes)", tooLarge.Limit))
		return
	}
	writeError(w, http.StatusBadRequest, "Missing Parameters")
}

func writeOutcome(w http.ResponseWriter, outcome tasks.SyncOutcome) {
	if !outcome.Successful {
		writeError(w, http.StatusInternalServerError, outcome.Error)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

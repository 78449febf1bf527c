package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"
)

// fakeSpotify serves the subset of the Web API the CLI drives, keeping playlists in memory.
type fakeSpotify struct {
	*httptest.Server

	mu        sync.Mutex
	userID    string
	playlists map[string][]string
	names     map[string]string
	owners    map[string]string
	liked     []string
	top       []string
	created   int
}

func newFakeSpotify(t *testing.T) *fakeSpotify {
	t.Helper()

	f := &fakeSpotify{
		userID:    "listener",
		playlists: map[string][]string{},
		names:     map[string]string{},
		owners:    map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, map[string]string{"id": f.userID, "display_name": "Listener"})
	})
	mux.HandleFunc("GET /me/top/tracks", f.topTracks)
	mux.HandleFunc("GET /me/tracks", f.likedTracks)
	mux.HandleFunc("GET /me/playlists", f.userPlaylists)
	mux.HandleFunc("GET /users/{user}/playlists", f.userPlaylists)
	mux.HandleFunc("POST /users/{user}/playlists", f.createPlaylist)
	mux.HandleFunc("GET /playlists/{id}", f.playlist)
	mux.HandleFunc("GET /playlists/{id}/tracks", f.tracks)
	mux.HandleFunc("PUT /playlists/{id}/tracks", f.mutate)
	mux.HandleFunc("POST /playlists/{id}/tracks", f.mutate)
	mux.HandleFunc("DELETE /playlists/{id}/tracks", f.mutate)

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"status":401,"message":"Invalid access token"}}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeSpotify) seed(id, name string, uris ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists[id] = uris
	f.names[id] = name
}

// seedFor seeds a playlist owned by another user.
func (f *fakeSpotify) seedFor(owner, id, name string, uris ...string) {
	f.seed(id, name, uris...)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[id] = owner
}

func (f *fakeSpotify) tracksOf(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.playlists[id]...)
}

func (f *fakeSpotify) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.created++
	id := "created-" + strconv.Itoa(f.created)
	f.playlists[id] = nil
	f.names[id] = body.Name
	f.owners[id] = f.userID
	f.mu.Unlock()

	writeFakeStatus(w, http.StatusCreated, map[string]string{"id": id, "name": body.Name, "uri": "spotify:playlist:" + id})
}

func (f *fakeSpotify) playlist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	_, ok := f.playlists[id]
	name := f.names[id]
	owner := f.ownerOf(id)
	f.mu.Unlock()

	if !ok {
		writeFakeStatus(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Not found."}})
		return
	}
	writeFake(w, map[string]any{
		"id":    id,
		"name":  name,
		"uri":   "spotify:playlist:" + id,
		"owner": map[string]string{"id": owner, "display_name": "Listener"},
	})
}

func (f *fakeSpotify) tracks(w http.ResponseWriter, r *http.Request) {
	f.page(w, r, trackItems(f.tracksOf(r.PathValue("id"))))
}

func (f *fakeSpotify) likedTracks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	liked := append([]string(nil), f.liked...)
	f.mu.Unlock()
	f.page(w, r, trackItems(liked))
}

// userPlaylists lists the playlists owned by {user}, or by the token user on /me/playlists.
func (f *fakeSpotify) userPlaylists(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("user")
	if owner == "" {
		owner = f.userID
	}

	f.mu.Lock()
	ids := make([]string, 0, len(f.playlists))
	for id := range f.playlists {
		if f.ownerOf(id) == owner {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	items := []map[string]any{}
	for _, id := range ids {
		items = append(items, map[string]any{
			"id":     id,
			"name":   f.names[id],
			"uri":    "spotify:playlist:" + id,
			"owner":  map[string]string{"id": owner, "display_name": owner},
			"tracks": map[string]int{"total": len(f.playlists[id])},
		})
	}
	f.mu.Unlock()

	f.page(w, r, items)
}

// ownerOf defaults to the token user. Callers hold f.mu.
func (f *fakeSpotify) ownerOf(id string) string {
	if owner, ok := f.owners[id]; ok {
		return owner
	}
	return f.userID
}

func trackItems(uris []string) []map[string]any {
	items := make([]map[string]any, 0, len(uris))
	for _, uri := range uris {
		items = append(items, map[string]any{
			"added_at": "2024-01-01T00:00:00Z",
			"track": map[string]any{
				"uri":     uri,
				"name":    "Track " + uri,
				"artists": []map[string]string{{"name": "Artist"}},
			},
		})
	}
	return items
}

// page writes one limit/offset window of all with an absolute next URL.
func (f *fakeSpotify) page(w http.ResponseWriter, r *http.Request, all []map[string]any) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit == 0 {
		limit = 50
	}

	end := min(offset+limit, len(all))
	items := []map[string]any{}
	if offset < end {
		items = all[offset:end]
	}

	var next *string
	if end < len(all) {
		n := fmt.Sprintf("%s%s?limit=%d&offset=%d", f.URL, r.URL.Path, limit, end)
		next = &n
	}
	writeFake(w, map[string]any{"items": items, "next": next, "total": len(all), "limit": limit, "offset": offset})
}

func (f *fakeSpotify) mutate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		URIs   []string `json:"uris"`
		Tracks []struct {
			URI string `json:"uri"`
		} `json:"tracks"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		f.playlists[id] = body.URIs
	case http.MethodPost:
		f.playlists[id] = append(f.playlists[id], body.URIs...)
	case http.MethodDelete:
		drop := map[string]bool{}
		for _, t := range body.Tracks {
			drop[t.URI] = true
		}
		kept := []string{}
		for _, uri := range f.playlists[id] {
			if !drop[uri] {
				kept = append(kept, uri)
			}
		}
		f.playlists[id] = kept
	}

	writeFakeStatus(w, http.StatusCreated, map[string]string{"snapshot_id": "snap"})
}

func (f *fakeSpotify) topTracks(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	top := append([]string(nil), f.top...)
	f.mu.Unlock()

	items := []map[string]any{}
	for i, uri := range top {
		items = append(items, map[string]any{"id": strconv.Itoa(i), "name": "Top " + uri, "uri": uri})
	}
	writeFake(w, map[string]any{"items": items, "next": nil, "total": len(items), "limit": 50, "offset": 0})
}

func writeFake(w http.ResponseWriter, v any) {
	writeFakeStatus(w, http.StatusOK, v)
}

func writeFakeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

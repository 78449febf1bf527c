package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/plsync/internal/shared"
	tu "github.com/desertthunder/plsync/internal/testing"
)

func TestSpotifyClient(t *testing.T) {
	t.Run("NewSpotifyClient", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			c := NewSpotifyClient("", nil, nil)
			if c.BaseURL() != DefaultBaseURL {
				t.Errorf("expected %s, got %s", DefaultBaseURL, c.BaseURL())
			}
			if c.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})

		t.Run("Trims Trailing Slash", func(t *testing.T) {
			c := NewSpotifyClient("http://example.com/v1/", nil, nil)
			if c.BaseURL() != "http://example.com/v1" {
				t.Errorf("expected trimmed base url, got %s", c.BaseURL())
			}
		})
	})

	t.Run("CurrentUser", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me" {
				t.Errorf("expected path /me, got %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("expected bearer header, got %q", got)
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "display_name": "User"})
		}))
		defer server.Close()

		user, err := NewSpotifyClient(server.URL, nil, nil).CurrentUser(context.Background(), "tok")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.ID != "user-1" {
			t.Errorf("expected user-1, got %s", user.ID)
		}
	})

	t.Run("Missing Token", func(t *testing.T) {
		called := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer server.Close()

		_, err := NewSpotifyClient(server.URL, nil, nil).CurrentUser(context.Background(), "")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if called {
			t.Error("expected no request without a token")
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/users/user-1/playlists" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}

			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body["name"] != "Mix" || body["description"] != "desc" {
				t.Errorf("unexpected body %v", body)
			}
			if body["public"] != false || body["collaborative"] != false {
				t.Errorf("expected private non-collaborative playlist, got %v", body)
			}

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "pl-1", "name": "Mix"})
		}))
		defer server.Close()

		pl, err := NewSpotifyClient(server.URL, nil, nil).CreatePlaylist(context.Background(), "tok", "user-1", "Mix", "desc")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pl.ID != "pl-1" {
			t.Errorf("expected pl-1, got %s", pl.ID)
		}
	})

	t.Run("Track Mutations", func(t *testing.T) {
		tc := []struct {
			name   string
			method string
			call   func(c *SpotifyClient) error
			want   string
		}{
			{
				name:   "Replace",
				method: http.MethodPut,
				call: func(c *SpotifyClient) error {
					return c.ReplaceTracks(context.Background(), "tok", "pl-1", []string{"a", "b"})
				},
				want: `{"uris":["a","b"]}`,
			},
			{
				name:   "Add",
				method: http.MethodPost,
				call: func(c *SpotifyClient) error {
					return c.AddTracks(context.Background(), "tok", "pl-1", []string{"a"})
				},
				want: `{"uris":["a"]}`,
			},
			{
				name:   "Remove",
				method: http.MethodDelete,
				call: func(c *SpotifyClient) error {
					return c.RemoveTracks(context.Background(), "tok", "pl-1", []string{"a", "b"})
				},
				want: `{"tracks":[{"uri":"a"},{"uri":"b"}]}`,
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					if r.Method != tt.method {
						t.Errorf("expected %s, got %s", tt.method, r.Method)
					}
					if r.URL.Path != "/playlists/pl-1/tracks" {
						t.Errorf("expected tracks path, got %s", r.URL.Path)
					}
					if ct := r.Header.Get("Content-Type"); ct != "application/json" {
						t.Errorf("expected json content type, got %q", ct)
					}
					data, _ := io.ReadAll(r.Body)
					if strings.TrimSpace(string(data)) != tt.want {
						t.Errorf("expected body %s, got %s", tt.want, data)
					}
					w.WriteHeader(http.StatusCreated)
					w.Write([]byte(`{"snapshot_id":"s"}`))
				}))
				defer server.Close()

				if err := tt.call(NewSpotifyClient(server.URL, nil, nil)); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
			})
		}
	})

	t.Run("GetPage", func(t *testing.T) {
		t.Run("Adds Limit And Offset", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("limit") != "50" || q.Get("offset") != "100" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				if q.Get("fields") != "items" {
					t.Errorf("expected existing parameter to survive, got %s", r.URL.RawQuery)
				}
				w.Write([]byte(`{"items":[{"x":1}],"next":null,"total":101}`))
			}))
			defer server.Close()

			page, err := NewSpotifyClient(server.URL, nil, nil).GetPage(context.Background(), "tok", "/playlists/p/tracks?fields=items", 50, 100)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if page.HasNext() {
				t.Error("expected no next page")
			}
			if string(page.Items) != `[{"x":1}]` {
				t.Errorf("unexpected items %s", page.Items)
			}
		})

		t.Run("Reports Next", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"items":[],"next":"http://example.com/next"}`))
			}))
			defer server.Close()

			page, err := NewSpotifyClient(server.URL, nil, nil).GetPage(context.Background(), "tok", "/me/playlists", 10, 0)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !page.HasNext() {
				t.Error("expected a next page")
			}
		})
	})

	t.Run("Collection Endpoints", func(t *testing.T) {
		tc := []struct {
			name string
			got  string
			want string
		}{
			{name: "current user playlists", got: UserPlaylistsEndpoint(""), want: "/me/playlists"},
			{name: "other user playlists", got: UserPlaylistsEndpoint("dj kool"), want: "/users/dj%20kool/playlists"},
			{name: "playlist tracks", got: PlaylistTracksEndpoint("p1"), want: "/playlists/p1/tracks"},
			{name: "liked tracks", got: LikedTracksEndpoint, want: "/me/tracks"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if tt.got != tt.want {
					t.Errorf("expected %s, got %s", tt.want, tt.got)
				}
			})
		}
	})

	t.Run("Errors", func(t *testing.T) {
		t.Run("Non-2xx Returns APIError", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":{"status":403,"message":"Insufficient client scope"}}`))
			}))
			defer server.Close()

			_, err := NewSpotifyClient(server.URL, nil, nil).CurrentUser(context.Background(), "tok")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode != http.StatusForbidden {
				t.Errorf("expected 403, got %d", apiErr.StatusCode)
			}
			if !strings.Contains(apiErr.Body, "Insufficient client scope") {
				t.Errorf("expected payload to be kept, got %s", apiErr.Body)
			}
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Error("expected APIError to match ErrAPIRequest")
			}
		})

		t.Run("Transport Failure", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
			err := NewSpotifyClient("http://example.com", client, nil).AddTracks(context.Background(), "tok", "p", []string{"a"})
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Mocked Transport", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(tu.JSONResponse(http.StatusOK, `{"id":"mock-user","display_name":"Mock"}`), nil)}
			user, err := NewSpotifyClient("http://example.com", client, nil).CurrentUser(context.Background(), "tok")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.ID != "mock-user" {
				t.Errorf("expected mock-user, got %s", user.ID)
			}
		})

		t.Run("Unreadable Body", func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &tu.FCloser{}}
			client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
			_, err := NewSpotifyClient("http://example.com", client, nil).CurrentUser(context.Background(), "tok")
			if err == nil || !strings.Contains(err.Error(), "failed to decode response") {
				t.Errorf("expected decode error, got %v", err)
			}
		})

		t.Run("Malformed Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			}))
			defer server.Close()

			_, err := NewSpotifyClient(server.URL, nil, nil).CurrentUser(context.Background(), "tok")
			if err == nil || !strings.Contains(err.Error(), "failed to decode response") {
				t.Errorf("expected decode error, got %v", err)
			}
		})
	})
}

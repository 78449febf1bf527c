package tasks

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/shared"
	th "github.com/desertthunder/plsync/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEngine struct {
	sync        *Synchronizer
	logs        *bytes.Buffer
	remote      *fakeRemote
	managements *repositories.ManagementRepository
	playlists   *repositories.PlaylistRepository
	events      *repositories.EventRepository
}

func newTestEngine(t *testing.T, cache TrackCache, events EventRecorder) *testEngine {
	t.Helper()

	db := th.MustOpenDB(t)

	e := &testEngine{
		logs:        &bytes.Buffer{},
		remote:      newFakeRemote(),
		managements: repositories.NewManagementRepository(db),
		playlists:   repositories.NewPlaylistRepository(db),
		events:      repositories.NewEventRepository(db),
	}
	if cache == nil {
		cache = e.playlists
	}
	if events == nil {
		events = e.events
	}

	e.sync = NewSynchronizer(Options{
		Remote:              e.remote,
		Managements:         e.managements,
		Cache:               cache,
		Events:              events,
		MaxTracksPerRequest: 100,
		PageSize:            50,
		Logger:              shared.NewLogger(e.logs),
	})
	return e
}

// manage registers playlistID for the fake user and seeds its remote contents.
func (e *testEngine) manage(t *testing.T, playlistID string, def models.ManagementDefinition, current ...string) {
	t.Helper()
	e.remote.seed(playlistID, current...)
	_, err := e.sync.Registry().Register(playlistID, e.remote.userID, def)
	require.NoError(t, err)
}

func request(tracks models.TrackList, def models.ManagementDefinition) SyncRequest {
	return SyncRequest{Name: "Mix", Description: "generated", AccessToken: "tok", Tracks: tracks, Definition: def}
}

func TestSynchronize(t *testing.T) {
	ctx := context.Background()
	mostPlayed := models.MostPlayed{Subtype: models.LongTerm}

	t.Run("Validation", func(t *testing.T) {
		t.Run("Empty Tracks", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)

			out := e.sync.Synchronize(ctx, nil, request(nil, mostPlayed))
			assert.False(t, out.Successful)
			assert.Equal(t, "Insufficient Input: songList", out.Error)
			assert.Empty(t, out.PlaylistID)
			assert.Zero(t, e.remote.totalCalls())
		})

		t.Run("Lists Every Missing Field", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)

			out := e.sync.Synchronize(ctx, nil, SyncRequest{Tracks: models.TrackList{"a"}, Definition: mostPlayed})
			assert.Equal(t, "Insufficient Input: playlistName playlistDescription access_token", out.Error)
			assert.Zero(t, e.remote.totalCalls())
		})

		t.Run("Missing Definition", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)

			out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"a"}, nil))
			assert.Contains(t, out.Error, "management")
			assert.Zero(t, e.remote.totalCalls())
		})
	})

	t.Run("Creates Unmanaged Playlist", func(t *testing.T) {
		e := newTestEngine(t, nil, nil)
		desired := uris("t", 250)

		out := e.sync.Synchronize(ctx, nil, request(desired, mostPlayed))
		require.True(t, out.Successful, out.Error)
		assert.True(t, out.Created)
		assert.Equal(t, "created-1", out.PlaylistID)

		assert.Len(t, e.remote.callsTo("create"), 1)
		assert.Len(t, e.remote.callsTo("add"), 3)
		assert.Empty(t, e.remote.callsTo("replace"))
		assert.Equal(t, desired, e.remote.tracks(out.PlaylistID))

		record, found, err := e.sync.Registry().Resolve("user-1", mostPlayed)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, out.PlaylistID, record.RemotePlaylistID)

		events, err := e.events.Recent(5)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Contains(t, events[0].Message, "Mix")
	})

	t.Run("Second Run Updates Instead Of Creating", func(t *testing.T) {
		e := newTestEngine(t, nil, nil)

		first := e.sync.Synchronize(ctx, nil, request(uris("a", 10), mostPlayed))
		require.True(t, first.Successful, first.Error)

		second := e.sync.Synchronize(ctx, nil, request(uris("b", 10), mostPlayed))
		require.True(t, second.Successful, second.Error)
		assert.False(t, second.Created)
		assert.Equal(t, first.PlaylistID, second.PlaylistID)
		assert.Len(t, e.remote.callsTo("create"), 1)
	})

	t.Run("Overwrite", func(t *testing.T) {
		for _, n := range []int{1, 100, 101, 250} {
			e := newTestEngine(t, nil, nil)
			e.manage(t, "pl", mostPlayed, uris("old", 30)...)
			desired := uris("new", n)

			out := e.sync.Synchronize(ctx, nil, request(desired, mostPlayed))
			require.True(t, out.Successful, out.Error)
			assert.False(t, out.Created)
			assert.Equal(t, "pl", out.PlaylistID)

			replaces := e.remote.callsTo("replace")
			require.Len(t, replaces, 1, "n=%d", n)
			assert.Len(t, replaces[0].URIs, min(n, 100))
			assert.Len(t, e.remote.callsTo("add"), (max(n-100, 0)+99)/100, "n=%d", n)

			mutations := e.remote.mutations()
			assert.Equal(t, "replace", mutations[0].Method, "replacement must come first")

			items, err := e.sync.Fetcher().PlaylistItems(ctx, "tok", "pl")
			require.NoError(t, err)
			var final models.TrackList
			for _, item := range items {
				final = append(final, item.Track.URI)
			}
			assert.Equal(t, desired, final, "n=%d", n)
		}
	})

	t.Run("Modify", func(t *testing.T) {
		joint := models.NewJoint("A", "B")

		t.Run("Scenario", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			e.manage(t, "pl", joint, "b", "c", "d")

			out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"a", "b", "c"}, joint))
			require.True(t, out.Successful, out.Error)

			adds, removes := e.remote.callsTo("add"), e.remote.callsTo("remove")
			require.Len(t, adds, 1)
			require.Len(t, removes, 1)
			assert.Equal(t, []string{"a"}, adds[0].URIs)
			assert.Equal(t, []string{"d"}, removes[0].URIs)

			mutations := e.remote.mutations()
			assert.Equal(t, "add", mutations[0].Method, "additions come before removals")
			assert.Equal(t, models.TrackList{"b", "c", "a"}, e.remote.tracks("pl"))
			assert.True(t, e.remote.tracks("pl").SameMembers(models.TrackList{"a", "b", "c"}))
		})

		t.Run("Equal Membership Issues No Mutation", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			e.manage(t, "pl", joint, "c", "b", "a")

			out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"a", "b", "c"}, joint))
			require.True(t, out.Successful, out.Error)
			assert.Empty(t, e.remote.mutations())
		})

		t.Run("Only Additions", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			e.manage(t, "pl", joint, "a")

			out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"a", "b"}, joint))
			require.True(t, out.Successful, out.Error)
			assert.Len(t, e.remote.callsTo("add"), 1)
			assert.Empty(t, e.remote.callsTo("remove"))
		})

		t.Run("Only Removals", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			e.manage(t, "pl", joint, "a", "b")

			out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"a"}, joint))
			require.True(t, out.Successful, out.Error)
			assert.Empty(t, e.remote.callsTo("add"))
			assert.Len(t, e.remote.callsTo("remove"), 1)
		})

		t.Run("Large Delta Across Pages And Chunks", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			current := uris("keep", 120)
			current = append(current, uris("drop", 130)...)
			e.manage(t, "pl", joint, current...)

			desired := append(uris("keep", 120), uris("new", 210)...)
			out := e.sync.Synchronize(ctx, nil, request(desired, joint))
			require.True(t, out.Successful, out.Error)

			assert.Len(t, e.remote.callsTo("page"), 5)
			assert.Len(t, e.remote.callsTo("add"), 3)
			assert.Len(t, e.remote.callsTo("remove"), 2)
			assert.True(t, e.remote.tracks("pl").SameMembers(desired))
		})
	})

	t.Run("Unmapped Type Fails Before Remote Calls", func(t *testing.T) {
		e := newTestEngine(t, nil, nil)
		weekly := models.Unknown{Name: "weekly"}
		e.manage(t, "pl", weekly, "a")

		out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"b"}, weekly))
		assert.False(t, out.Successful)
		assert.Contains(t, out.Error, "weekly")
		assert.Zero(t, e.remote.totalCalls())
	})

	t.Run("Invalid Definitions Fail Before Remote Calls", func(t *testing.T) {
		tc := []struct {
			name string
			def  models.ManagementDefinition
			want string
		}{
			{name: "unknown range", def: models.MostPlayed{Subtype: "bogus"}, want: "bogus"},
			{name: "joint id with separator", def: models.NewJoint("a,b"), want: "a,b"},
			{name: "empty joint id", def: models.NewJoint("a", ""), want: "invalid joint source"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				e := newTestEngine(t, nil, nil)

				out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"b"}, tt.def))
				assert.False(t, out.Successful)
				assert.Contains(t, out.Error, tt.want)
				assert.Zero(t, e.remote.totalCalls())
			})
		}

		t.Run("joint request", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)

			out := e.sync.SynchronizeJoint(ctx, nil, JointRequest{Name: "J", Description: "d", AccessToken: "tok", PlaylistIDs: []string{"a,b"}})
			assert.False(t, out.Successful)
			assert.Zero(t, e.remote.totalCalls())
		})
	})

	t.Run("Remote Failures", func(t *testing.T) {
		t.Run("User Lookup", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			e.remote.failOn = func(method string, n int) error {
				if method == "me" {
					return errors.New("401 unauthorized")
				}
				return nil
			}

			out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"a"}, mostPlayed))
			assert.False(t, out.Successful)
			assert.Contains(t, out.Error, "401 unauthorized")
			assert.Empty(t, e.remote.callsTo("create"))
		})

		t.Run("Partial Add On Create Is Not Registered", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			e.remote.failOn = func(method string, n int) error {
				if method == "add" && n == 2 {
					return errors.New("503 service unavailable")
				}
				return nil
			}

			out := e.sync.Synchronize(ctx, nil, request(uris("t", 250), mostPlayed))
			assert.False(t, out.Successful)
			assert.Contains(t, out.Error, "chunk 2 of 3")
			assert.Empty(t, out.PlaylistID)

			_, found, err := e.sync.Registry().Resolve("user-1", mostPlayed)
			require.NoError(t, err)
			assert.False(t, found)
		})

		t.Run("Partial Modify Logs Chunk Counts", func(t *testing.T) {
			joint := models.NewJoint("A")
			e := newTestEngine(t, nil, nil)
			e.manage(t, "pl", joint, "a")
			e.remote.failOn = func(method string, n int) error {
				if method == "add" && n == 2 {
					return errors.New("503 service unavailable")
				}
				return nil
			}

			out := e.sync.Synchronize(ctx, nil, request(uris("t", 250), joint))
			assert.False(t, out.Successful)

			logs := e.logs.String()
			assert.Contains(t, logs, "failed to update managed playlist")
			assert.Contains(t, logs, "applied=1")
			assert.Contains(t, logs, "total=3")
			assert.Contains(t, logs, "partial=true")
			assert.Contains(t, logs, "playlist=pl")
		})

		t.Run("Replace", func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			e.manage(t, "pl", mostPlayed, "a")
			e.remote.failOn = func(method string, n int) error {
				if method == "replace" {
					return errors.New("500")
				}
				return nil
			}

			out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"b"}, mostPlayed))
			assert.False(t, out.Successful)
			assert.Contains(t, out.Error, "overwrite")
			assert.Empty(t, e.remote.callsTo("add"))
		})

		t.Run("Fetch During Modify", func(t *testing.T) {
			joint := models.NewJoint("A")
			e := newTestEngine(t, nil, nil)
			e.manage(t, "pl", joint, "a")
			e.remote.failOn = func(method string, n int) error {
				if method == "page" {
					return errors.New("timeout")
				}
				return nil
			}

			out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"b"}, joint))
			assert.False(t, out.Successful)
			assert.Empty(t, e.remote.mutations())
		})
	})

	t.Run("Event Failure Is Swallowed", func(t *testing.T) {
		events := &failingEvents{}
		e := newTestEngine(t, nil, events)

		out := e.sync.Synchronize(ctx, nil, request(models.TrackList{"a"}, mostPlayed))
		assert.True(t, out.Successful, out.Error)
		assert.Equal(t, 1, events.calls)
	})

	t.Run("Progress", func(t *testing.T) {
		e := newTestEngine(t, nil, nil)
		progress := make(chan ProgressUpdate, 16)

		out := e.sync.Synchronize(ctx, progress, request(uris("t", 150), mostPlayed))
		require.True(t, out.Successful, out.Error)
		close(progress)

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		assert.Equal(t, []Phase{ResolvingIdentity, Creating, Creating, Creating, Done}, phases)
	})

	t.Run("Full Progress Channel Does Not Block", func(t *testing.T) {
		e := newTestEngine(t, nil, nil)
		progress := make(chan ProgressUpdate)

		out := e.sync.Synchronize(ctx, progress, request(models.TrackList{"a"}, mostPlayed))
		assert.True(t, out.Successful, out.Error)
	})

	t.Run("Concurrent Runs For One Key Create Once", func(t *testing.T) {
		e := newTestEngine(t, nil, nil)

		var wg sync.WaitGroup
		outcomes := make([]SyncOutcome, 6)
		for i := range outcomes {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = e.sync.Synchronize(ctx, nil, request(uris("t", 5), mostPlayed))
			}(i)
		}
		wg.Wait()

		created := 0
		for _, out := range outcomes {
			require.True(t, out.Successful, out.Error)
			assert.Equal(t, "created-1", out.PlaylistID)
			if out.Created {
				created++
			}
		}
		assert.Equal(t, 1, created)
		assert.Len(t, e.remote.callsTo("create"), 1)
	})
}

func TestSynchronizeJoint(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates Union Of Cached Sources", func(t *testing.T) {
		cache := memoryCache{"A": {"a", "b"}, "B": {"b", "c"}}
		e := newTestEngine(t, cache, nil)

		out := e.sync.SynchronizeJoint(ctx, nil, JointRequest{
			Name: "Joint", Description: "both of us", AccessToken: "tok", PlaylistIDs: []string{"A", "missing", "B"},
		})
		require.True(t, out.Successful, out.Error)
		assert.True(t, out.Created)
		assert.Equal(t, models.TrackList{"a", "b", "c"}, e.remote.tracks(out.PlaylistID))

		_, found, err := e.sync.Registry().Resolve("user-1", models.NewJoint("A", "missing", "B"))
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("Resync Applies Delta", func(t *testing.T) {
		cache := memoryCache{"A": {"a", "b"}, "B": {"c"}}
		e := newTestEngine(t, cache, nil)
		req := JointRequest{Name: "Joint", Description: "d", AccessToken: "tok", PlaylistIDs: []string{"A", "B"}}

		first := e.sync.SynchronizeJoint(ctx, nil, req)
		require.True(t, first.Successful, first.Error)

		cache["B"] = models.TrackList{"d"}
		second := e.sync.SynchronizeJoint(ctx, nil, req)
		require.True(t, second.Successful, second.Error)
		assert.False(t, second.Created)
		assert.True(t, e.remote.tracks(first.PlaylistID).SameMembers(models.TrackList{"a", "b", "d"}))
		assert.Empty(t, e.remote.callsTo("replace"))
	})

	t.Run("Uses Playlist Cache Repository", func(t *testing.T) {
		e := newTestEngine(t, nil, nil)
		require.NoError(t, e.playlists.Save(&models.CachedPlaylist{
			ServiceID: "A",
			Tracks:    []models.CachedTrack{{URI: "x"}, {URI: "y"}},
		}))

		out := e.sync.SynchronizeJoint(ctx, nil, JointRequest{Name: "J", Description: "d", AccessToken: "tok", PlaylistIDs: []string{"A"}})
		require.True(t, out.Successful, out.Error)
		assert.Equal(t, models.TrackList{"x", "y"}, e.remote.tracks(out.PlaylistID))
	})

	t.Run("No Cached Sources", func(t *testing.T) {
		e := newTestEngine(t, memoryCache{}, nil)

		out := e.sync.SynchronizeJoint(ctx, nil, JointRequest{Name: "J", Description: "d", AccessToken: "tok", PlaylistIDs: []string{"A"}})
		assert.False(t, out.Successful)
		assert.Contains(t, out.Error, "Insufficient Input")
		assert.Zero(t, e.remote.totalCalls())
	})

	t.Run("Missing Sources List", func(t *testing.T) {
		e := newTestEngine(t, memoryCache{}, nil)

		out := e.sync.SynchronizeJoint(ctx, nil, JointRequest{Name: "J", Description: "d", AccessToken: "tok"})
		assert.Equal(t, "Insufficient Input: playlistIds", out.Error)
	})
}

func TestRegistry(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	reg := e.sync.Registry()
	def := models.MostPlayed{Subtype: models.ShortTerm}

	_, found, err := reg.Resolve("owner", def)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = reg.Register("first", "owner", def)
	require.NoError(t, err)
	_, err = reg.Register("second", "owner", models.MostPlayed{Subtype: models.ShortTerm})
	require.NoError(t, err)

	record, found, err := reg.Resolve("owner", def)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", record.RemotePlaylistID)
}

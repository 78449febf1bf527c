// Package services talks to the Spotify Web API on behalf of the sync engine.
//
// # Playlist Transport
//
// [SpotifyClient] is a small JSON client over the endpoints the engine needs:
// the current user profile, playlist creation, and the three track mutations
// (replace, add, remove) on <playlist>/tracks. Every call takes the caller's
// bearer credential; the client holds no token state of its own.
//
// Paged collections are read one page at a time with [SpotifyClient.GetPage],
// which returns the raw items and the next-page cursor. Iteration lives in the
// tasks package.
//
// # Top Tracks
//
// [TopTracksSource] wraps github.com/zmb3/spotify/v2 to read the current user's
// most played tracks for a time range.
//
// # Error Handling
//
// Non-2xx responses are returned as [*APIError], which carries status and
// payload and matches [shared.ErrAPIRequest] with errors.Is. An empty access
// token fails with [shared.ErrMissingCredentials] before any request is made.
package services

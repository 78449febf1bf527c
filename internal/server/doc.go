// Package server is the HTTP routing layer in front of the sync engine.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("POST /create-playlist"),
// so unsupported methods get a 405 from the mux itself.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
//
// # Endpoints
//
// [PlaylistHandler] serves:
//   - POST /create-playlist : synchronize a directly supplied track list
//   - POST /create-joint-playlist : synchronize the union of cached playlists
//   - POST /cache-playlist : snapshot a remote playlist into the cache
//   - GET /cached-playlists : list cached playlists
//   - GET /cached-playlist-tracks?playlistID= : one cached playlist with tracks
//   - GET /most-played?length=&access_token= : the user's top tracks
//
// [LibraryHandler] reads live remote data, each route taking ?access_token=:
//   - GET /get-user : the token user's profile
//   - GET /get-user-playlists : every playlist of the token user, as {"playlistData": [...]}
//   - GET /get-other-user-playlists?userID= : another user's public playlists
//   - GET /get-playlist-tracks?playlistID= : playlist metadata with its full item list
//   - GET /get-liked-tracks : every saved track, as {"playlistData": [...]}
//
// Malformed bodies and missing track lists are 400; bodies over the configured limit are 413.
// Unsuccessful outcomes are 500 with {"error": ...}.
package server

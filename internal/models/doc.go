// Package models defines domain entities for managed playlist synchronization.
//
// The package contains three groups of types:
//
// 1. Management definitions: a closed set of variants describing how a playlist's membership is derived
//   - [MostPlayed] : a user's top tracks for a time range
//   - [Joint] : the deduplicated union of several cached source playlists
//   - [Unknown] : a decoded definition whose type has no implementation
//
// 2. Persistent entities, each implementing [Model]
//   - [ManagementRecord] : pointer from (owner, definition) to a remote playlist
//   - [CachedPlaylist] : snapshot of a remote playlist and its ordered tracks
//   - [Event] : bookkeeping log line
//
// 3. Track lists: [TrackList] is an ordered list of track URIs with set helpers used for delta computation.
//
// Definitions are compared structurally through [ManagementDefinition.Key], never by identity.
package models

// Package tasks implements the managed playlist synchronization engine.
//
// # Orchestration
//
// [Synchronizer.Synchronize] takes a desired track list and a management definition and walks:
//
//	ResolvingIdentity -> {Creating | Overwriting | Modifying} -> Done | Failed
//
// Each run:
//
//  1. Validate input. Missing fields fail immediately with "Insufficient Input: ..." and no remote calls;
//     so does a definition type with no strategy.
//  2. Resolve the Spotify user behind the access token.
//  3. Look up the management record for (user, definition) in the [Registry].
//  4. Unmanaged: create a private playlist, add every track, register it.
//  5. Managed: run the strategy chosen by [SelectStrategy] against the existing playlist.
//
// Failures never escape as errors; they are folded into [SyncOutcome].
// [Synchronizer.SynchronizeJoint] first builds the desired list with the [Aggregator].
//
// # Strategies
//
// Most played playlists use [Overwrite]: one replace call with the first chunk, the rest appended in order.
// Joint playlists use [Modify]: the current membership is fetched in full, then the delta is applied
// with additions before removals. Equal membership issues no mutation.
//
// # Batching
//
// [BatchExecutor] splits mutations into chunks of at most 100 tracks and issues them one at a time.
// It stops at the first failure and reports how many chunks were applied via [BatchError].
//
// # Pagination
//
// [Fetcher.Pages] and [Items] are pull-style sequences over paged endpoints; [Each] is the callback form.
// Any failed page ends the walk with that error.
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Updates use select with default to prevent blocking.
//
// # Concurrency
//
// Remote calls within one synchronization are sequential. Synchronizations sharing an (owner, definition)
// are serialized in-process after identity resolution; different keys run concurrently.
// [Cacher.CacheAll] caches several playlists with bounded concurrency.
package tasks

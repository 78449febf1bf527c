package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/time/rate"
)

// Operation is a chunked playlist mutation.
type Operation int

const (
	Add Operation = iota + 1
	Remove
)

func (o Operation) String() string {
	switch o {
	case Add:
		return "add"
	case Remove:
		return "remove"
	default:
		return ""
	}
}

// Mutator applies track mutations to a remote playlist.
type Mutator interface {
	AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) error
	RemoveTracks(ctx context.Context, accessToken, playlistID string, uris []string) error
}

// BatchError reports a mutation that stopped at a failing chunk.
type BatchError struct {
	Op      Operation
	Applied int // chunks applied before the failure
	Total   int
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s tracks: chunk %d of %d failed: %v", e.Op, e.Applied+1, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Is matches [shared.ErrPartialBatch] when some, but not all, chunks were applied.
func (e *BatchError) Is(target error) bool {
	return target == shared.ErrPartialBatch && e.Applied > 0 && e.Applied < e.Total
}

// Chunks splits tracks into consecutive chunks of at most size, in order.
func Chunks(tracks models.TrackList, size int) []models.TrackList {
	if size <= 0 {
		size = shared.MaxTracksPerRequest
	}
	return slices.Collect(slices.Chunk(tracks, size))
}

// BatchExecutor issues chunked mutations sequentially, stopping at the first failure.
type BatchExecutor struct {
	mutator  Mutator
	maxBatch int
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewBatchExecutor creates a BatchExecutor. maxBatch is clamped to the remote cap.
func NewBatchExecutor(mutator Mutator, maxBatch int, limiter *rate.Limiter, logger *log.Logger) *BatchExecutor {
	if maxBatch <= 0 || maxBatch > shared.MaxTracksPerRequest {
		maxBatch = shared.MaxTracksPerRequest
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &BatchExecutor{mutator: mutator, maxBatch: maxBatch, limiter: limiter, logger: logger}
}

// Apply runs op over tracks one chunk at a time and returns the number of chunks applied.
//
// Applied chunks are not rolled back. A failure is returned as [*BatchError].
func (b *BatchExecutor) Apply(ctx context.Context, playlistID, accessToken string, tracks models.TrackList, op Operation) (int, error) {
	return b.apply(ctx, nil, Modifying, playlistID, accessToken, tracks, op)
}

func (b *BatchExecutor) apply(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	phase Phase,
	playlistID, accessToken string,
	tracks models.TrackList,
	op Operation,
) (int, error) {
	var call func(context.Context, string, string, []string) error
	switch op {
	case Add:
		call = b.mutator.AddTracks
	case Remove:
		call = b.mutator.RemoveTracks
	default:
		return 0, fmt.Errorf("%w: unknown batch operation %d", shared.ErrInvalidArgument, op)
	}

	chunks := Chunks(tracks, b.maxBatch)
	for i, chunk := range chunks {
		fail := func(err error) (int, error) {
			b.logger.Error("batch mutation stopped",
				"op", op, "playlist", playlistID, "chunk", i+1, "chunks", len(chunks), "error", err)
			return i, &BatchError{Op: op, Applied: i, Total: len(chunks), Err: err}
		}

		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return fail(err)
			}
		}

		b.logger.Debug("applying chunk", "op", op, "playlist", playlistID, "chunk", i+1, "size", len(chunk))
		if err := call(ctx, accessToken, playlistID, chunk); err != nil {
			return fail(err)
		}
		sendProgress(progress, chunkUpdate(phase, op, i+1, len(chunks)))
	}

	return len(chunks), nil
}

// IsPartial reports whether err is a batch failure that left some chunks applied.
func IsPartial(err error) bool {
	return errors.Is(err, shared.ErrPartialBatch)
}

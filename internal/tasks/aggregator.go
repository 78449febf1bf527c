package tasks

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// TrackCache returns cached track lists by remote playlist id.
//
// Uncached playlists are reported with [shared.ErrPlaylistNotFound].
type TrackCache interface {
	Tracks(playlistID string) (models.TrackList, error)
}

// Aggregation is the desired track list of a joint playlist.
type Aggregation struct {
	Tracks  models.TrackList
	Missing []string // source ids that were not cached
}

// Aggregator builds the union of cached source playlists.
type Aggregator struct {
	cache  TrackCache
	logger *log.Logger
}

func NewAggregator(cache TrackCache, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Aggregator{cache: cache, logger: logger}
}

// Aggregate returns the deduplicated union of sourceIDs' cached tracks, first occurrence wins,
// sources visited in the given order.
//
// Uncached sources are skipped and listed in [Aggregation.Missing]. Other store failures are returned.
func (a *Aggregator) Aggregate(sourceIDs []string) (*Aggregation, error) {
	result := &Aggregation{Tracks: models.TrackList{}}
	seen := map[string]struct{}{}

	for _, id := range sourceIDs {
		tracks, err := a.cache.Tracks(id)
		if errors.Is(err, shared.ErrPlaylistNotFound) {
			a.logger.Warn("source playlist not cached, skipping", "playlist", id)
			result.Missing = append(result.Missing, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read cached tracks for %s: %w", id, err)
		}

		for _, uri := range tracks {
			if _, ok := seen[uri]; ok {
				continue
			}
			seen[uri] = struct{}{}
			result.Tracks = append(result.Tracks, uri)
		}
	}

	return result, nil
}

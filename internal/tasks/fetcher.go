package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 50

// Pager fetches a single page of a collection endpoint.
type Pager interface {
	GetPage(ctx context.Context, accessToken, endpoint string, limit, offset int) (*services.Page, error)
}

// Fetcher walks paged collections one page at a time.
//
// It never holds more than the current page; buffering is left to the consumer.
type Fetcher struct {
	pager    Pager
	pageSize int
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewFetcher creates a Fetcher. A nil limiter disables pacing.
func NewFetcher(pager Pager, pageSize int, limiter *rate.Limiter, logger *log.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Fetcher{pager: pager, pageSize: pageSize, limiter: limiter, logger: logger}
}

// Pages yields the pages of endpoint at increasing offsets until the remote reports no next page.
//
// The first error is yielded once and ends the sequence. Stopping the loop early stops fetching.
func (f *Fetcher) Pages(ctx context.Context, accessToken, endpoint string) iter.Seq2[*services.Page, error] {
	return func(yield func(*services.Page, error) bool) {
		for offset := 0; ; offset += f.pageSize {
			if f.limiter != nil {
				if err := f.limiter.Wait(ctx); err != nil {
					yield(nil, err)
					return
				}
			}

			page, err := f.pager.GetPage(ctx, accessToken, endpoint, f.pageSize, offset)
			if err != nil {
				f.logger.Error("page fetch failed", "endpoint", endpoint, "offset", offset, "error", err)
				yield(nil, fmt.Errorf("fetch %s at offset %d: %w", endpoint, offset, err))
				return
			}

			f.logger.Debug("fetched page", "endpoint", endpoint, "offset", offset, "next", page.HasNext())
			if !yield(page, nil) || !page.HasNext() {
				return
			}
		}
	}
}

// Items yields each page of endpoint decoded as a slice of T.
func Items[T any](ctx context.Context, f *Fetcher, accessToken, endpoint string) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for page, err := range f.Pages(ctx, accessToken, endpoint) {
			if err != nil {
				yield(nil, err)
				return
			}

			var items []T
			if len(page.Items) > 0 {
				if err := json.Unmarshal(page.Items, &items); err != nil {
					yield(nil, fmt.Errorf("decode page of %s: %w", endpoint, err))
					return
				}
			}
			if !yield(items, nil) {
				return
			}
		}
	}
}

// Each calls consume with every page of endpoint as it arrives. An error from consume stops pagination and is returned.
func Each[T any](ctx context.Context, f *Fetcher, accessToken, endpoint string, consume func([]T) error) error {
	for items, err := range Items[T](ctx, f, accessToken, endpoint) {
		if err != nil {
			return err
		}
		if err := consume(items); err != nil {
			return err
		}
	}
	return nil
}

// PlaylistItems collects the full item list of a playlist.
func (f *Fetcher) PlaylistItems(ctx context.Context, accessToken, playlistID string) ([]services.SpotifyPlaylistTrack, error) {
	var all []services.SpotifyPlaylistTrack
	err := Each(ctx, f, accessToken, services.PlaylistTracksEndpoint(playlistID), func(items []services.SpotifyPlaylistTrack) error {
		all = append(all, items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// maxTopTracksPage is the largest page the top items endpoint accepts.
const maxTopTracksPage = 50

// TopTracksSource reads the current user's most played tracks with the zmb3 Spotify client.
type TopTracksSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewTopTracksSource creates a source against baseURL. httpClient, when set, is the transport
// the bearer token is layered on.
func NewTopTracksSource(baseURL string, httpClient *http.Client, logger *log.Logger) *TopTracksSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &TopTracksSource{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// ParseTimeRange validates a most played subtype. An empty value selects [models.LongTerm].
func ParseTimeRange(s string) (spotify.Range, error) {
	switch s {
	case "":
		return spotify.LongTermRange, nil
	case models.ShortTerm:
		return spotify.ShortTermRange, nil
	case models.MediumTerm:
		return spotify.MediumTermRange, nil
	case models.LongTerm:
		return spotify.LongTermRange, nil
	default:
		return "", fmt.Errorf("%w: unknown time range %q", shared.ErrInvalidInput, s)
	}
}

func (s *TopTracksSource) client(ctx context.Context, accessToken string) *spotify.Client {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	// the zmb3 client appends paths without a separator
	return spotify.New(httpClient, spotify.WithBaseURL(strings.TrimRight(s.baseURL, "/")+"/"))
}

// TopTracks returns up to limit track URIs for timeRange, most played first.
func (s *TopTracksSource) TopTracks(ctx context.Context, accessToken, timeRange string, limit int) (models.TrackList, error) {
	if accessToken == "" {
		return nil, shared.ErrMissingCredentials
	}
	rng, err := ParseTimeRange(timeRange)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = maxTopTracksPage
	}

	client := s.client(ctx, accessToken)
	page, err := client.CurrentUsersTopTracks(ctx, spotify.Timerange(rng), spotify.Limit(min(limit, maxTopTracksPage)))
	if err != nil {
		return nil, s.wrap(err)
	}

	tracks := make(models.TrackList, 0, limit)
	for {
		for _, track := range page.Tracks {
			if len(tracks) == limit {
				return tracks, nil
			}
			tracks = append(tracks, string(track.URI))
		}
		if len(tracks) == limit {
			break
		}

		err := client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, s.wrap(err)
		}
	}

	s.logger.Debug("fetched top tracks", "range", rng, "count", len(tracks))
	return tracks, nil
}

func (s *TopTracksSource) wrap(err error) error {
	var spErr spotify.Error
	if errors.As(err, &spErr) {
		s.logger.Error("top tracks request rejected", "status", spErr.Status, "payload", spErr.Message)
		return &APIError{Method: http.MethodGet, Endpoint: "/me/top/tracks", StatusCode: spErr.Status, Body: spErr.Message}
	}
	s.logger.Error("top tracks request failed", "error", err)
	return fmt.Errorf("%w: top tracks: %v", shared.ErrAPIRequest, err)
}

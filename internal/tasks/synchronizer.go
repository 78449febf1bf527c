package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/time/rate"
)

// SyncOutcome is the result of one synchronization. It is either successful with a playlist id or failed with a reason.
type SyncOutcome struct {
	Successful bool   `json:"successful"`
	Created    bool   `json:"created"`
	PlaylistID string `json:"playlistID,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SyncRequest asks for a managed playlist whose desired tracks are supplied directly.
type SyncRequest struct {
	Name        string
	Description string
	AccessToken string
	Tracks      models.TrackList
	Definition  models.ManagementDefinition
}

// JointRequest asks for a joint playlist built from cached source playlists.
type JointRequest struct {
	Name        string
	Description string
	AccessToken string
	PlaylistIDs []string
}

// EventRecorder stores bookkeeping events.
type EventRecorder interface {
	AddEvent(message string) error
}

// Options configures a [Synchronizer].
type Options struct {
	Remote      services.PlaylistService
	Managements ManagementStore
	Cache       TrackCache
	Events      EventRecorder // optional

	MaxTracksPerRequest int
	PageSize            int
	RequestsPerSecond   float64 // zero disables pacing
	Logger              *log.Logger
}

// Synchronizer resolves, creates, and updates managed playlists.
type Synchronizer struct {
	remote     services.PlaylistService
	registry   *Registry
	aggregator *Aggregator
	fetcher    *Fetcher
	batch      *BatchExecutor
	events     EventRecorder
	maxBatch   int
	locks      *keyedMutex
	logger     *log.Logger
}

// NewSynchronizer wires the engine components around one remote service.
func NewSynchronizer(opts Options) *Synchronizer {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	batch := NewBatchExecutor(opts.Remote, opts.MaxTracksPerRequest, limiter, logger)

	return &Synchronizer{
		remote:     opts.Remote,
		registry:   NewRegistry(opts.Managements),
		aggregator: NewAggregator(opts.Cache, logger),
		fetcher:    NewFetcher(opts.Remote, opts.PageSize, limiter, logger),
		batch:      batch,
		events:     opts.Events,
		maxBatch:   batch.maxBatch,
		locks:      newKeyedMutex(),
		logger:     logger,
	}
}

// Fetcher returns the paginator shared with the synchronizer's rate limit.
func (s *Synchronizer) Fetcher() *Fetcher { return s.fetcher }

// Registry returns the management registry.
func (s *Synchronizer) Registry() *Registry { return s.registry }

// Synchronize brings the managed playlist for req.Definition to req.Tracks, creating it when unmanaged.
func (s *Synchronizer) Synchronize(ctx context.Context, progress chan<- ProgressUpdate, req SyncRequest) SyncOutcome {
	if missing := req.missing(); len(missing) > 0 {
		return s.fail(progress, insufficientInput(missing))
	}
	if err := models.ValidateDefinition(req.Definition); err != nil {
		return s.fail(progress, err.Error())
	}
	if _, err := SelectStrategy(req.Definition); err != nil {
		return s.fail(progress, err.Error())
	}
	return s.run(ctx, progress, req)
}

// SynchronizeJoint aggregates the cached source playlists and synchronizes the result as a joint playlist.
func (s *Synchronizer) SynchronizeJoint(ctx context.Context, progress chan<- ProgressUpdate, req JointRequest) SyncOutcome {
	if missing := req.missing(); len(missing) > 0 {
		return s.fail(progress, insufficientInput(missing))
	}
	def := models.NewJoint(req.PlaylistIDs...)
	if err := models.ValidateDefinition(def); err != nil {
		return s.fail(progress, err.Error())
	}

	agg, err := s.aggregator.Aggregate(req.PlaylistIDs)
	if err != nil {
		return s.fail(progress, fmt.Sprintf("failed to aggregate source playlists: %v", err))
	}
	if len(agg.Missing) > 0 {
		s.logger.Warn("joint playlist built without uncached sources", "missing", strings.Join(agg.Missing, ","))
	}

	return s.Synchronize(ctx, progress, SyncRequest{
		Name:        req.Name,
		Description: req.Description,
		AccessToken: req.AccessToken,
		Tracks:      agg.Tracks,
		Definition:  def,
	})
}

func (s *Synchronizer) run(ctx context.Context, progress chan<- ProgressUpdate, req SyncRequest) SyncOutcome {
	logger := shared.WithLogger(s.logger, "management", req.Definition.Key())

	sendProgress(progress, resolvingUpdate())
	user, err := s.remote.CurrentUser(ctx, req.AccessToken)
	if err != nil {
		logger.Error("failed to resolve user", "error", err)
		return s.fail(progress, fmt.Sprintf("failed to resolve user: %v", err))
	}

	unlock := s.locks.Lock(user.ID + "\x00" + req.Definition.Key())
	defer unlock()

	record, found, err := s.registry.Resolve(user.ID, req.Definition)
	if err != nil {
		logger.Error("failed to resolve management", "owner", user.ID, "error", err)
		return s.fail(progress, err.Error())
	}

	if !found {
		logger.Info("playlist is not managed, creating", "owner", user.ID)
		return s.create(ctx, progress, user.ID, req)
	}

	logger.Info("playlist is managed", "playlist", record.RemotePlaylistID)
	return s.update(ctx, progress, record, req)
}

func (s *Synchronizer) create(ctx context.Context, progress chan<- ProgressUpdate, owner string, req SyncRequest) SyncOutcome {
	sendProgress(progress, creatingUpdate(req.Name, len(req.Tracks)))

	playlist, err := s.remote.CreatePlaylist(ctx, req.AccessToken, owner, req.Name, req.Description)
	if err != nil {
		return s.fail(progress, fmt.Sprintf("failed to create playlist: %v", err))
	}

	if _, err := s.batch.apply(ctx, progress, Creating, playlist.ID, req.AccessToken, req.Tracks, Add); err != nil {
		s.logMutationFailure("failed to fill new playlist", playlist.ID, err)
		return s.fail(progress, fmt.Sprintf("failed to add tracks to new playlist %s: %v", playlist.ID, err))
	}

	if _, err := s.registry.Register(playlist.ID, owner, req.Definition); err != nil {
		return s.fail(progress, fmt.Sprintf("playlist %s created but not registered: %v", playlist.ID, err))
	}

	s.recordEvent("create-playlist passed for playlist " + req.Name)
	return s.done(progress, SyncOutcome{Successful: true, Created: true, PlaylistID: playlist.ID})
}

func (s *Synchronizer) update(ctx context.Context, progress chan<- ProgressUpdate, record *models.ManagementRecord, req SyncRequest) SyncOutcome {
	strategy, err := SelectStrategy(record.Definition)
	if err != nil {
		s.logger.Error("no strategy for management", "type", record.Definition.Type(), "error", err)
		return s.fail(progress, err.Error())
	}

	sendProgress(progress, strategyUpdate(strategy, record.RemotePlaylistID, len(req.Tracks)))

	switch strategy {
	case Overwrite:
		err = s.overwrite(ctx, progress, record.RemotePlaylistID, req.AccessToken, req.Tracks)
	case Modify:
		err = s.modify(ctx, progress, record.RemotePlaylistID, req.AccessToken, req.Tracks)
	}
	if err != nil {
		s.logMutationFailure("failed to update managed playlist", record.RemotePlaylistID, err, "strategy", strategy.String())
		return s.fail(progress, fmt.Sprintf("failed to %s playlist %s: %v", strategy, record.RemotePlaylistID, err))
	}

	return s.done(progress, SyncOutcome{Successful: true, Created: false, PlaylistID: record.RemotePlaylistID})
}

// overwrite replaces remote membership with the first chunk of desired and appends the rest in order.
func (s *Synchronizer) overwrite(ctx context.Context, progress chan<- ProgressUpdate, playlistID, accessToken string, desired models.TrackList) error {
	head := desired[:min(len(desired), s.maxBatch)]
	if err := s.remote.ReplaceTracks(ctx, accessToken, playlistID, head); err != nil {
		return fmt.Errorf("replace tracks: %w", err)
	}

	if _, err := s.batch.apply(ctx, progress, Overwriting, playlistID, accessToken, desired[len(head):], Add); err != nil {
		return err
	}
	return nil
}

// modify fetches the current membership and applies the delta, additions first.
func (s *Synchronizer) modify(ctx context.Context, progress chan<- ProgressUpdate, playlistID, accessToken string, desired models.TrackList) error {
	items, err := s.fetcher.PlaylistItems(ctx, accessToken, playlistID)
	if err != nil {
		return fmt.Errorf("fetch current tracks: %w", err)
	}

	current := make(models.TrackList, 0, len(items))
	for _, item := range items {
		if item.Track != nil && item.Track.URI != "" {
			current = append(current, item.Track.URI)
		}
	}

	delta := ComputeDelta(current, desired)
	s.logger.Debug("computed delta", "playlist", playlistID, "add", len(delta.ToAdd), "remove", len(delta.ToRemove))
	if delta.Empty() {
		return nil
	}

	if _, err := s.batch.apply(ctx, progress, Modifying, playlistID, accessToken, delta.ToAdd, Add); err != nil {
		return err
	}
	if _, err := s.batch.apply(ctx, progress, Modifying, playlistID, accessToken, delta.ToRemove, Remove); err != nil {
		return err
	}
	return nil
}

// logMutationFailure logs err with the chunk counts of a batch that stopped part way.
func (s *Synchronizer) logMutationFailure(msg, playlistID string, err error, kv ...any) {
	kv = append(kv, "playlist", playlistID)

	var batchErr *BatchError
	if errors.As(err, &batchErr) {
		kv = append(kv,
			"operation", batchErr.Op.String(),
			"applied", batchErr.Applied,
			"total", batchErr.Total,
			"partial", IsPartial(err),
		)
	}
	s.logger.Error(msg, append(kv, "error", err)...)
}

func (s *Synchronizer) recordEvent(message string) {
	if s.events == nil {
		return
	}
	if err := s.events.AddEvent(message); err != nil {
		s.logger.Warn("failed to record event", "error", err)
	}
}

func (s *Synchronizer) done(progress chan<- ProgressUpdate, outcome SyncOutcome) SyncOutcome {
	s.logger.Info("synchronization complete", "playlist", outcome.PlaylistID, "created", outcome.Created)
	sendProgress(progress, doneUpdate(outcome))
	return outcome
}

func (s *Synchronizer) fail(progress chan<- ProgressUpdate, reason string) SyncOutcome {
	outcome := SyncOutcome{Successful: false, Error: reason}
	s.logger.Error("synchronization failed", "reason", reason)
	sendProgress(progress, failedUpdate(outcome))
	return outcome
}

func insufficientInput(missing []string) string {
	return "Insufficient Input: " + strings.Join(missing, " ")
}

func (r SyncRequest) missing() []string {
	var missing []string
	if r.Name == "" {
		missing = append(missing, "playlistName")
	}
	if r.Description == "" {
		missing = append(missing, "playlistDescription")
	}
	if r.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if len(r.Tracks) == 0 {
		missing = append(missing, "songList")
	}
	if r.Definition == nil {
		missing = append(missing, "management")
	}
	return missing
}

func (r JointRequest) missing() []string {
	var missing []string
	if r.Name == "" {
		missing = append(missing, "playlistName")
	}
	if r.Description == "" {
		missing = append(missing, "playlistDescription")
	}
	if r.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if len(r.PlaylistIDs) == 0 {
		missing = append(missing, "playlistIds")
	}
	return missing
}

// keyedMutex serializes work per key. Entries are dropped once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*keyedEntry{}}
}

// Lock acquires key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// PlaylistRepository caches remote playlist snapshots.
//
// Playlists are addressed by their remote id; the local id only links the track rows.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Save upserts playlist metadata and replaces its tracks in one transaction.
func (r *PlaylistRepository) Save(playlist *models.CachedPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO playlists (id, sequence, service_id, uri, name, owner_name, track_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (service_id) DO UPDATE SET
			uri = excluded.uri,
			name = excluded.name,
			owner_name = excluded.owner_name,
			track_count = excluded.track_count,
			updated_at = excluded.updated_at
	`
	_, err = tx.Exec(upsert,
		shared.GenerateID(),
		sequence,
		playlist.ServiceID,
		playlist.URI,
		playlist.Name,
		playlist.OwnerName,
		len(playlist.Tracks),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}

	var id string
	if err := tx.QueryRow("SELECT id FROM playlists WHERE service_id = ?", playlist.ServiceID).Scan(&id); err != nil {
		return fmt.Errorf("failed to read playlist id: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM playlist_tracks WHERE playlist_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear playlist tracks: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO playlist_tracks (playlist_id, position, uri, name, artists, added_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for i, track := range playlist.Tracks {
		artists, err := json.Marshal(track.Artists)
		if err != nil {
			return fmt.Errorf("failed to encode artists: %w", err)
		}
		if _, err := stmt.Exec(id, i, track.URI, track.Name, string(artists), track.AddedAt); err != nil {
			return fmt.Errorf("failed to insert track %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist: %w", err)
	}

	playlist.ID = id
	playlist.UpdatedAt = now
	return nil
}

// Get returns a cached playlist with its tracks, or [shared.ErrPlaylistNotFound].
func (r *PlaylistRepository) Get(serviceID string) (*models.CachedPlaylist, error) {
	query := `
		SELECT id, sequence, service_id, uri, name, owner_name, created_at, updated_at
		FROM playlists
		WHERE service_id = ?
	`

	var p models.CachedPlaylist
	err := r.db.QueryRow(query, serviceID).Scan(&p.ID, &p.Sequence, &p.ServiceID, &p.URI, &p.Name, &p.OwnerName, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, serviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	p.Tracks, err = r.tracks(p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Tracks returns the cached track URIs of a playlist in stored order, or [shared.ErrPlaylistNotFound].
func (r *PlaylistRepository) Tracks(serviceID string) (models.TrackList, error) {
	p, err := r.Get(serviceID)
	if err != nil {
		return nil, err
	}
	return p.TrackList(), nil
}

func (r *PlaylistRepository) tracks(playlistID string) ([]models.CachedTrack, error) {
	rows, err := r.db.Query(`SELECT uri, name, artists, added_at FROM playlist_tracks WHERE playlist_id = ? ORDER BY position ASC`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.CachedTrack{}
	for rows.Next() {
		var (
			track   models.CachedTrack
			artists string
		)
		if err := rows.Scan(&track.URI, &track.Name, &artists, &track.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		if artists != "" {
			if err := json.Unmarshal([]byte(artists), &track.Artists); err != nil {
				return nil, fmt.Errorf("failed to decode artists: %w", err)
			}
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// PlaylistSummary is cached playlist metadata without tracks.
type PlaylistSummary struct {
	ServiceID  string
	Name       string
	OwnerName  string
	TrackCount int
	UpdatedAt  time.Time
}

// List returns metadata for every cached playlist ordered by first cache time.
func (r *PlaylistRepository) List() ([]PlaylistSummary, error) {
	rows, err := r.db.Query(`SELECT service_id, name, owner_name, track_count, updated_at FROM playlists ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []PlaylistSummary
	for rows.Next() {
		var s PlaylistSummary
		if err := rows.Scan(&s.ServiceID, &s.Name, &s.OwnerName, &s.TrackCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return playlists, nil
}

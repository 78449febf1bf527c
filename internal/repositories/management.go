package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// ManagementRepository stores [models.ManagementRecord] rows keyed by owner and canonical definition key.
type ManagementRepository struct {
	db *sql.DB
}

// NewManagementRepository creates a new ManagementRepository with the given database connection
func NewManagementRepository(db *sql.DB) *ManagementRepository {
	return &ManagementRepository{db: db}
}

const managementColumns = `id, sequence, owner, definition, remote_playlist_id, created_at, updated_at`

// Get returns the record for (owner, def), or [shared.ErrManagementNotFound].
func (r *ManagementRepository) Get(owner string, def models.ManagementDefinition) (*models.ManagementRecord, error) {
	if err := models.ValidateDefinition(def); err != nil {
		return nil, err
	}

	query := `SELECT ` + managementColumns + ` FROM managements WHERE owner = ? AND definition_key = ?`
	return r.scanOne(r.db.QueryRow(query, owner, def.Key()))
}

// Put upserts record by (owner, definition). On conflict the existing row keeps its id and
// creation time and takes the new remote playlist id.
//
// Binding a remote playlist id that already backs another record fails with [shared.ErrPlaylistIDInUse].
// On success record is refreshed from the stored row.
func (r *ManagementRepository) Put(record *models.ManagementRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	definition, err := models.MarshalDefinition(record.Definition)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}

	sequence, err := NextSequence(r.db, "managements")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	query := `
		INSERT INTO managements (id, sequence, owner, definition_key, management_type, definition, remote_playlist_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, definition_key) DO UPDATE SET
			remote_playlist_id = excluded.remote_playlist_id,
			definition = excluded.definition,
			updated_at = excluded.updated_at
	`

	_, err = r.db.Exec(query,
		shared.GenerateID(),
		sequence,
		record.Owner,
		record.Definition.Key(),
		string(record.Definition.Type()),
		string(definition),
		record.RemotePlaylistID,
		record.CreatedAt,
		now,
	)
	if isUniqueViolation(err, "remote_playlist_id") {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistIDInUse, record.RemotePlaylistID)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert management: %w", err)
	}

	stored, err := r.Get(record.Owner, record.Definition)
	if err != nil {
		return fmt.Errorf("failed to reload management: %w", err)
	}
	*record = *stored
	return nil
}

// List returns all records for owner ordered by sequence. An empty owner lists every record.
func (r *ManagementRepository) List(owner string) ([]*models.ManagementRecord, error) {
	query := `SELECT ` + managementColumns + ` FROM managements`
	args := []any{}
	if owner != "" {
		query += " WHERE owner = ?"
		args = append(args, owner)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query managements: %w", err)
	}
	defer rows.Close()

	var records []*models.ManagementRecord
	for rows.Next() {
		record, err := scanManagement(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

func (r *ManagementRepository) scanOne(row *sql.Row) (*models.ManagementRecord, error) {
	record, err := scanManagement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrManagementNotFound
	}
	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanManagement(s scanner) (*models.ManagementRecord, error) {
	var (
		record     models.ManagementRecord
		definition string
	)

	err := s.Scan(&record.ID, &record.Sequence, &record.Owner, &definition, &record.RemotePlaylistID, &record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan management: %w", err)
	}

	record.Definition, err = models.UnmarshalDefinition([]byte(definition))
	if err != nil {
		return nil, fmt.Errorf("management %s: %w", record.ID, err)
	}

	return &record, nil
}

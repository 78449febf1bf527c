package tasks

import (
	"errors"
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// ManagementStore persists management records.
//
// Put must upsert atomically by (owner, definition).
type ManagementStore interface {
	Get(owner string, def models.ManagementDefinition) (*models.ManagementRecord, error)
	Put(record *models.ManagementRecord) error
}

// Registry maps (owner, definition) pairs to the remote playlists that realize them.
type Registry struct {
	store ManagementStore
}

func NewRegistry(store ManagementStore) *Registry {
	return &Registry{store: store}
}

// Resolve returns the record for (owner, def). A missing record is reported by found, not by err.
func (r *Registry) Resolve(owner string, def models.ManagementDefinition) (record *models.ManagementRecord, found bool, err error) {
	record, err = r.store.Get(owner, def)
	if errors.Is(err, shared.ErrManagementNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve management %s: %w", def.Key(), err)
	}
	return record, true, nil
}

// Register points (owner, def) at remotePlaylistID, replacing any previous target.
func (r *Registry) Register(remotePlaylistID, owner string, def models.ManagementDefinition) (*models.ManagementRecord, error) {
	record := models.NewManagementRecord(remotePlaylistID, owner, def)
	if err := r.store.Put(record); err != nil {
		return nil, fmt.Errorf("register management %s: %w", def.Key(), err)
	}
	return record, nil
}

package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/shared"
)

// ManagementType is the tag of a [ManagementDefinition] variant.
type ManagementType string

const (
	MostPlayedType ManagementType = "mostPlayed"
	JointType      ManagementType = "joint"
)

// Time ranges accepted by [MostPlayed].
const (
	ShortTerm  = "short_term"
	MediumTerm = "medium_term"
	LongTerm   = "long_term"
)

// TimeRanges lists the valid [MostPlayed] subtypes.
var TimeRanges = []string{ShortTerm, MediumTerm, LongTerm}

// jointSeparator joins source ids in a [Joint] key, so it may not appear inside an id.
const jointSeparator = ","

// ManagementDefinition identifies how a managed playlist's membership is derived.
//
// Implementations are immutable values. Two definitions are equal when their keys are equal.
type ManagementDefinition interface {
	// Type returns the variant tag.
	Type() ManagementType
	// Key returns the canonical string used as the registry lookup key.
	Key() string

	isManagementDefinition()
}

// MostPlayed derives membership from the owner's top tracks over Subtype (a time range).
type MostPlayed struct {
	Subtype string
}

func (MostPlayed) Type() ManagementType { return MostPlayedType }

func (m MostPlayed) Key() string { return string(MostPlayedType) + ":" + m.Subtype }

func (MostPlayed) isManagementDefinition() {}

// Joint derives membership from the union of cached source playlists, in source order.
type Joint struct {
	playlistIDs []string
}

// NewJoint builds a [Joint] definition, copying ids so later edits to the caller's slice have no effect.
func NewJoint(ids ...string) Joint {
	return Joint{playlistIDs: slices.Clone(ids)}
}

// PlaylistIDs returns a copy of the source playlist ids in order.
func (j Joint) PlaylistIDs() []string { return slices.Clone(j.playlistIDs) }

func (Joint) Type() ManagementType { return JointType }

func (j Joint) Key() string {
	return string(JointType) + ":" + strings.Join(j.playlistIDs, jointSeparator)
}

func (Joint) isManagementDefinition() {}

// Unknown holds a decoded definition whose type tag has no implementation.
type Unknown struct {
	Name string
}

func (u Unknown) Type() ManagementType { return ManagementType(u.Name) }

func (u Unknown) Key() string { return u.Name + ":" }

func (Unknown) isManagementDefinition() {}

// SameDefinition reports whether a and b are structurally equal.
func SameDefinition(a, b ManagementDefinition) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Key() == b.Key()
}

// ValidateDefinition checks the fields of a known variant. [Unknown] passes so the strategy selector can
// report it.
//
// Joint source ids must be non-empty and free of the key separator, otherwise two different source lists
// could share a registry key.
func ValidateDefinition(def ManagementDefinition) error {
	switch d := def.(type) {
	case nil:
		return fmt.Errorf("%w: management definition is required", shared.ErrInvalidInput)
	case MostPlayed:
		if d.Subtype == "" {
			return fmt.Errorf("%w: mostPlayed management requires a subtype", shared.ErrInvalidInput)
		}
		if !slices.Contains(TimeRanges, d.Subtype) {
			return fmt.Errorf("%w: unknown mostPlayed subtype %q (want one of %s)",
				shared.ErrInvalidInput, d.Subtype, strings.Join(TimeRanges, ", "))
		}
	case Joint:
		if len(d.playlistIDs) == 0 {
			return fmt.Errorf("%w: joint management requires playlistIds", shared.ErrInvalidInput)
		}
		for _, id := range d.playlistIDs {
			if id == "" || strings.Contains(id, jointSeparator) {
				return fmt.Errorf("%w: invalid joint source playlist id %q", shared.ErrInvalidInput, id)
			}
		}
	}
	return nil
}

// DefinitionData is the JSON wire form of a [ManagementDefinition].
type DefinitionData struct {
	Type        string   `json:"type"`
	Subtype     string   `json:"subtype,omitempty"`
	PlaylistIDs []string `json:"playlistIds,omitempty"`
}

// Definition converts the wire form into a variant.
//
// Unrecognized types decode to [Unknown] so the strategy selector can report them.
func (d DefinitionData) Definition() (ManagementDefinition, error) {
	var def ManagementDefinition
	switch ManagementType(d.Type) {
	case MostPlayedType:
		def = MostPlayed{Subtype: d.Subtype}
	case JointType:
		def = NewJoint(d.PlaylistIDs...)
	case "":
		return nil, fmt.Errorf("%w: management type is empty", shared.ErrInvalidInput)
	default:
		return Unknown{Name: d.Type}, nil
	}

	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}
	return def, nil
}

// DataOf returns the wire form of def.
func DataOf(def ManagementDefinition) DefinitionData {
	switch d := def.(type) {
	case MostPlayed:
		return DefinitionData{Type: string(MostPlayedType), Subtype: d.Subtype}
	case Joint:
		return DefinitionData{Type: string(JointType), PlaylistIDs: d.PlaylistIDs()}
	case Unknown:
		return DefinitionData{Type: d.Name}
	default:
		return DefinitionData{}
	}
}

// MarshalDefinition encodes def as JSON.
func MarshalDefinition(def ManagementDefinition) ([]byte, error) {
	return json.Marshal(DataOf(def))
}

// UnmarshalDefinition decodes a JSON definition.
func UnmarshalDefinition(data []byte) (ManagementDefinition, error) {
	var d DefinitionData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: failed to decode management definition: %v", shared.ErrInvalidInput, err)
	}
	return d.Definition()
}

// ParseDefinition parses the canonical key form, e.g. "mostPlayed:long_term" or "joint:id1,id2".
func ParseDefinition(s string) (ManagementDefinition, error) {
	tag, rest, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("%w: management %q must look like type:value", shared.ErrInvalidInput, s)
	}

	d := DefinitionData{Type: tag}
	switch ManagementType(tag) {
	case MostPlayedType:
		d.Subtype = rest
	case JointType:
		for _, id := range strings.Split(rest, ",") {
			if id = strings.TrimSpace(id); id != "" {
				d.PlaylistIDs = append(d.PlaylistIDs, id)
			}
		}
	}
	return d.Definition()
}

// ManagementRecord points a (owner, definition) pair at the remote playlist that realizes it.
type ManagementRecord struct {
	ID               string
	Sequence         int
	RemotePlaylistID string
	Owner            string
	Definition       ManagementDefinition
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewManagementRecord creates a record with creation timestamps set to now.
func NewManagementRecord(remotePlaylistID, owner string, def ManagementDefinition) *ManagementRecord {
	now := time.Now().UTC()
	return &ManagementRecord{
		RemotePlaylistID: remotePlaylistID,
		Owner:            owner,
		Definition:       def,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (r *ManagementRecord) GetID() string      { return r.ID }
func (r *ManagementRecord) Created() time.Time { return r.CreatedAt }
func (r *ManagementRecord) Updated() time.Time { return r.UpdatedAt }

// Validate checks that the record has every field needed to be stored.
func (r *ManagementRecord) Validate() error {
	if r.RemotePlaylistID == "" {
		return fmt.Errorf("%w: remote playlist id is required", shared.ErrInvalidInput)
	}
	if r.Owner == "" {
		return fmt.Errorf("%w: owner is required", shared.ErrInvalidInput)
	}
	return ValidateDefinition(r.Definition)
}

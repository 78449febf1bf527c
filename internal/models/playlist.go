package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/shared"
)

// TrackList is an ordered sequence of track URIs.
//
// Order matters for display only; membership decisions use [TrackList.Set].
type TrackList []string

// Set returns the membership set of the list.
func (t TrackList) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(t))
	for _, uri := range t {
		set[uri] = struct{}{}
	}
	return set
}

// Dedupe returns the list with later duplicates dropped, keeping first-occurrence order.
func (t TrackList) Dedupe() TrackList {
	seen := make(map[string]struct{}, len(t))
	out := make(TrackList, 0, len(t))
	for _, uri := range t {
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	return out
}

// Difference returns the distinct members of t that are absent from other, in t's order.
func (t TrackList) Difference(other TrackList) TrackList {
	exclude := other.Set()
	out := TrackList{}
	for _, uri := range t.Dedupe() {
		if _, ok := exclude[uri]; !ok {
			out = append(out, uri)
		}
	}
	return out
}

// SameMembers reports whether t and other contain the same set of tracks.
func (t TrackList) SameMembers(other TrackList) bool {
	a, b := t.Set(), other.Set()
	if len(a) != len(b) {
		return false
	}
	for uri := range a {
		if _, ok := b[uri]; !ok {
			return false
		}
	}
	return true
}

// CachedTrack is one entry of a cached playlist.
type CachedTrack struct {
	URI     string   `json:"uri"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	AddedAt string   `json:"addedAt,omitempty"`
}

// CachedPlaylist is a stored snapshot of a remote playlist.
type CachedPlaylist struct {
	ID        string        `json:"-"`
	Sequence  int           `json:"-"`
	ServiceID string        `json:"id"` // remote playlist id
	URI       string        `json:"uri,omitempty"`
	Name      string        `json:"name"`
	OwnerName string        `json:"owner"`
	Tracks    []CachedTrack `json:"tracks"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (p *CachedPlaylist) GetID() string      { return p.ID }
func (p *CachedPlaylist) Created() time.Time { return p.CreatedAt }
func (p *CachedPlaylist) Updated() time.Time { return p.UpdatedAt }

// Validate requires the remote id and non-empty track URIs.
func (p *CachedPlaylist) Validate() error {
	if p.ServiceID == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}
	for i, track := range p.Tracks {
		if track.URI == "" {
			return fmt.Errorf("%w: track %d has no uri", shared.ErrInvalidInput, i)
		}
	}
	return nil
}

// TrackList returns the playlist's track URIs in stored order.
func (p *CachedPlaylist) TrackList() TrackList {
	out := make(TrackList, 0, len(p.Tracks))
	for _, track := range p.Tracks {
		out = append(out, track.URI)
	}
	return out
}

// Event is a bookkeeping log entry.
type Event struct {
	ID        string
	Message   string
	CreatedAt time.Time
}

package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a synchronization.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Orchestration state
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Phase mirrors the synchronizer states.
//
//	ResolvingIdentity -> {Creating | Overwriting | Modifying} -> Done | Failed
type Phase int

const (
	ResolvingIdentity Phase = iota
	Creating
	Overwriting
	Modifying
	Done
	Failed
	Caching
)

func (p Phase) String() string {
	switch p {
	case ResolvingIdentity:
		return "resolving_identity"
	case Creating:
		return "creating"
	case Overwriting:
		return "overwriting"
	case Modifying:
		return "modifying"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Caching:
		return "caching"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func resolvingUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: ResolvingIdentity, Step: 1, Total: 1, Message: "Resolving Spotify user..."}
}

func creatingUpdate(name string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Creating,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %s with %d tracks...", name, tracks),
	}
}

func strategyUpdate(strategy Strategy, playlistID string, tracks int) ProgressUpdate {
	phase := Overwriting
	if strategy == Modify {
		phase = Modifying
	}
	return ProgressUpdate{
		Phase:   phase,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Updating managed playlist %s (%s, %d tracks)...", playlistID, strategy, tracks),
	}
}

func chunkUpdate(phase Phase, op Operation, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s chunk applied", step, total, op),
	}
}

func doneUpdate(outcome SyncOutcome) ProgressUpdate {
	return ProgressUpdate{Phase: Done, Step: 1, Total: 1, Message: "Playlist " + outcome.PlaylistID + " is up to date", Data: outcome}
}

func failedUpdate(outcome SyncOutcome) ProgressUpdate {
	return ProgressUpdate{Phase: Failed, Step: 1, Total: 1, Message: outcome.Error, Data: outcome}
}

func cachingUpdate(step, total int, playlistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Caching,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Cached %s", step, total, playlistID),
	}
}

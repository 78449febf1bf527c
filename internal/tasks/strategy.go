package tasks

import (
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// Strategy is how an existing managed playlist is brought to its desired state.
type Strategy int

const (
	// Overwrite replaces remote membership with the desired list.
	Overwrite Strategy = iota + 1
	// Modify applies only the add/remove delta against current remote membership.
	Modify
)

func (s Strategy) String() string {
	switch s {
	case Overwrite:
		return "overwrite"
	case Modify:
		return "modify"
	default:
		return ""
	}
}

// SelectStrategy maps a definition variant to its strategy. Variants without a mapping fail with
// [shared.ErrUnmappedManagementType].
func SelectStrategy(def models.ManagementDefinition) (Strategy, error) {
	switch def.(type) {
	case models.MostPlayed:
		return Overwrite, nil
	case models.Joint:
		return Modify, nil
	case nil:
		return 0, fmt.Errorf("%w: no management definition", shared.ErrUnmappedManagementType)
	default:
		return 0, fmt.Errorf("%w: %q", shared.ErrUnmappedManagementType, def.Type())
	}
}

// Delta is the minimal change set between current and desired membership.
type Delta struct {
	ToAdd    models.TrackList
	ToRemove models.TrackList
}

// Empty reports whether the delta requires no remote calls.
func (d Delta) Empty() bool { return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 }

// ComputeDelta returns desired minus current as additions and current minus desired as removals.
func ComputeDelta(current, desired models.TrackList) Delta {
	return Delta{
		ToAdd:    desired.Difference(current),
		ToRemove: current.Difference(desired),
	}
}

package fetcher

import (
	"github.com/google/uuid"

	"github.com/helix-tools/stac-sdk-go/types"
)

// State is the overall result of a run.
type State string

const (
	StateCompleted          State = "completed"
	StateCompletedWithSkips State = "completed-with-skips"
)

// Summary aggregates the outcomes of one Walk or Search, in the order the
// units finished.
type Summary struct {
	RunID    uuid.UUID
	Outcomes []types.Outcome
}

func newSummary() *Summary {
	return &Summary{RunID: uuid.New()}
}

// State reports completed when no unit was skipped.
func (s *Summary) State() State {
	for _, o := range s.Outcomes {
		if o.IsSkipped() {
			return StateCompletedWithSkips
		}
	}

	return StateCompleted
}

// Skipped returns the skipped outcomes.
func (s *Summary) Skipped() []types.Outcome {
	var skipped []types.Outcome
	for _, o := range s.Outcomes {
		if o.IsSkipped() {
			skipped = append(skipped, o)
		}
	}

	return skipped
}

// Count returns how many units of kind ended with status.
func (s *Summary) Count(kind types.UnitKind, status types.Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Kind == kind && o.Status == status {
			n++
		}
	}

	return n
}

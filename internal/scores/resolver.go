package scores

import (
	"time"

	"github.com/openlearn/gradecore/internal/domain/keys"
)

// BlockMeta is the collected (or persisted) grading metadata for one block.
// When a persisted-blocks record exists for an already-finalized grade, its
// weight/graded/raw-possible take precedence over the live collected values
// so content edits cannot retroactively change the grade.
type BlockMeta struct {
	Weight      *float64
	Graded      bool
	MaxScore    *float64
	RawPossible *float64
}

// SubmissionValue is one entry of the submissions-store snapshot.
type SubmissionValue struct {
	WeightedEarned   float64
	WeightedPossible float64
}

// StateValue is one entry of the per-learner state snapshot.
type StateValue struct {
	RawEarned      float64
	RawPossible    *float64
	FirstAttempted *time.Time
}

// Resolve produces the ProblemScore for one block, consulting the
// submissions snapshot first, the per-learner state snapshot second, and
// falling back to an unattempted zero score against the block's max score.
// Returns nil when the block contributes no score at all.
func Resolve(
	block keys.BlockKey,
	meta BlockMeta,
	submissions map[string]SubmissionValue,
	state map[keys.BlockKey]StateValue,
) *ProblemScore {
	weight := meta.Weight
	graded := meta.Graded

	if sub, ok := submissions[block.String()]; ok {
		var firstAttempted *time.Time
		if sv, ok := state[block]; ok {
			firstAttempted = sv.FirstAttempted
		}
		return &ProblemScore{
			WeightedEarned:   sub.WeightedEarned,
			WeightedPossible: sub.WeightedPossible,
			Weight:           weight,
			Graded:           graded,
			FirstAttempted:   firstAttempted,
		}
	}

	if sv, ok := state[block]; ok && sv.RawPossible != nil {
		earned, possible := sv.RawEarned, *sv.RawPossible
		weightedEarned, weightedPossible := Weighted(earned, possible, weight)
		return &ProblemScore{
			RawEarned:        &earned,
			RawPossible:      sv.RawPossible,
			WeightedEarned:   weightedEarned,
			WeightedPossible: weightedPossible,
			Weight:           weight,
			Graded:           graded,
			FirstAttempted:   sv.FirstAttempted,
		}
	}

	rawPossible := meta.RawPossible
	if rawPossible == nil {
		rawPossible = meta.MaxScore
	}
	if rawPossible == nil {
		return nil
	}
	zero := 0.0
	weightedEarned, weightedPossible := Weighted(zero, *rawPossible, weight)
	return &ProblemScore{
		RawEarned:        &zero,
		RawPossible:      rawPossible,
		WeightedEarned:   weightedEarned,
		WeightedPossible: weightedPossible,
		Weight:           weight,
		Graded:           graded,
		FirstAttempted:   nil,
	}
}

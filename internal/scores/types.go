// Package scores turns raw submission and state data into weighted problem
// scores, and defines the aggregate score values the graders sum over.
// Everything here is pure; stores are consulted by callers and passed in.
package scores

import (
	"time"
)

// ProblemScore is the weighted earned/possible for a single scorable block.
// Raw values are nil when the authoritative source (the submissions store)
// only reports weighted values. FirstAttempted is nil iff the learner has
// never submitted against the block.
type ProblemScore struct {
	RawEarned        *float64
	RawPossible      *float64
	WeightedEarned   float64
	WeightedPossible float64
	Weight           *float64
	Graded           bool
	FirstAttempted   *time.Time
}

// Attempted reports whether the learner ever submitted.
func (p *ProblemScore) Attempted() bool { return p.FirstAttempted != nil }

// AggregatedScore sums problem scores over a subsection (or any block set).
type AggregatedScore struct {
	WeightedEarned   float64
	WeightedPossible float64
	Graded           bool
	FirstAttempted   *time.Time
}

// Attempted reports whether any contributor was attempted.
func (a *AggregatedScore) Attempted() bool { return a.FirstAttempted != nil }

// Percent is earned/possible, 0 when nothing is possible.
func (a *AggregatedScore) Percent() float64 {
	if a.WeightedPossible <= 0 {
		return 0
	}
	return a.WeightedEarned / a.WeightedPossible
}

// Weighted applies the problem weighting rule: a nil weight or a zero raw
// possible leaves the raw values untouched; otherwise earned is rescaled
// onto the weight. Idempotent for already-weighted inputs rescaled again
// with the same weight.
func Weighted(rawEarned, rawPossible float64, weight *float64) (weightedEarned, weightedPossible float64) {
	if weight == nil || rawPossible == 0 {
		return rawEarned, rawPossible
	}
	return rawEarned * *weight / rawPossible, *weight
}

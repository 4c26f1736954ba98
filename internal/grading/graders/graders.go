// Package graders implements the pure aggregation math: subsection totals
// from problem scores, and course totals from subsection totals under a
// grading policy with weighted buckets and drop-lowest. Nothing here
// touches a store.
package graders

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/openlearn/gradecore/internal/grading/policy"
	"github.com/openlearn/gradecore/internal/scores"
)

// AggregateScores sums problem scores into the subsection's two totals:
// all_total over every contributor, graded_total over graded contributors
// only. first_attempted is the earliest contributor attempt, nil when
// nothing was attempted.
func AggregateScores(problemScores []*scores.ProblemScore) (allTotal, gradedTotal scores.AggregatedScore) {
	var firstAttemptedAll, firstAttemptedGraded *time.Time
	for _, ps := range problemScores {
		if ps == nil {
			continue
		}
		allTotal.WeightedEarned += ps.WeightedEarned
		allTotal.WeightedPossible += ps.WeightedPossible
		firstAttemptedAll = minTime(firstAttemptedAll, ps.FirstAttempted)
		if ps.Graded {
			gradedTotal.WeightedEarned += ps.WeightedEarned
			gradedTotal.WeightedPossible += ps.WeightedPossible
			firstAttemptedGraded = minTime(firstAttemptedGraded, ps.FirstAttempted)
		}
	}
	allTotal.Graded = false
	allTotal.FirstAttempted = firstAttemptedAll
	gradedTotal.Graded = true
	gradedTotal.FirstAttempted = firstAttemptedGraded
	return allTotal, gradedTotal
}

// SubsectionEntry is one graded subsection's contribution to the course
// grade, in course order.
type SubsectionEntry struct {
	Format      string
	DisplayName string
	Total       scores.AggregatedScore
}

// BreakdownRow is one row of the per-assignment section breakdown.
type BreakdownRow struct {
	Category   string
	ShortLabel string
	Detail     string
	Percent    float64
	IsAverage  bool
	Dropped    bool
}

// BucketResult is one bucket's aggregate under the policy.
type BucketResult struct {
	Category     string
	Percent      float64
	Weight       float64
	Contribution float64
}

// GradeSummary is the full course aggregation result.
type GradeSummary struct {
	Percent          float64
	LetterGrade      string
	Passed           bool
	SectionBreakdown []BreakdownRow
	GradeBreakdown   []BucketResult
}

// GradeCourse aggregates subsection totals into the course grade under the
// policy. Weights need not sum to 1; extra credit may push the percent
// above 1. A bucket left empty after drops contributes zero.
func GradeCourse(p *policy.GradingPolicy, subsections []SubsectionEntry) *GradeSummary {
	summary := &GradeSummary{}
	var percent float64
	for _, spec := range p.Graders {
		result, rows := gradeBucket(spec, subsections)
		percent += result.Contribution
		summary.GradeBreakdown = append(summary.GradeBreakdown, result)
		summary.SectionBreakdown = append(summary.SectionBreakdown, rows...)
	}
	summary.Percent = RoundPercent(percent)
	summary.LetterGrade = p.LetterGrade(summary.Percent)
	summary.Passed = summary.LetterGrade != ""
	return summary
}

// RoundPercent applies the historical rounding rule round(percent*100 +
// 0.05) / 100, biased upward at exact halves. Preserved literally:
// downstream consumers assume this exact behavior.
func RoundPercent(percent float64) float64 {
	return math.Round(percent*100+0.05) / 100
}

type bucketEntry struct {
	displayName string
	percent     float64
	unreleased  bool
	dropped     bool
}

func gradeBucket(spec policy.BucketSpec, subsections []SubsectionEntry) (BucketResult, []BreakdownRow) {
	var entries []bucketEntry
	for _, sub := range subsections {
		if sub.Format != spec.Type {
			continue
		}
		entries = append(entries, bucketEntry{
			displayName: sub.DisplayName,
			percent:     sub.Total.Percent(),
		})
	}
	for len(entries) < spec.MinCount {
		entries = append(entries, bucketEntry{displayName: "Unreleased", percent: 0, unreleased: true})
	}

	// Drop the drop_count lowest percents. Sorting descending stably and
	// dropping the tail keeps the earlier of two tied entries.
	if spec.DropCount > 0 && len(entries) > 0 {
		order := make([]int, len(entries))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return entries[order[a]].percent > entries[order[b]].percent
		})
		dropped := spec.DropCount
		if dropped > len(entries) {
			dropped = len(entries)
		}
		for _, idx := range order[len(order)-dropped:] {
			entries[idx].dropped = true
		}
	}

	var sum float64
	remaining := 0
	for _, e := range entries {
		if e.dropped {
			continue
		}
		sum += e.percent
		remaining++
	}
	bucketPercent := 0.0
	if remaining > 0 {
		bucketPercent = sum / float64(remaining)
	}

	result := BucketResult{
		Category:     spec.Type,
		Percent:      bucketPercent,
		Weight:       spec.Weight,
		Contribution: bucketPercent * spec.Weight,
	}
	return result, breakdownRows(spec, entries, bucketPercent)
}

func breakdownRows(spec policy.BucketSpec, entries []bucketEntry, bucketPercent float64) []BreakdownRow {
	short := spec.ShortLabel
	if short == "" {
		short = spec.Type
	}
	startingIndex := spec.StartingIndex
	if startingIndex == 0 {
		startingIndex = 1
	}

	// A single-entry bucket with nothing to drop reads as one plain row,
	// without an average.
	if len(entries) == 1 && spec.DropCount == 0 && !spec.ShowOnlyAverage {
		e := entries[0]
		return []BreakdownRow{{
			Category:   spec.Type,
			ShortLabel: short,
			Detail:     fmt.Sprintf("%s = %.0f%%", spec.Type, e.percent*100),
			Percent:    e.percent,
		}}
	}

	var rows []BreakdownRow
	if !spec.ShowOnlyAverage {
		for i, e := range entries {
			label := fmt.Sprintf("%s %02d", short, startingIndex+i)
			detail := fmt.Sprintf("%s %d - %s - %.0f%%", spec.Type, startingIndex+i, e.displayName, e.percent*100)
			if e.unreleased {
				detail = fmt.Sprintf("%s %d Unreleased - 0%%", spec.Type, startingIndex+i)
			}
			rows = append(rows, BreakdownRow{
				Category:   spec.Type,
				ShortLabel: label,
				Detail:     detail,
				Percent:    e.percent,
				Dropped:    e.dropped,
			})
		}
	}
	if !spec.HideAverage {
		rows = append(rows, BreakdownRow{
			Category:   spec.Type,
			ShortLabel: short + " Avg",
			Detail:     fmt.Sprintf("%s Average = %.0f%%", spec.Type, bucketPercent*100),
			Percent:    bucketPercent,
			IsAverage:  true,
		})
	}
	return rows
}

func minTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Before(*a) {
		return b
	}
	return a
}

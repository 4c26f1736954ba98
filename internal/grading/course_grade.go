package grading

import (
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/grading/graders"
	"github.com/openlearn/gradecore/internal/grading/policy"
	"github.com/openlearn/gradecore/internal/transformers"
)

// CourseGrade is one learner's aggregate grade over a course.
type CourseGrade struct {
	LearnerID uuid.UUID
	CourseKey keys.CourseKey

	Percent     float64
	LetterGrade string
	Passed      bool
	// PassedTimestamp is carried from the persisted row; set the first
	// time the learner passes and never cleared.
	PassedTimestamp *time.Time

	PolicyHash     string
	CourseVersion  string
	CourseEditedOn time.Time

	// SubsectionGrades in course (structure) order.
	SubsectionGrades []*SubsectionGrade
	Summary          *graders.GradeSummary

	// Synthetic marks a zero grade fabricated for an absent row under the
	// assume-zero read mode; it is never persisted.
	Synthetic bool
}

// Attempted reports whether the learner attempted any problem at all.
func (g *CourseGrade) Attempted() bool {
	for _, sub := range g.SubsectionGrades {
		if sub.Attempted() {
			return true
		}
	}
	return false
}

// GradedSubsectionEntries projects the graded subsections into aggregator
// input, preserving course order.
func (g *CourseGrade) GradedSubsectionEntries() []graders.SubsectionEntry {
	var entries []graders.SubsectionEntry
	for _, sub := range g.SubsectionGrades {
		if !sub.Graded {
			continue
		}
		entries = append(entries, graders.SubsectionEntry{
			Format:      sub.Format,
			DisplayName: sub.DisplayName,
			Total:       sub.GradedTotal,
		})
	}
	return entries
}

// Aggregate computes the course summary fields from the subsection grades
// under the policy.
func (g *CourseGrade) Aggregate(p *policy.GradingPolicy) {
	summary := graders.GradeCourse(p, g.GradedSubsectionEntries())
	g.Summary = summary
	g.Percent = summary.Percent
	g.LetterGrade = summary.LetterGrade
	g.Passed = summary.Passed
	g.PolicyHash = p.Hash()
}

// ZeroCourseGrade is the synthetic grade returned for absent rows under
// the assume-zero mode.
func ZeroCourseGrade(learnerID uuid.UUID, courseKey keys.CourseKey, p *policy.GradingPolicy, courseVersion string, editedOn time.Time) *CourseGrade {
	g := &CourseGrade{
		LearnerID:      learnerID,
		CourseKey:      courseKey,
		Percent:        0,
		LetterGrade:    "",
		Passed:         false,
		PolicyHash:     p.Hash(),
		CourseVersion:  courseVersion,
		CourseEditedOn: editedOn,
		Synthetic:      true,
	}
	return g
}

// SubsectionKeysInOrder returns every subsection block in the transformed
// structure, parents-first course order.
func SubsectionKeysInOrder(s *blockstructure.BlockStructure) []keys.BlockKey {
	var out []keys.BlockKey
	for _, key := range s.Topological(blockstructure.TraversalOptions{}) {
		if key.Type == transformers.SubsectionBlockType {
			out = append(out, key)
		}
	}
	return out
}

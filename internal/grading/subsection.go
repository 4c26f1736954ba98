package grading

import (
	"sort"
	"time"

	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/coursegraph"
	"github.com/openlearn/gradecore/internal/domain/grades"
	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/grading/graders"
	"github.com/openlearn/gradecore/internal/scores"
	"github.com/openlearn/gradecore/internal/transformers"
)

// SubsectionGrade is one learner's grade over one subsection's scorable
// descendants.
type SubsectionGrade struct {
	SubsectionKey keys.BlockKey
	DisplayName   string
	Format        string
	Due           *time.Time
	Graded        bool

	ProblemScores map[keys.BlockKey]*scores.ProblemScore
	problemOrder  []keys.BlockKey

	// AllTotal sums every scorable descendant; GradedTotal only the
	// graded ones. Overrides, when present, already applied.
	AllTotal    scores.AggregatedScore
	GradedTotal scores.AggregatedScore

	Override *grades.PersistentSubsectionGradeOverride

	CourseVersion   string
	SubtreeEditedOn *time.Time
}

// Attempted reports whether the learner attempted anything under the
// subsection.
func (g *SubsectionGrade) Attempted() bool {
	return g.AllTotal.FirstAttempted != nil
}

// OrderedProblemKeys returns the contributing blocks in structure order.
func (g *SubsectionGrade) OrderedProblemKeys() []keys.BlockKey {
	return append([]keys.BlockKey(nil), g.problemOrder...)
}

// BlockRecords captures the contributing problems for the persisted-blocks
// record, canonically ordered by locator string.
func (g *SubsectionGrade) BlockRecords() []grades.BlockRecord {
	records := make([]grades.BlockRecord, 0, len(g.problemOrder))
	for _, key := range g.problemOrder {
		ps := g.ProblemScores[key]
		records = append(records, grades.BlockRecord{
			Graded:      ps.Graded,
			Locator:     key,
			RawPossible: ps.RawPossible,
			Weight:      ps.Weight,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Locator.String() < records[j].Locator.String()
	})
	return records
}

// CreateSubsectionGrade computes a fresh grade for one subsection of the
// learner's transformed structure.
func CreateSubsectionGrade(
	s *blockstructure.BlockStructure,
	subsectionKey keys.BlockKey,
	submissions map[string]scores.SubmissionValue,
	state map[keys.BlockKey]scores.StateValue,
	courseVersion string,
	subtreeEditedOn *time.Time,
) *SubsectionGrade {
	g := newSubsectionGrade(s, subsectionKey, courseVersion, subtreeEditedOn)

	for _, key := range descendantsOf(s, subsectionKey) {
		if !transformers.BlockScorable(s, key) {
			continue
		}
		meta := scores.BlockMeta{
			Weight:   transformers.BlockWeight(s, key),
			Graded:   transformers.BlockGraded(s, key),
			MaxScore: transformers.BlockMaxScore(s, key),
		}
		ps := scores.Resolve(key, meta, submissions, state)
		if ps == nil {
			continue
		}
		g.ProblemScores[key] = ps
		g.problemOrder = append(g.problemOrder, key)
	}

	g.AllTotal, g.GradedTotal = graders.AggregateScores(orderedScores(g))
	return g
}

// ReadSubsectionGrade rebuilds a grade from a persisted row. The persisted
// blocks record is the source of truth for which problems contribute and
// for their weight/graded/raw-possible, so content edits after persistence
// do not alter the grade's shape.
func ReadSubsectionGrade(
	s *blockstructure.BlockStructure,
	model *grades.PersistentSubsectionGrade,
	submissions map[string]scores.SubmissionValue,
	state map[keys.BlockKey]scores.StateValue,
) (*SubsectionGrade, error) {
	subsectionKey, err := keys.ParseBlockKey(model.UsageKey)
	if err != nil {
		return nil, err
	}
	g := newSubsectionGrade(s, subsectionKey, model.CourseVersion, model.SubtreeEditedOn)
	g.Override = model.Override

	if model.VisibleBlocks != nil {
		recordList, err := model.VisibleBlocks.BlockRecordList()
		if err != nil {
			return nil, err
		}
		for _, record := range recordList.Blocks {
			meta := scores.BlockMeta{
				Weight:      record.Weight,
				Graded:      record.Graded,
				RawPossible: record.RawPossible,
			}
			ps := scores.Resolve(record.Locator, meta, submissions, state)
			if ps == nil {
				continue
			}
			g.ProblemScores[record.Locator] = ps
			g.problemOrder = append(g.problemOrder, record.Locator)
		}
	}

	g.AllTotal, g.GradedTotal = graders.AggregateScores(orderedScores(g))
	applyOverride(g)
	return g, nil
}

// ZeroSubsectionGrade is the explicit zero written after a score deletion.
func ZeroSubsectionGrade(
	s *blockstructure.BlockStructure,
	subsectionKey keys.BlockKey,
	courseVersion string,
	subtreeEditedOn *time.Time,
) *SubsectionGrade {
	g := CreateSubsectionGrade(s, subsectionKey, nil, nil, courseVersion, subtreeEditedOn)
	g.AllTotal.WeightedEarned = 0
	g.GradedTotal.WeightedEarned = 0
	g.AllTotal.FirstAttempted = nil
	g.GradedTotal.FirstAttempted = nil
	return g
}

func newSubsectionGrade(s *blockstructure.BlockStructure, subsectionKey keys.BlockKey, courseVersion string, subtreeEditedOn *time.Time) *SubsectionGrade {
	g := &SubsectionGrade{
		SubsectionKey:   subsectionKey,
		Graded:          transformers.BlockGraded(s, subsectionKey),
		ProblemScores:   map[keys.BlockKey]*scores.ProblemScore{},
		CourseVersion:   courseVersion,
		SubtreeEditedOn: subtreeEditedOn,
	}
	if v, ok := s.GetBlockField(subsectionKey, coursegraph.FieldDisplayName); ok {
		g.DisplayName, _ = v.(string)
	}
	if v, ok := s.GetBlockField(subsectionKey, coursegraph.FieldFormat); ok {
		g.Format, _ = v.(string)
	}
	if v, ok := s.GetBlockField(subsectionKey, coursegraph.FieldDue); ok {
		if due, ok := v.(time.Time); ok {
			g.Due = &due
		}
	}
	return g
}

// applyOverride replaces computed totals with any non-nil override fields.
func applyOverride(g *SubsectionGrade) {
	o := g.Override
	if o == nil {
		return
	}
	if o.EarnedAllOverride != nil {
		g.AllTotal.WeightedEarned = *o.EarnedAllOverride
	}
	if o.PossibleAllOverride != nil {
		g.AllTotal.WeightedPossible = *o.PossibleAllOverride
	}
	if o.EarnedGradedOverride != nil {
		g.GradedTotal.WeightedEarned = *o.EarnedGradedOverride
	}
	if o.PossibleGradedOverride != nil {
		g.GradedTotal.WeightedPossible = *o.PossibleGradedOverride
	}
}

func orderedScores(g *SubsectionGrade) []*scores.ProblemScore {
	out := make([]*scores.ProblemScore, 0, len(g.problemOrder))
	for _, key := range g.problemOrder {
		out = append(out, g.ProblemScores[key])
	}
	return out
}

// descendantsOf walks the subtree under root within the structure,
// emitting each descendant once in pre-order.
func descendantsOf(s *blockstructure.BlockStructure, root keys.BlockKey) []keys.BlockKey {
	if !s.HasBlock(root) {
		return nil
	}
	var out []keys.BlockKey
	visited := map[keys.BlockKey]bool{root: true}
	rootChildren := s.GetChildren(root)
	stack := make([]keys.BlockKey, 0, len(rootChildren))
	for i := len(rootChildren) - 1; i >= 0; i-- {
		stack = append(stack, rootChildren[i])
	}
	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[key] {
			continue
		}
		visited[key] = true
		out = append(out, key)
		children := s.GetChildren(key)
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i]] {
				stack = append(stack, children[i])
			}
		}
	}
	return out
}

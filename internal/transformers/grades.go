package transformers

import (
	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/coursegraph"
	"github.com/openlearn/gradecore/internal/domain/keys"
)

// SubsectionBlockType is the block type that acts as the unit of grade
// aggregation.
const SubsectionBlockType = "sequential"

// Data keys written by the grades transformer.
const (
	GradesTransformerName = "grades"

	// DataMaxScore is the block's maximum raw score, when it has one.
	DataMaxScore = "max_score"
	// DataHasScore marks scorable blocks.
	DataHasScore = "has_score"
	// DataExplicitGraded is present only for blocks that set graded
	// explicitly; absence means "inherit".
	DataExplicitGraded = "explicit_graded"
	// DataGraded is the effective graded flag after inheritance.
	DataGraded = "graded"
	// DataWeight is the block's problem weight, when it declares one.
	DataWeight = "weight"
	// DataContainingSubsections lists the ancestor subsections of a
	// scorable block, enabling O(1) affected-subsection lookup on score
	// change.
	DataContainingSubsections = "containing_subsections"
)

// GradesTransformer is collect-only: it materializes everything grading
// needs from the content graph so the hot path never touches the store.
type GradesTransformer struct{}

func NewGradesTransformer() *GradesTransformer { return &GradesTransformer{} }

func (t *GradesTransformer) Name() string { return GradesTransformerName }

func (t *GradesTransformer) Version() int { return 4 }

func (t *GradesTransformer) RequiredFields() []string {
	return []string{
		coursegraph.FieldGraded,
		coursegraph.FieldHasScore,
		coursegraph.FieldMaxScore,
		coursegraph.FieldWeight,
		coursegraph.FieldDue,
		coursegraph.FieldFormat,
		coursegraph.FieldDisplayName,
	}
}

func (t *GradesTransformer) Collect(s *blockstructure.BlockStructure) error {
	order := s.Topological(blockstructure.TraversalOptions{})

	// Effective graded: a block's own explicit value if set, else the
	// nearest ancestor's non-null value, else false.
	effective := make(map[keys.BlockKey]*bool, len(order))
	for _, key := range order {
		var eff *bool
		if v, ok := s.GetBlockField(key, coursegraph.FieldGraded); ok {
			if b, ok := v.(bool); ok {
				val := b
				eff = &val
				s.SetTransformerBlockData(key, t.Name(), DataExplicitGraded, b)
			}
		}
		if eff == nil {
			for _, p := range s.GetParents(key) {
				if effective[p] != nil {
					eff = effective[p]
					break
				}
			}
		}
		effective[key] = eff
		graded := eff != nil && *eff
		s.SetTransformerBlockData(key, t.Name(), DataGraded, graded)
	}

	// Containing subsections, percolated down the DAG.
	containing := make(map[keys.BlockKey]map[keys.BlockKey]bool, len(order))
	for _, key := range order {
		subs := map[keys.BlockKey]bool{}
		for _, p := range s.GetParents(key) {
			for sk := range containing[p] {
				subs[sk] = true
			}
			if p.Type == SubsectionBlockType {
				subs[p] = true
			}
		}
		containing[key] = subs
	}

	for _, key := range order {
		hasScore, _ := s.GetBlockField(key, coursegraph.FieldHasScore)
		scorable, _ := hasScore.(bool)
		if !scorable {
			continue
		}
		s.SetTransformerBlockData(key, t.Name(), DataHasScore, true)
		if v, ok := s.GetBlockField(key, coursegraph.FieldMaxScore); ok {
			if f, ok := asFloat(v); ok {
				s.SetTransformerBlockData(key, t.Name(), DataMaxScore, f)
			}
		}
		if v, ok := s.GetBlockField(key, coursegraph.FieldWeight); ok {
			if f, ok := asFloat(v); ok {
				s.SetTransformerBlockData(key, t.Name(), DataWeight, f)
			}
		}
		subs := make([]keys.BlockKey, 0, len(containing[key]))
		for sk := range containing[key] {
			subs = append(subs, sk)
		}
		s.SetTransformerBlockData(key, t.Name(), DataContainingSubsections, subs)
	}
	return nil
}

// Transform is a no-op: grading data is consumed by the score resolver and
// aggregator, not applied as a structure mutation.
func (t *GradesTransformer) Transform(_ *UsageInfo, _ *blockstructure.BlockStructure) error {
	return nil
}

// BlockGraded reads the effective graded flag collected for the block.
func BlockGraded(s *blockstructure.BlockStructure, key keys.BlockKey) bool {
	v, _ := s.GetTransformerBlockData(key, GradesTransformerName, DataGraded)
	b, _ := v.(bool)
	return b
}

// BlockMaxScore reads the collected max score; nil when the block has none.
func BlockMaxScore(s *blockstructure.BlockStructure, key keys.BlockKey) *float64 {
	v, ok := s.GetTransformerBlockData(key, GradesTransformerName, DataMaxScore)
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// BlockWeight reads the collected problem weight; nil when undeclared.
func BlockWeight(s *blockstructure.BlockStructure, key keys.BlockKey) *float64 {
	v, ok := s.GetTransformerBlockData(key, GradesTransformerName, DataWeight)
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// BlockScorable reports whether the block was collected as scorable.
func BlockScorable(s *blockstructure.BlockStructure, key keys.BlockKey) bool {
	v, _ := s.GetTransformerBlockData(key, GradesTransformerName, DataHasScore)
	b, _ := v.(bool)
	return b
}

// ContainingSubsections reads the ancestor subsection keys collected for a
// scorable block.
func ContainingSubsections(s *blockstructure.BlockStructure, key keys.BlockKey) []keys.BlockKey {
	v, ok := s.GetTransformerBlockData(key, GradesTransformerName, DataContainingSubsections)
	if !ok {
		return nil
	}
	subs, _ := v.([]keys.BlockKey)
	return subs
}

func asFloat(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case int:
		return float64(f), true
	default:
		return 0, false
	}
}

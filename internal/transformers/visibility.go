package transformers

import (
	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/coursegraph"
	"github.com/openlearn/gradecore/internal/domain/keys"
)

const (
	VisibilityTransformerName = "visibility"

	// DataMergedStaffOnly is true when every path from the root to the
	// block passes through a staff-only ancestor (or the block itself is
	// staff-only).
	DataMergedStaffOnly = "merged_visible_to_staff_only"
)

// VisibilityTransformer hides staff-only content from learners.
type VisibilityTransformer struct{}

func NewVisibilityTransformer() *VisibilityTransformer { return &VisibilityTransformer{} }

func (t *VisibilityTransformer) Name() string { return VisibilityTransformerName }

func (t *VisibilityTransformer) Version() int { return 2 }

func (t *VisibilityTransformer) RequiredFields() []string {
	return []string{coursegraph.FieldVisibleToStaff}
}

func (t *VisibilityTransformer) Collect(s *blockstructure.BlockStructure) error {
	merged := map[keys.BlockKey]bool{}
	for _, key := range s.Topological(blockstructure.TraversalOptions{}) {
		own := false
		if v, ok := s.GetBlockField(key, coursegraph.FieldVisibleToStaff); ok {
			own, _ = v.(bool)
		}
		// All-parents-required merge: a block is hidden only when every
		// incoming path is already hidden (or it hides itself).
		val := own
		if !val {
			parents := s.GetParents(key)
			if len(parents) > 0 {
				val = true
				for _, p := range parents {
					if !merged[p] {
						val = false
						break
					}
				}
			}
		}
		merged[key] = val
		s.SetTransformerBlockData(key, t.Name(), DataMergedStaffOnly, val)
	}
	return nil
}

func (t *VisibilityTransformer) Transform(usage *UsageInfo, s *blockstructure.BlockStructure) error {
	if usage.HasStaffAccess {
		return nil
	}
	s.RemoveBlockIf(func(key keys.BlockKey) bool {
		v, _ := s.GetTransformerBlockData(key, t.Name(), DataMergedStaffOnly)
		hidden, _ := v.(bool)
		return hidden
	}, false)
	return nil
}

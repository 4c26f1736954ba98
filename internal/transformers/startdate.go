package transformers

import (
	"time"

	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/coursegraph"
	"github.com/openlearn/gradecore/internal/domain/keys"
)

const (
	StartDateTransformerName = "start_date"

	// DataMergedStart is the block's effective release date after
	// inheritance; absent means released immediately.
	DataMergedStart = "merged_start_date"
)

// StartDateTransformer removes blocks whose release date is in the
// learner's future.
type StartDateTransformer struct{}

func NewStartDateTransformer() *StartDateTransformer { return &StartDateTransformer{} }

func (t *StartDateTransformer) Name() string { return StartDateTransformerName }

func (t *StartDateTransformer) Version() int { return 1 }

func (t *StartDateTransformer) RequiredFields() []string {
	return []string{coursegraph.FieldStart}
}

func (t *StartDateTransformer) Collect(s *blockstructure.BlockStructure) error {
	merged := map[keys.BlockKey]*time.Time{}
	for _, key := range s.Topological(blockstructure.TraversalOptions{}) {
		var eff *time.Time
		if v, ok := s.GetBlockField(key, coursegraph.FieldStart); ok {
			if ts, ok := v.(time.Time); ok {
				eff = &ts
			}
		}
		if eff == nil {
			// Inherit the earliest parent release so a block never opens
			// before some path to it does.
			for _, p := range s.GetParents(key) {
				pv := merged[p]
				if pv == nil {
					continue
				}
				if eff == nil || pv.Before(*eff) {
					eff = pv
				}
			}
		}
		merged[key] = eff
		if eff != nil {
			s.SetTransformerBlockData(key, t.Name(), DataMergedStart, *eff)
		}
	}
	return nil
}

func (t *StartDateTransformer) Transform(usage *UsageInfo, s *blockstructure.BlockStructure) error {
	if usage.HasStaffAccess {
		return nil
	}
	now := usage.now()
	s.RemoveBlockIf(func(key keys.BlockKey) bool {
		v, ok := s.GetTransformerBlockData(key, t.Name(), DataMergedStart)
		if !ok {
			return false
		}
		start, ok := v.(time.Time)
		return ok && start.After(now)
	}, false)
	return nil
}

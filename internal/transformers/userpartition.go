package transformers

import (
	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/coursegraph"
	"github.com/openlearn/gradecore/internal/domain/keys"
)

const (
	UserPartitionTransformerName = "user_partitions"

	// DataGroupAccess is the merged partition→allowed-groups restriction.
	DataGroupAccess = "merged_group_access"
)

// UserPartitionTransformer removes blocks restricted to partition groups
// the learner is not in (content groups, cohorts, enrollment tracks).
type UserPartitionTransformer struct{}

func NewUserPartitionTransformer() *UserPartitionTransformer { return &UserPartitionTransformer{} }

func (t *UserPartitionTransformer) Name() string { return UserPartitionTransformerName }

func (t *UserPartitionTransformer) Version() int { return 1 }

func (t *UserPartitionTransformer) RequiredFields() []string {
	return []string{coursegraph.FieldUserPartitions}
}

func (t *UserPartitionTransformer) Collect(s *blockstructure.BlockStructure) error {
	merged := map[keys.BlockKey]map[string][]int{}
	for _, key := range s.Topological(blockstructure.TraversalOptions{}) {
		// Start from the intersection-by-partition of all parents, then
		// overlay the block's own restrictions (own narrows inherited).
		acc := map[string][]int{}
		for _, p := range s.GetParents(key) {
			for partition, groups := range merged[p] {
				if existing, ok := acc[partition]; ok {
					acc[partition] = intersect(existing, groups)
				} else {
					acc[partition] = groups
				}
			}
		}
		if v, ok := s.GetBlockField(key, coursegraph.FieldUserPartitions); ok {
			if own, ok := v.(map[string][]int); ok {
				for partition, groups := range own {
					if existing, ok := acc[partition]; ok {
						acc[partition] = intersect(existing, groups)
					} else {
						acc[partition] = groups
					}
				}
			}
		}
		merged[key] = acc
		if len(acc) > 0 {
			s.SetTransformerBlockData(key, t.Name(), DataGroupAccess, acc)
		}
	}
	return nil
}

func (t *UserPartitionTransformer) Transform(usage *UsageInfo, s *blockstructure.BlockStructure) error {
	if usage.HasStaffAccess {
		return nil
	}
	s.RemoveBlockIf(func(key keys.BlockKey) bool {
		v, ok := s.GetTransformerBlockData(key, t.Name(), DataGroupAccess)
		if !ok {
			return false
		}
		access, ok := v.(map[string][]int)
		if !ok {
			return false
		}
		for partition, allowed := range access {
			if len(allowed) == 0 {
				return true
			}
			group, inPartition := usage.Groups[partition]
			if !inPartition {
				return true
			}
			found := false
			for _, g := range allowed {
				if g == group {
					found = true
					break
				}
			}
			if !found {
				return true
			}
		}
		return false
	}, false)
	return nil
}

func intersect(a, b []int) []int {
	set := make(map[int]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	out := make([]int, 0, len(b))
	for _, v := range b {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

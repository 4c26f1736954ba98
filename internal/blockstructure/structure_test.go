package blockstructure

import (
	"testing"

	"github.com/openlearn/gradecore/internal/domain/keys"
)

const testCourse = keys.CourseKey("course-v1:OpenLearn+CS101+2026")

func bk(blockType, id string) keys.BlockKey {
	return keys.NewBlockKey(testCourse, blockType, id)
}

// diamond builds:
//
//	course
//	├── chapter1
//	│   ├── seq1 ── unit1 ── p1
//	│   └── seq2 ── unit1 (shared)
//	└── chapter2 ── seq3
func diamond() (*BlockStructure, map[string]keys.BlockKey) {
	blocks := map[string]keys.BlockKey{
		"course":   bk("course", "course"),
		"chapter1": bk("chapter", "ch1"),
		"chapter2": bk("chapter", "ch2"),
		"seq1":     bk("sequential", "seq1"),
		"seq2":     bk("sequential", "seq2"),
		"seq3":     bk("sequential", "seq3"),
		"unit1":    bk("vertical", "unit1"),
		"p1":       bk("problem", "p1"),
	}
	s := New(blocks["course"])
	s.AddRelation(blocks["course"], blocks["chapter1"])
	s.AddRelation(blocks["course"], blocks["chapter2"])
	s.AddRelation(blocks["chapter1"], blocks["seq1"])
	s.AddRelation(blocks["chapter1"], blocks["seq2"])
	s.AddRelation(blocks["chapter2"], blocks["seq3"])
	s.AddRelation(blocks["seq1"], blocks["unit1"])
	s.AddRelation(blocks["seq2"], blocks["unit1"])
	s.AddRelation(blocks["unit1"], blocks["p1"])
	return s, blocks
}

func TestAddRelationIgnoresSelfLoopsAndDuplicates(t *testing.T) {
	root := bk("course", "course")
	child := bk("chapter", "ch1")
	s := New(root)

	s.AddRelation(root, root)
	if len(s.GetChildren(root)) != 0 {
		t.Fatalf("self-loop created an edge")
	}

	s.AddRelation(root, child)
	s.AddRelation(root, child)
	if got := len(s.GetChildren(root)); got != 1 {
		t.Fatalf("duplicate edge: %d children, want 1", got)
	}
	if got := len(s.GetParents(child)); got != 1 {
		t.Fatalf("duplicate edge: %d parents, want 1", got)
	}
}

func TestRemoveBlockSplicesDescendants(t *testing.T) {
	s, blocks := diamond()

	s.RemoveBlock(blocks["unit1"], true)

	if s.HasBlock(blocks["unit1"]) {
		t.Fatalf("unit1 still present")
	}
	// p1 must now hang off both former grandparents.
	parents := s.GetParents(blocks["p1"])
	if len(parents) != 2 {
		t.Fatalf("p1 has %d parents after splice, want 2 (%v)", len(parents), parents)
	}
	for _, p := range parents {
		if p != blocks["seq1"] && p != blocks["seq2"] {
			t.Fatalf("unexpected parent %v", p)
		}
	}
}

func TestRemoveBlockDropSubtree(t *testing.T) {
	s, blocks := diamond()

	s.RemoveBlock(blocks["seq1"], false)
	s.PruneUnreachable()

	// unit1 survives through seq2; p1 with it.
	if !s.HasBlock(blocks["unit1"]) || !s.HasBlock(blocks["p1"]) {
		t.Fatalf("shared descendants dropped with only one parent removed")
	}

	s.RemoveBlock(blocks["seq2"], false)
	s.PruneUnreachable()
	if s.HasBlock(blocks["unit1"]) || s.HasBlock(blocks["p1"]) {
		t.Fatalf("unreachable subtree survived prune")
	}
}

func TestPruneUnreachableKeepsReachable(t *testing.T) {
	s, blocks := diamond()
	before := s.Len()

	s.PruneUnreachable()
	if s.Len() != before {
		t.Fatalf("prune removed reachable blocks: %d -> %d", before, s.Len())
	}
	for name, key := range blocks {
		if !s.HasBlock(key) {
			t.Fatalf("%s pruned while reachable", name)
		}
	}
}

func TestBlockFieldsAndTransformerData(t *testing.T) {
	s, blocks := diamond()
	p1 := blocks["p1"]

	s.SetBlockField(p1, "weight", 2.5)
	if v, ok := s.GetBlockField(p1, "weight"); !ok || v.(float64) != 2.5 {
		t.Fatalf("block field: got %v (%v)", v, ok)
	}

	s.SetTransformerBlockData(p1, "grades", "max_score", 20.0)
	if v, ok := s.GetTransformerBlockData(p1, "grades", "max_score"); !ok || v.(float64) != 20.0 {
		t.Fatalf("transformer block data: got %v (%v)", v, ok)
	}
	if _, ok := s.GetTransformerBlockData(p1, "grades", "absent"); ok {
		t.Fatalf("absent data key reported present")
	}

	s.SetTransformerData("grades", "subsections", 3)
	if v, ok := s.GetTransformerData("grades", "subsections"); !ok || v.(int) != 3 {
		t.Fatalf("structure-wide data: got %v (%v)", v, ok)
	}

	// Writes against unknown blocks are dropped, not panics.
	ghost := bk("problem", "ghost")
	s.SetBlockField(ghost, "weight", 1.0)
	s.SetTransformerBlockData(ghost, "grades", "max_score", 1.0)
	if s.HasBlock(ghost) {
		t.Fatalf("write to unknown block materialized it")
	}
}

func TestRemoveBlockIf(t *testing.T) {
	s, blocks := diamond()

	s.RemoveBlockIf(func(key keys.BlockKey) bool {
		return key.Type == "sequential"
	}, true)

	for _, name := range []string{"seq1", "seq2", "seq3"} {
		if s.HasBlock(blocks[name]) {
			t.Fatalf("%s survived RemoveBlockIf", name)
		}
	}
	// Splicing keeps unit1 attached under chapter1.
	parents := s.GetParents(blocks["unit1"])
	if len(parents) != 1 || parents[0] != blocks["chapter1"] {
		t.Fatalf("unit1 parents after splice: %v", parents)
	}
}

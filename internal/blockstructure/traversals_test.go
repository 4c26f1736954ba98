package blockstructure

import (
	"testing"

	"github.com/openlearn/gradecore/internal/domain/keys"
)

func indexOf(list []keys.BlockKey, key keys.BlockKey) int {
	for i, k := range list {
		if k == key {
			return i
		}
	}
	return -1
}

func TestTopologicalParentsBeforeChildren(t *testing.T) {
	s, blocks := diamond()

	order := s.Topological(TraversalOptions{})
	if len(order) != s.Len() {
		t.Fatalf("emitted %d blocks, want %d", len(order), s.Len())
	}
	if order[0] != blocks["course"] {
		t.Fatalf("first emitted %v, want root", order[0])
	}
	// unit1 has two parents; both must precede it.
	u := indexOf(order, blocks["unit1"])
	if u == -1 {
		t.Fatalf("unit1 not emitted")
	}
	for _, name := range []string{"seq1", "seq2"} {
		if p := indexOf(order, blocks[name]); p == -1 || p > u {
			t.Fatalf("%s emitted at %d, after unit1 at %d", name, p, u)
		}
	}
}

func TestTopologicalFilterBlocksSubtree(t *testing.T) {
	s, blocks := diamond()

	// Filtering out chapter1 hides everything reachable only through it.
	order := s.Topological(TraversalOptions{
		Filter: func(key keys.BlockKey) bool { return key != blocks["chapter1"] },
	})
	for _, hidden := range []string{"chapter1", "seq1", "seq2", "unit1", "p1"} {
		if indexOf(order, blocks[hidden]) != -1 {
			t.Fatalf("%s emitted despite unyielded ancestor", hidden)
		}
	}
	if indexOf(order, blocks["seq3"]) == -1 {
		t.Fatalf("seq3 missing; the other chapter must be unaffected")
	}
}

func TestTopologicalYieldDescendantsOfUnyielded(t *testing.T) {
	s, blocks := diamond()

	order := s.Topological(TraversalOptions{
		Filter:                      func(key keys.BlockKey) bool { return key != blocks["chapter1"] },
		YieldDescendantsOfUnyielded: true,
	})
	if indexOf(order, blocks["chapter1"]) != -1 {
		t.Fatalf("filtered block emitted")
	}
	for _, name := range []string{"seq1", "seq2", "unit1", "p1"} {
		if indexOf(order, blocks[name]) == -1 {
			t.Fatalf("%s not emitted with YieldDescendantsOfUnyielded", name)
		}
	}
}

func TestPreOrderVisitsSharedNodeOnce(t *testing.T) {
	s, blocks := diamond()

	order := s.PreOrder()
	if len(order) != s.Len() {
		t.Fatalf("emitted %d blocks, want %d", len(order), s.Len())
	}
	if order[0] != blocks["course"] {
		t.Fatalf("first emitted %v, want root", order[0])
	}
	seen := map[keys.BlockKey]int{}
	for _, k := range order {
		seen[k]++
	}
	if seen[blocks["unit1"]] != 1 {
		t.Fatalf("unit1 visited %d times", seen[blocks["unit1"]])
	}
}

func TestPostOrderDescendantsFirst(t *testing.T) {
	s, blocks := diamond()

	order := s.PostOrder()
	if len(order) != s.Len() {
		t.Fatalf("emitted %d blocks, want %d", len(order), s.Len())
	}
	if order[len(order)-1] != blocks["course"] {
		t.Fatalf("root emitted at %d, want last", indexOf(order, blocks["course"]))
	}
	p1 := indexOf(order, blocks["p1"])
	unit1 := indexOf(order, blocks["unit1"])
	seq1 := indexOf(order, blocks["seq1"])
	if p1 > unit1 || unit1 > seq1 {
		t.Fatalf("post-order violated: p1=%d unit1=%d seq1=%d", p1, unit1, seq1)
	}
}

func TestTraversalsOnEmptiedStructure(t *testing.T) {
	s, blocks := diamond()
	s.RemoveBlock(blocks["course"], false)

	if got := s.Topological(TraversalOptions{}); got != nil {
		t.Fatalf("topological on rootless structure: %v", got)
	}
	if got := s.PreOrder(); got != nil {
		t.Fatalf("pre-order on rootless structure: %v", got)
	}
	if got := s.PostOrder(); got != nil {
		t.Fatalf("post-order on rootless structure: %v", got)
	}
}

package blockstructure

import (
	"testing"
	"time"

	"github.com/openlearn/gradecore/internal/domain/keys"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	s, blocks := diamond()
	due := time.Date(2026, 9, 15, 23, 59, 0, 0, time.UTC)

	s.SetBlockField(blocks["seq1"], "display_name", "Week 1")
	s.SetBlockField(blocks["seq1"], "due", due)
	s.SetBlockField(blocks["p1"], "weight", 2.0)
	s.SetTransformerBlockData(blocks["p1"], "grades", "max_score", 20.0)
	s.SetTransformerBlockData(blocks["p1"], "grades", "containing_subsections",
		[]keys.BlockKey{blocks["seq1"], blocks["seq2"]})
	s.SetTransformerData("user_partitions", "partitions", []string{"enrollment"})
	s.SetTransformerVersion("grades", 4)
	s.SetTransformerVersion("visibility", 2)

	blob, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Unmarshal(blob)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if back.Root() != s.Root() {
		t.Fatalf("root: got %v, want %v", back.Root(), s.Root())
	}
	if back.Len() != s.Len() {
		t.Fatalf("len: got %d, want %d", back.Len(), s.Len())
	}
	for name, key := range blocks {
		if !back.HasBlock(key) {
			t.Fatalf("%s missing after round trip", name)
		}
	}

	// Relations, including the shared-parent edge, survive.
	if got := back.GetParents(blocks["unit1"]); len(got) != 2 {
		t.Fatalf("unit1 parents after round trip: %v", got)
	}
	if got := back.GetChildren(blocks["seq1"]); len(got) != 1 || got[0] != blocks["unit1"] {
		t.Fatalf("seq1 children after round trip: %v", got)
	}

	// Typed field values survive, not just their string forms.
	if v, ok := back.GetBlockField(blocks["seq1"], "due"); !ok || !v.(time.Time).Equal(due) {
		t.Fatalf("due after round trip: %v (%v)", v, ok)
	}
	if v, ok := back.GetBlockField(blocks["p1"], "weight"); !ok || v.(float64) != 2.0 {
		t.Fatalf("weight after round trip: %v (%v)", v, ok)
	}
	if v, ok := back.GetTransformerBlockData(blocks["p1"], "grades", "max_score"); !ok || v.(float64) != 20.0 {
		t.Fatalf("max_score after round trip: %v (%v)", v, ok)
	}
	subs, ok := back.GetTransformerBlockData(blocks["p1"], "grades", "containing_subsections")
	if !ok {
		t.Fatalf("containing_subsections missing after round trip")
	}
	if got := subs.([]keys.BlockKey); len(got) != 2 || got[0] != blocks["seq1"] {
		t.Fatalf("containing_subsections after round trip: %v", got)
	}

	// Version stamps drive staleness detection and must survive exactly.
	if back.TransformerVersion("grades") != 4 || back.TransformerVersion("visibility") != 2 {
		t.Fatalf("version stamps after round trip: grades=%d visibility=%d",
			back.TransformerVersion("grades"), back.TransformerVersion("visibility"))
	}
	if back.TransformerVersion("never_collected") != 0 {
		t.Fatalf("unknown transformer version must be 0")
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte("not gzip")); err == nil {
		t.Fatalf("expected error for non-gzip input")
	}
	if _, err := Unmarshal(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

package scores

import (
	"testing"
	"time"

	"github.com/openlearn/gradecore/internal/domain/keys"
)

var (
	resolveCourse = keys.CourseKey("course-v1:OpenLearn+CS101+2026")
	resolveBlock  = keys.NewBlockKey(resolveCourse, "problem", "hw1_p1")
)

func fptr(v float64) *float64 { return &v }

func tptr(t time.Time) *time.Time { return &t }

func TestResolvePrefersSubmissions(t *testing.T) {
	attempted := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	subs := map[string]SubmissionValue{
		resolveBlock.String(): {WeightedEarned: 7.5, WeightedPossible: 10},
	}
	state := map[keys.BlockKey]StateValue{
		// Stale raw values that must lose to the submissions snapshot.
		resolveBlock: {RawEarned: 2, RawPossible: fptr(20), FirstAttempted: tptr(attempted)},
	}

	got := Resolve(resolveBlock, BlockMeta{MaxScore: fptr(20), Graded: true}, subs, state)
	if got == nil {
		t.Fatal("expected a score")
	}
	if got.WeightedEarned != 7.5 || got.WeightedPossible != 10 {
		t.Errorf("weighted = %v/%v, want 7.5/10", got.WeightedEarned, got.WeightedPossible)
	}
	if got.RawEarned != nil || got.RawPossible != nil {
		t.Error("submissions-backed scores carry no raw values")
	}
	if got.FirstAttempted == nil || !got.FirstAttempted.Equal(attempted) {
		t.Errorf("first attempted = %v, want %v", got.FirstAttempted, attempted)
	}
	if !got.Graded {
		t.Error("graded flag lost in resolution")
	}
}

func TestResolveFallsBackToState(t *testing.T) {
	attempted := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	state := map[keys.BlockKey]StateValue{
		resolveBlock: {RawEarned: 15, RawPossible: fptr(20), FirstAttempted: tptr(attempted)},
	}

	got := Resolve(resolveBlock, BlockMeta{MaxScore: fptr(20), Weight: fptr(10)}, nil, state)
	if got == nil {
		t.Fatal("expected a score")
	}
	if got.RawEarned == nil || *got.RawEarned != 15 || got.RawPossible == nil || *got.RawPossible != 20 {
		t.Errorf("raw = %v/%v, want 15/20", got.RawEarned, got.RawPossible)
	}
	// 15/20 rescaled onto weight 10.
	if got.WeightedEarned != 7.5 || got.WeightedPossible != 10 {
		t.Errorf("weighted = %v/%v, want 7.5/10", got.WeightedEarned, got.WeightedPossible)
	}
	if !got.Attempted() {
		t.Error("state-backed score with first_attempted should be attempted")
	}
}

func TestResolveStateWithoutPossibleIsSkipped(t *testing.T) {
	// State rows written before the block reported a denominator cannot
	// produce a score; resolution falls through to the unattempted zero.
	state := map[keys.BlockKey]StateValue{
		resolveBlock: {RawEarned: 3, RawPossible: nil},
	}
	got := Resolve(resolveBlock, BlockMeta{MaxScore: fptr(20)}, nil, state)
	if got == nil {
		t.Fatal("expected the zero fallback")
	}
	if *got.RawEarned != 0 || *got.RawPossible != 20 {
		t.Errorf("raw = %v/%v, want 0/20", *got.RawEarned, *got.RawPossible)
	}
	if got.Attempted() {
		t.Error("zero fallback must be unattempted")
	}
}

func TestResolveZeroFallback(t *testing.T) {
	got := Resolve(resolveBlock, BlockMeta{MaxScore: fptr(20), Graded: true}, nil, nil)
	if got == nil {
		t.Fatal("expected the zero fallback")
	}
	if *got.RawEarned != 0 || *got.RawPossible != 20 {
		t.Errorf("raw = %v/%v, want 0/20", *got.RawEarned, *got.RawPossible)
	}
	if got.WeightedEarned != 0 || got.WeightedPossible != 20 {
		t.Errorf("weighted = %v/%v, want 0/20", got.WeightedEarned, got.WeightedPossible)
	}
	if got.FirstAttempted != nil {
		t.Error("never-attempted score must have nil first_attempted")
	}
}

func TestResolvePersistedPossibleBeatsLiveMaxScore(t *testing.T) {
	meta := BlockMeta{MaxScore: fptr(25), RawPossible: fptr(20), Graded: true}
	got := Resolve(resolveBlock, meta, nil, nil)
	if got == nil {
		t.Fatal("expected the zero fallback")
	}
	if *got.RawPossible != 20 {
		t.Errorf("raw possible = %v, want persisted 20", *got.RawPossible)
	}
	if !got.Graded {
		t.Error("graded flag must carry through from the block metadata")
	}
}

func TestResolveNoSourceMeansNoScore(t *testing.T) {
	if got := Resolve(resolveBlock, BlockMeta{}, nil, nil); got != nil {
		t.Fatalf("expected nil score, got %+v", got)
	}
}

func TestWeighted(t *testing.T) {
	cases := []struct {
		name         string
		earned       float64
		possible     float64
		weight       *float64
		wantEarned   float64
		wantPossible float64
	}{
		{"nil weight passes through", 3, 4, nil, 3, 4},
		{"zero possible passes through", 0, 0, fptr(10), 0, 0},
		{"rescale", 15, 20, fptr(10), 7.5, 10},
		{"full credit", 4, 4, fptr(0.5), 0.5, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, p := Weighted(tc.earned, tc.possible, tc.weight)
			if e != tc.wantEarned || p != tc.wantPossible {
				t.Fatalf("Weighted = %v/%v, want %v/%v", e, p, tc.wantEarned, tc.wantPossible)
			}
		})
	}

	// Re-weighting an already-weighted pair with the same weight is a no-op.
	e, p := Weighted(15, 20, fptr(10))
	e2, p2 := Weighted(e, p, fptr(10))
	if e2 != e || p2 != p {
		t.Fatalf("re-weighting changed %v/%v to %v/%v", e, p, e2, p2)
	}
}

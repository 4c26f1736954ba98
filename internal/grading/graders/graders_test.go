package graders

import (
	"strings"
	"testing"
	"time"

	"github.com/openlearn/gradecore/internal/grading/policy"
	"github.com/openlearn/gradecore/internal/scores"
)

func fptr(v float64) *float64 { return &v }

func tptr(t time.Time) *time.Time { return &t }

func classPolicy(t *testing.T) *policy.GradingPolicy {
	t.Helper()
	p := &policy.GradingPolicy{
		Graders: []policy.BucketSpec{
			{Type: "Homework", MinCount: 12, DropCount: 2, Weight: 0.25, ShortLabel: "HW"},
			{Type: "Lab", MinCount: 7, DropCount: 3, Weight: 0.25},
			{Type: "Midterm Exam", MinCount: 1, DropCount: 0, Weight: 0.5, ShortLabel: "Midterm"},
		},
		Cutoffs: map[string]float64{"A": 0.87, "B": 0.7, "C": 0.6},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("policy: %v", err)
	}
	return p
}

func entry(format, name string, earned, possible float64) SubsectionEntry {
	return SubsectionEntry{
		Format:      format,
		DisplayName: name,
		Total: scores.AggregatedScore{
			WeightedEarned:   earned,
			WeightedPossible: possible,
			Graded:           true,
		},
	}
}

func TestAggregateScores(t *testing.T) {
	early := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)
	problems := []*scores.ProblemScore{
		{WeightedEarned: 3, WeightedPossible: 4, Graded: true, FirstAttempted: tptr(late)},
		{WeightedEarned: 1, WeightedPossible: 2, Graded: false, FirstAttempted: tptr(early)},
		{WeightedEarned: 0, WeightedPossible: 5, Graded: true},
		nil,
	}

	allTotal, gradedTotal := AggregateScores(problems)
	if allTotal.WeightedEarned != 4 || allTotal.WeightedPossible != 11 {
		t.Errorf("all_total = %v/%v, want 4/11", allTotal.WeightedEarned, allTotal.WeightedPossible)
	}
	if gradedTotal.WeightedEarned != 3 || gradedTotal.WeightedPossible != 9 {
		t.Errorf("graded_total = %v/%v, want 3/9", gradedTotal.WeightedEarned, gradedTotal.WeightedPossible)
	}
	if allTotal.FirstAttempted == nil || !allTotal.FirstAttempted.Equal(early) {
		t.Errorf("all first_attempted = %v, want earliest %v", allTotal.FirstAttempted, early)
	}
	if gradedTotal.FirstAttempted == nil || !gradedTotal.FirstAttempted.Equal(late) {
		t.Errorf("graded first_attempted = %v, want %v", gradedTotal.FirstAttempted, late)
	}
	if allTotal.Graded || !gradedTotal.Graded {
		t.Error("total graded flags inverted")
	}

	emptyAll, emptyGraded := AggregateScores(nil)
	if emptyAll.WeightedPossible != 0 || emptyGraded.WeightedPossible != 0 {
		t.Error("empty input should aggregate to zero totals")
	}
	if emptyAll.Attempted() {
		t.Error("empty aggregation cannot be attempted")
	}
}

func TestGradeCourseEmptyGradesheet(t *testing.T) {
	summary := GradeCourse(classPolicy(t), nil)
	if summary.Percent != 0.0 {
		t.Errorf("percent = %v, want 0", summary.Percent)
	}
	if summary.LetterGrade != "" {
		t.Errorf("letter = %q, want none", summary.LetterGrade)
	}
	if summary.Passed {
		t.Error("empty gradesheet cannot pass")
	}
	// The homework bucket still pads to its minimum count.
	unreleased := 0
	for _, row := range summary.SectionBreakdown {
		if row.Category == "Homework" && strings.Contains(row.Detail, "Unreleased") {
			unreleased++
		}
	}
	if unreleased != 12 {
		t.Errorf("unreleased homework rows = %d, want 12", unreleased)
	}
}

func TestGradeCoursePartialSemester(t *testing.T) {
	subsections := []SubsectionEntry{
		entry("Homework", "HW One", 2, 20),
		entry("Homework", "HW Two", 16, 16),
		entry("Lab", "Lab One", 1, 2),
		entry("Lab", "Lab Two", 1, 1),
		entry("Lab", "Lab Three", 1, 1),
		entry("Lab", "Lab Four", 5, 25),
		entry("Lab", "Lab Five", 3, 4),
		entry("Lab", "Lab Six", 6, 7),
		entry("Lab", "Lab Seven", 5, 6),
		entry("Midterm Exam", "Midterm", 50.5, 100),
	}

	summary := GradeCourse(classPolicy(t), subsections)
	if summary.Percent != 0.51 {
		t.Errorf("percent = %v, want 0.51", summary.Percent)
	}
	if summary.LetterGrade != "" || summary.Passed {
		t.Errorf("letter = %q passed = %v, want failing", summary.LetterGrade, summary.Passed)
	}

	if len(summary.GradeBreakdown) != 3 {
		t.Fatalf("grade breakdown buckets = %d, want 3", len(summary.GradeBreakdown))
	}
	hw, lab, mid := summary.GradeBreakdown[0], summary.GradeBreakdown[1], summary.GradeBreakdown[2]
	// 2/20 + 16/16 over min_count 12 with the two padded zeros dropped.
	if got, want := hw.Percent, 1.1/10; !approx(got, want) {
		t.Errorf("homework bucket = %v, want %v", got, want)
	}
	// Seven labs, three lowest (0.2, 0.5, 0.75) dropped.
	if got, want := lab.Percent, (1.0+1.0+6.0/7+5.0/6)/4; !approx(got, want) {
		t.Errorf("lab bucket = %v, want %v", got, want)
	}
	if got := mid.Percent; !approx(got, 0.505) {
		t.Errorf("midterm bucket = %v, want 0.505", got)
	}
	if got := mid.Contribution; !approx(got, 0.2525) {
		t.Errorf("midterm contribution = %v, want 0.2525", got)
	}

	droppedLabs := 0
	for _, row := range summary.SectionBreakdown {
		if row.Category == "Lab" && row.Dropped {
			droppedLabs++
		}
	}
	if droppedLabs != 3 {
		t.Errorf("dropped lab rows = %d, want 3", droppedLabs)
	}
}

func TestGradeCourseSingleEntryBucket(t *testing.T) {
	p := &policy.GradingPolicy{
		Graders: []policy.BucketSpec{
			{Type: "Final Exam", MinCount: 1, DropCount: 0, Weight: 0.5},
		},
		Cutoffs: map[string]float64{"Pass": 0.5},
	}
	summary := GradeCourse(p, []SubsectionEntry{entry("Final Exam", "Final", 3, 4)})

	if len(summary.GradeBreakdown) != 1 {
		t.Fatalf("buckets = %d, want 1", len(summary.GradeBreakdown))
	}
	b := summary.GradeBreakdown[0]
	if b.Percent != 0.75 || b.Contribution != 0.375 {
		t.Errorf("bucket = %v contribution %v, want 0.75 and 0.375", b.Percent, b.Contribution)
	}
	if summary.Percent != 0.38 {
		t.Errorf("percent = %v, want rounded 0.38", summary.Percent)
	}

	// One plain row, no separate average row.
	if len(summary.SectionBreakdown) != 1 {
		t.Fatalf("breakdown rows = %v, want a single row", summary.SectionBreakdown)
	}
	row := summary.SectionBreakdown[0]
	if row.IsAverage {
		t.Error("single-entry bucket must not render an average row")
	}
	if row.Detail != "Final Exam = 75%" {
		t.Errorf("detail = %q", row.Detail)
	}
}

func TestGradeCourseDropLowestTiesKeepEarlier(t *testing.T) {
	p := &policy.GradingPolicy{
		Graders: []policy.BucketSpec{
			{Type: "Quiz", MinCount: 3, DropCount: 1, Weight: 1.0},
		},
	}
	summary := GradeCourse(p, []SubsectionEntry{
		entry("Quiz", "Quiz One", 1, 2),
		entry("Quiz", "Quiz Two", 1, 2),
		entry("Quiz", "Quiz Three", 2, 2),
	})

	var droppedNames []string
	for _, row := range summary.SectionBreakdown {
		if row.Dropped {
			droppedNames = append(droppedNames, row.Detail)
		}
	}
	if len(droppedNames) != 1 || !strings.Contains(droppedNames[0], "Quiz Two") {
		t.Fatalf("dropped = %v, want only the later tied entry", droppedNames)
	}
	if got, want := summary.GradeBreakdown[0].Percent, (0.5+1.0)/2; !approx(got, want) {
		t.Errorf("bucket = %v, want %v", got, want)
	}
}

func TestGradeCourseExtraCreditExceedsOne(t *testing.T) {
	p := &policy.GradingPolicy{
		Graders: []policy.BucketSpec{
			{Type: "Exam", MinCount: 1, Weight: 1.0},
			{Type: "Bonus", MinCount: 1, Weight: 0.1},
		},
		Cutoffs: map[string]float64{"A": 0.9},
	}
	summary := GradeCourse(p, []SubsectionEntry{
		entry("Exam", "Exam", 10, 10),
		entry("Bonus", "Bonus", 10, 10),
	})
	if summary.Percent != 1.1 {
		t.Errorf("percent = %v, want 1.1", summary.Percent)
	}
	if summary.LetterGrade != "A" || !summary.Passed {
		t.Errorf("letter = %q passed = %v", summary.LetterGrade, summary.Passed)
	}
}

func TestGradeCourseMoreEarnedNeverLowersPercent(t *testing.T) {
	p := classPolicy(t)
	base := []SubsectionEntry{
		entry("Homework", "HW One", 2, 20),
		entry("Lab", "Lab One", 1, 2),
		entry("Midterm Exam", "Midterm", 50, 100),
	}
	before := GradeCourse(p, base).Percent

	for i := range base {
		bumped := make([]SubsectionEntry, len(base))
		copy(bumped, base)
		e := base[i]
		e.Total.WeightedEarned++
		bumped[i] = e
		after := GradeCourse(p, bumped).Percent
		if after < before {
			t.Errorf("raising %s lowered percent from %v to %v", base[i].DisplayName, before, after)
		}
	}
}

func TestRoundPercent(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{0.5, 0.5},
		{0.375, 0.38},
		{0.51065, 0.51},
		{0.4945, 0.5},
		{0.494, 0.49},
		{1.0, 1.0},
	}
	for _, tc := range cases {
		if got := RoundPercent(tc.in); got != tc.want {
			t.Errorf("RoundPercent(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

package transformers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/openlearn/gradecore/internal/coursegraph"
	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/pkg/logger"
)

const testCourseKey = keys.CourseKey("course-v1:OpenLearn+CS101+2026")

var testPolicy = json.RawMessage(`{
	"graders": [
		{"type": "Homework", "min_count": 1, "drop_count": 0, "weight": 1.0}
	],
	"cutoffs": {"Pass": 0.5}
}`)

func tbk(blockType, id string) keys.BlockKey {
	return keys.NewBlockKey(testCourseKey, blockType, id)
}

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("init logger: %v", err)
	}
	return log
}

// seedCourse builds:
//
//	course
//	├── ch1
//	│   ├── hw (sequential, graded, Homework)
//	│   │   └── u1 ── {p1 (20 pts), p2 (16 pts, weight 8)}
//	│   ├── staffseq (sequential, staff only) ── p3 (10 pts)
//	│   └── future (sequential, releases later) ── p4 (5 pts)
//	└── ch2 (practice, ungraded) ── seqext ── p5 (7 pts)
func seedCourse(tb testing.TB, releaseAt time.Time) *coursegraph.MemStore {
	tb.Helper()
	store := coursegraph.NewMemStore()
	root := tbk("course", "course")
	store.PutCourse(testCourseKey, root, testPolicy)

	add := func(parent, child keys.BlockKey, fields map[string]interface{}) {
		if err := store.AddBlock(parent, child, fields); err != nil {
			tb.Fatalf("add block %v: %v", child, err)
		}
	}

	ch1 := tbk("chapter", "ch1")
	ch2 := tbk("chapter", "ch2")
	hw := tbk("sequential", "hw")
	staffseq := tbk("sequential", "staffseq")
	future := tbk("sequential", "future")
	seqext := tbk("sequential", "seqext")
	u1 := tbk("vertical", "u1")

	add(root, ch1, nil)
	add(root, ch2, nil)
	add(ch1, hw, map[string]interface{}{
		coursegraph.FieldGraded:      true,
		coursegraph.FieldFormat:      "Homework",
		coursegraph.FieldDisplayName: "HW 1",
	})
	add(ch1, staffseq, map[string]interface{}{
		coursegraph.FieldVisibleToStaff: true,
		coursegraph.FieldGraded:         true,
		coursegraph.FieldFormat:         "Homework",
	})
	add(ch1, future, map[string]interface{}{
		coursegraph.FieldStart:  releaseAt,
		coursegraph.FieldGraded: true,
		coursegraph.FieldFormat: "Homework",
	})
	add(ch2, seqext, map[string]interface{}{
		coursegraph.FieldDisplayName: "Practice",
	})
	add(hw, u1, nil)
	add(u1, tbk("problem", "p1"), map[string]interface{}{
		coursegraph.FieldHasScore: true,
		coursegraph.FieldMaxScore: 20.0,
	})
	add(u1, tbk("problem", "p2"), map[string]interface{}{
		coursegraph.FieldHasScore: true,
		coursegraph.FieldMaxScore: 16.0,
		coursegraph.FieldWeight:   8.0,
	})
	add(staffseq, tbk("problem", "p3"), map[string]interface{}{
		coursegraph.FieldHasScore: true,
		coursegraph.FieldMaxScore: 10.0,
	})
	add(future, tbk("problem", "p4"), map[string]interface{}{
		coursegraph.FieldHasScore: true,
		coursegraph.FieldMaxScore: 5.0,
	})
	add(seqext, tbk("problem", "p5"), map[string]interface{}{
		coursegraph.FieldHasScore: true,
		coursegraph.FieldMaxScore: 7.0,
	})
	return store
}

package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	repos "github.com/openlearn/gradecore/internal/data/repos/grades"
	types "github.com/openlearn/gradecore/internal/domain"
	"github.com/openlearn/gradecore/internal/pkg/dbctx"
)

// The fakes below mirror the repository upsert semantics (only-if-higher,
// first_attempted keep, passed_timestamp set-once) so the service paths can
// be exercised without Postgres.

type fakeVisibleBlocksRepo struct {
	mu   sync.Mutex
	rows map[string]*types.VisibleBlocks
}

var _ repos.VisibleBlocksRepo = (*fakeVisibleBlocksRepo)(nil)

func newFakeVisibleBlocksRepo() *fakeVisibleBlocksRepo {
	return &fakeVisibleBlocksRepo{rows: map[string]*types.VisibleBlocks{}}
}

func (f *fakeVisibleBlocksRepo) BulkGetOrCreate(_ dbctx.Context, rows []*types.VisibleBlocks) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		if _, ok := f.rows[row.Hashed]; !ok {
			f.rows[row.Hashed] = row
		}
	}
	return nil
}

func (f *fakeVisibleBlocksRepo) DeleteByCourse(_ dbctx.Context, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, row := range f.rows {
		if row.CourseID == courseID {
			delete(f.rows, h)
		}
	}
	return nil
}

type fakeSubsectionGradeRepo struct {
	mu     sync.Mutex
	rows   map[string]*types.PersistentSubsectionGrade
	blocks *fakeVisibleBlocksRepo
}

var _ repos.SubsectionGradeRepo = (*fakeSubsectionGradeRepo)(nil)

func newFakeSubsectionGradeRepo(blocks *fakeVisibleBlocksRepo) *fakeSubsectionGradeRepo {
	return &fakeSubsectionGradeRepo{
		rows:   map[string]*types.PersistentSubsectionGrade{},
		blocks: blocks,
	}
}

func subRowKey(courseID string, userID uuid.UUID, usageKey string) string {
	return courseID + "|" + userID.String() + "|" + usageKey
}

// withBlocks attaches the shared visible-blocks row the way the real repo's
// preload does.
func (f *fakeSubsectionGradeRepo) withBlocks(row *types.PersistentSubsectionGrade) *types.PersistentSubsectionGrade {
	out := *row
	f.blocks.mu.Lock()
	out.VisibleBlocks = f.blocks.rows[row.VisibleBlocksHash]
	f.blocks.mu.Unlock()
	return &out
}

func (f *fakeSubsectionGradeRepo) ReadGrade(_ dbctx.Context, userID uuid.UUID, courseID, usageKey string) (*types.PersistentSubsectionGrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[subRowKey(courseID, userID, usageKey)]
	if !ok {
		return nil, nil
	}
	return f.withBlocks(row), nil
}

func (f *fakeSubsectionGradeRepo) BulkReadGrades(_ dbctx.Context, userID uuid.UUID, courseID string) ([]*types.PersistentSubsectionGrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.PersistentSubsectionGrade
	for _, row := range f.rows {
		if row.UserID == userID && row.CourseID == courseID {
			out = append(out, f.withBlocks(row))
		}
	}
	return out, nil
}

func (f *fakeSubsectionGradeRepo) Upsert(_ dbctx.Context, row *types.PersistentSubsectionGrade, onlyIfHigher bool) (*types.PersistentSubsectionGrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := subRowKey(row.CourseID, row.UserID, row.UsageKey)
	if existing, ok := f.rows[key]; ok {
		if onlyIfHigher && !pairHigher(row.EarnedGraded, row.PossibleGraded, existing.EarnedGraded, existing.PossibleGraded) {
			return existing, nil
		}
		if existing.FirstAttempted != nil {
			row.FirstAttempted = existing.FirstAttempted
		}
		row.ID = existing.ID
	}
	stored := *row
	f.rows[key] = &stored
	return row, nil
}

func (f *fakeSubsectionGradeRepo) DeleteForLearner(_ dbctx.Context, userID uuid.UUID, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, row := range f.rows {
		if row.UserID == userID && row.CourseID == courseID {
			delete(f.rows, key)
		}
	}
	return nil
}

func (f *fakeSubsectionGradeRepo) DeleteForCourse(_ dbctx.Context, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, row := range f.rows {
		if row.CourseID == courseID {
			delete(f.rows, key)
		}
	}
	return nil
}

func pairHigher(newEarned, newPossible, oldEarned, oldPossible float64) bool {
	if newEarned != oldEarned {
		return newEarned > oldEarned
	}
	return newPossible > oldPossible
}

type fakeCourseGradeRepo struct {
	mu            sync.Mutex
	rows          map[string]*types.PersistentCourseGrade
	readManyCalls int
}

var _ repos.CourseGradeRepo = (*fakeCourseGradeRepo)(nil)

func newFakeCourseGradeRepo() *fakeCourseGradeRepo {
	return &fakeCourseGradeRepo{rows: map[string]*types.PersistentCourseGrade{}}
}

func courseRowKey(courseID string, userID uuid.UUID) string {
	return courseID + "|" + userID.String()
}

func (f *fakeCourseGradeRepo) Read(_ dbctx.Context, userID uuid.UUID, courseID string) (*types.PersistentCourseGrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[courseRowKey(courseID, userID)]
	if !ok {
		return nil, nil
	}
	out := *row
	return &out, nil
}

func (f *fakeCourseGradeRepo) ReadMany(_ dbctx.Context, userIDs []uuid.UUID, courseID string) ([]*types.PersistentCourseGrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readManyCalls++
	var out []*types.PersistentCourseGrade
	for _, id := range userIDs {
		if row, ok := f.rows[courseRowKey(courseID, id)]; ok {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCourseGradeRepo) Upsert(_ dbctx.Context, row *types.PersistentCourseGrade) (*types.PersistentCourseGrade, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := courseRowKey(row.CourseID, row.UserID)
	if existing, ok := f.rows[key]; ok {
		row.ID = existing.ID
		row.PassedTimestamp = existing.PassedTimestamp
	}
	passedFirstTime := false
	if row.Passed() && row.PassedTimestamp == nil {
		now := time.Now().UTC()
		row.PassedTimestamp = &now
		passedFirstTime = true
	}
	stored := *row
	f.rows[key] = &stored
	return row, passedFirstTime, nil
}

func (f *fakeCourseGradeRepo) MarkStaleForCourse(_ dbctx.Context, courseID, currentPolicyHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.CourseID == courseID && row.GradingPolicyHash != currentPolicyHash {
			row.GradingPolicyHash = ""
		}
	}
	return nil
}

func (f *fakeCourseGradeRepo) DeleteForLearner(_ dbctx.Context, userID uuid.UUID, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, courseRowKey(courseID, userID))
	return nil
}

func (f *fakeCourseGradeRepo) DeleteForCourse(_ dbctx.Context, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, row := range f.rows {
		if row.CourseID == courseID {
			delete(f.rows, key)
		}
	}
	return nil
}

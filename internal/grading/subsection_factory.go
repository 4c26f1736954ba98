package grading

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/coursegraph"
	repos "github.com/openlearn/gradecore/internal/data/repos/grades"
	types "github.com/openlearn/gradecore/internal/domain"
	"github.com/openlearn/gradecore/internal/domain/grades"
	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/pkg/dbctx"
	"github.com/openlearn/gradecore/internal/pkg/logger"
	"github.com/openlearn/gradecore/internal/scores"
	"github.com/openlearn/gradecore/internal/transformers"
)

// Learner identifies one learner to the grading paths: the primary id keys
// the grade store, the anonymous id keys the submissions service.
type Learner struct {
	ID          uuid.UUID
	AnonymousID string
}

// ScoreSnapshot bundles one learner's raw inputs for a grading pass so the
// external stores are hit once per pass, not once per subsection.
type ScoreSnapshot struct {
	Submissions map[string]scores.SubmissionValue
	State       map[keys.BlockKey]scores.StateValue
}

// SubsectionGradeFactory computes and persists subsection grades.
type SubsectionGradeFactory struct {
	grades        repos.SubsectionGradeRepo
	visibleBlocks repos.VisibleBlocksRepo
	submissions   scores.SubmissionsStore
	learnerState  scores.LearnerStateStore
	opts          Options
	log           *logger.Logger
}

func NewSubsectionGradeFactory(
	gradeRepo repos.SubsectionGradeRepo,
	visibleBlocksRepo repos.VisibleBlocksRepo,
	submissions scores.SubmissionsStore,
	learnerState scores.LearnerStateStore,
	opts Options,
	baseLog *logger.Logger,
) *SubsectionGradeFactory {
	return &SubsectionGradeFactory{
		grades:        gradeRepo,
		visibleBlocks: visibleBlocksRepo,
		submissions:   submissions,
		learnerState:  learnerState,
		opts:          opts,
		log:           baseLog.With("service", "SubsectionGradeFactory"),
	}
}

// Snapshot fetches the learner's submissions and courseware state for every
// scorable block in the structure.
func (f *SubsectionGradeFactory) Snapshot(ctx context.Context, learner Learner, courseKey keys.CourseKey, s *blockstructure.BlockStructure) (*ScoreSnapshot, error) {
	submissions, err := f.submissions.GetScores(ctx, courseKey, learner.AnonymousID)
	if err != nil {
		return nil, err
	}
	var scorable []keys.BlockKey
	for _, key := range s.BlockKeys() {
		if transformers.BlockScorable(s, key) {
			scorable = append(scorable, key)
		}
	}
	state, err := f.learnerState.GetForLocations(ctx, courseKey, learner.ID, scorable)
	if err != nil {
		return nil, err
	}
	return &ScoreSnapshot{Submissions: submissions, State: state}, nil
}

// Create computes a fresh grade for the subsection and, when persist is
// set and the learner has attempted it, writes it through.
func (f *SubsectionGradeFactory) Create(
	ctx context.Context,
	learner Learner,
	course *coursegraph.CourseHandle,
	s *blockstructure.BlockStructure,
	subsectionKey keys.BlockKey,
	snapshot *ScoreSnapshot,
	persist bool,
) (*SubsectionGrade, error) {
	grade := CreateSubsectionGrade(s, subsectionKey, snapshot.Submissions, snapshot.State, course.Version, &course.EditedOn)
	if persist && f.shouldPersist(grade, false) {
		if err := f.persistGrade(ctx, learner, course.Key, grade, false); err != nil {
			return nil, err
		}
	}
	return grade, nil
}

// Read rebuilds the grade from its persisted row when one exists, falling
// back to a fresh computation (without persisting) when none does.
func (f *SubsectionGradeFactory) Read(
	ctx context.Context,
	learner Learner,
	course *coursegraph.CourseHandle,
	s *blockstructure.BlockStructure,
	subsectionKey keys.BlockKey,
	snapshot *ScoreSnapshot,
) (*SubsectionGrade, error) {
	row, err := f.grades.ReadGrade(dbctx.Context{Ctx: ctx}, learner.ID, course.Key.String(), subsectionKey.String())
	if err != nil {
		return nil, err
	}
	if row == nil {
		return f.Create(ctx, learner, course, s, subsectionKey, snapshot, false)
	}
	return ReadSubsectionGrade(s, row, snapshot.Submissions, snapshot.State)
}

// FromRow rebuilds a grade from an already-fetched persisted row.
func (f *SubsectionGradeFactory) FromRow(
	s *blockstructure.BlockStructure,
	row *types.PersistentSubsectionGrade,
	snapshot *ScoreSnapshot,
) (*SubsectionGrade, error) {
	return ReadSubsectionGrade(s, row, snapshot.Submissions, snapshot.State)
}

// Update recomputes the subsection grade after a score change and persists
// it under the only-if-higher policy. scoreDeleted forces persistence of
// the explicit zero row even though the learner no longer counts as having
// attempted anything.
func (f *SubsectionGradeFactory) Update(
	ctx context.Context,
	learner Learner,
	course *coursegraph.CourseHandle,
	s *blockstructure.BlockStructure,
	subsectionKey keys.BlockKey,
	snapshot *ScoreSnapshot,
	onlyIfHigher bool,
	scoreDeleted bool,
) (*SubsectionGrade, error) {
	var grade *SubsectionGrade
	if scoreDeleted && !snapshotAttempted(snapshot, s, subsectionKey) {
		grade = ZeroSubsectionGrade(s, subsectionKey, course.Version, &course.EditedOn)
	} else {
		grade = CreateSubsectionGrade(s, subsectionKey, snapshot.Submissions, snapshot.State, course.Version, &course.EditedOn)
	}
	if f.shouldPersist(grade, scoreDeleted) {
		if err := f.persistGrade(ctx, learner, course.Key, grade, onlyIfHigher); err != nil {
			return nil, err
		}
	}
	return grade, nil
}

// BulkReadRows returns the learner's persisted rows keyed by usage key.
func (f *SubsectionGradeFactory) BulkReadRows(ctx context.Context, learner Learner, courseKey keys.CourseKey) (map[string]*types.PersistentSubsectionGrade, error) {
	rows, err := f.grades.BulkReadGrades(dbctx.Context{Ctx: ctx}, learner.ID, courseKey.String())
	if err != nil {
		return nil, err
	}
	out := make(map[string]*types.PersistentSubsectionGrade, len(rows))
	for _, row := range rows {
		out[row.UsageKey] = row
	}
	return out, nil
}

// shouldPersist gates writes: rows exist only for attempted subsections,
// except the explicit zero written after a score deletion.
func (f *SubsectionGradeFactory) shouldPersist(grade *SubsectionGrade, scoreDeleted bool) bool {
	if !f.opts.PersistGrades {
		return false
	}
	return grade.Attempted() || scoreDeleted
}

func (f *SubsectionGradeFactory) persistGrade(ctx context.Context, learner Learner, courseKey keys.CourseKey, grade *SubsectionGrade, onlyIfHigher bool) error {
	recordList := grades.NewBlockRecordList(grade.BlockRecords(), courseKey)
	hash, err := recordList.HashValue()
	if err != nil {
		return err
	}
	blocksJSON, err := recordList.JSONValue()
	if err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := f.visibleBlocks.BulkGetOrCreate(dbc, []*types.VisibleBlocks{{
		Hashed:     hash,
		BlocksJSON: datatypes.JSON(blocksJSON),
		CourseID:   courseKey.String(),
	}}); err != nil {
		return err
	}
	_, err = f.grades.Upsert(dbc, &types.PersistentSubsectionGrade{
		ID:                uuid.New(),
		UserID:            learner.ID,
		CourseID:          courseKey.String(),
		UsageKey:          grade.SubsectionKey.String(),
		CourseVersion:     grade.CourseVersion,
		SubtreeEditedOn:   grade.SubtreeEditedOn,
		EarnedAll:         grade.AllTotal.WeightedEarned,
		PossibleAll:       grade.AllTotal.WeightedPossible,
		EarnedGraded:      grade.GradedTotal.WeightedEarned,
		PossibleGraded:    grade.GradedTotal.WeightedPossible,
		FirstAttempted:    grade.AllTotal.FirstAttempted,
		VisibleBlocksHash: hash,
	}, onlyIfHigher)
	return err
}

// snapshotAttempted reports whether anything under the subsection still has
// an attempt recorded against it.
func snapshotAttempted(snapshot *ScoreSnapshot, s *blockstructure.BlockStructure, subsectionKey keys.BlockKey) bool {
	for _, key := range descendantsOf(s, subsectionKey) {
		if !transformers.BlockScorable(s, key) {
			continue
		}
		if _, ok := snapshot.Submissions[key.String()]; ok {
			return true
		}
		if sv, ok := snapshot.State[key]; ok && sv.FirstAttempted != nil {
			return true
		}
	}
	return false
}

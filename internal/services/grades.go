// Package services wires the grading factories, the transformer pipeline,
// and the persistence layer into the operations callers and event emitters
// use.
package services

import (
	"context"
	"time"

	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/coursegraph"
	repos "github.com/openlearn/gradecore/internal/data/repos/grades"
	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/events"
	"github.com/openlearn/gradecore/internal/grading"
	"github.com/openlearn/gradecore/internal/grading/policy"
	"github.com/openlearn/gradecore/internal/pkg/dbctx"
	"github.com/openlearn/gradecore/internal/pkg/logger"
	"github.com/openlearn/gradecore/internal/scores"
	"github.com/openlearn/gradecore/internal/transformers"
)

// GradesService is the facade over the grading core. It implements
// events.Handler for the inbound signals and exposes the read/compute
// operations directly.
type GradesService struct {
	pipeline      *transformers.Pipeline
	store         coursegraph.BlockStore
	learnerState  scores.LearnerStateStore
	courseFactory *grading.CourseGradeFactory
	subsections   *grading.SubsectionGradeFactory
	courseGrades  repos.CourseGradeRepo
	subGrades     repos.SubsectionGradeRepo
	visibleBlocks repos.VisibleBlocksRepo
	publisher     events.Publisher
	opts          grading.Options
	log           *logger.Logger
}

func NewGradesService(
	pipeline *transformers.Pipeline,
	store coursegraph.BlockStore,
	learnerState scores.LearnerStateStore,
	courseFactory *grading.CourseGradeFactory,
	subsectionFactory *grading.SubsectionGradeFactory,
	courseGradeRepo repos.CourseGradeRepo,
	subsectionGradeRepo repos.SubsectionGradeRepo,
	visibleBlocksRepo repos.VisibleBlocksRepo,
	publisher events.Publisher,
	opts grading.Options,
	baseLog *logger.Logger,
) *GradesService {
	return &GradesService{
		pipeline:      pipeline,
		store:         store,
		learnerState:  learnerState,
		courseFactory: courseFactory,
		subsections:   subsectionFactory,
		courseGrades:  courseGradeRepo,
		subGrades:     subsectionGradeRepo,
		visibleBlocks: visibleBlocksRepo,
		publisher:     publisher,
		opts:          opts,
		log:           baseLog.With("service", "GradesService"),
	}
}

// ReadCourseGrade returns the learner's course grade without writing.
func (s *GradesService) ReadCourseGrade(ctx context.Context, learner grading.Learner, courseKey keys.CourseKey) (*grading.CourseGrade, error) {
	return s.courseFactory.Read(ctx, learner, courseKey)
}

// CreateCourseGrade computes and persists the learner's course grade.
func (s *GradesService) CreateCourseGrade(ctx context.Context, learner grading.Learner, courseKey keys.CourseKey) (*grading.CourseGrade, error) {
	grade, err := s.courseFactory.Create(ctx, learner, courseKey)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, grade, false)
	return grade, nil
}

// UpdateCourseGrade forces a recompute-and-persist.
func (s *GradesService) UpdateCourseGrade(ctx context.Context, learner grading.Learner, courseKey keys.CourseKey) (*grading.CourseGrade, error) {
	grade, passedFirstTime, err := s.courseFactory.Update(ctx, learner, courseKey)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, grade, passedFirstTime)
	return grade, nil
}

// IterCourseGrades grades a roster with per-learner error isolation.
func (s *GradesService) IterCourseGrades(ctx context.Context, learners []grading.Learner, courseKey keys.CourseKey, forceUpdate bool) []grading.IterResult {
	results := s.courseFactory.Iter(ctx, learners, courseKey, forceUpdate)
	if forceUpdate {
		for _, res := range results {
			if res.Err == nil && res.Grade != nil {
				s.notify(ctx, res.Grade, res.PassedFirstTime)
			}
		}
	}
	return results
}

// ReadSubsectionGrade returns one subsection's grade for the learner,
// preferring the persisted row.
func (s *GradesService) ReadSubsectionGrade(ctx context.Context, learner grading.Learner, courseKey keys.CourseKey, subsectionKey keys.BlockKey) (*grading.SubsectionGrade, error) {
	course, structure, err := s.learnerView(ctx, learner, courseKey)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.subsections.Snapshot(ctx, learner, courseKey, structure)
	if err != nil {
		return nil, err
	}
	return s.subsections.Read(ctx, learner, course, structure, subsectionKey, snapshot)
}

// HandleScoreSet records the new raw score and recomputes every grade it
// feeds: the containing subsections first, the course grade after.
func (s *GradesService) HandleScoreSet(ctx context.Context, sig events.ScoreSet) error {
	learner := grading.Learner{ID: sig.LearnerID, AnonymousID: sig.LearnerAnonymousID}

	firstAttempted, err := s.firstAttemptedFor(ctx, sig)
	if err != nil {
		return err
	}
	rawPossible := sig.RawPossible
	if err := s.learnerState.UpsertState(ctx, sig.CourseKey, sig.LearnerID, sig.BlockKey, scores.StateValue{
		RawEarned:      sig.RawEarned,
		RawPossible:    &rawPossible,
		FirstAttempted: &firstAttempted,
	}); err != nil {
		return err
	}

	return s.recalculate(ctx, learner, sig.CourseKey, sig.BlockKey, sig.OnlyIfHigher, false)
}

// HandleScoreReset deletes the learner's state for the block and writes
// the resulting grades through, including the explicit zero row when
// nothing attempted remains in the subsection.
func (s *GradesService) HandleScoreReset(ctx context.Context, sig events.ScoreReset) error {
	learner := grading.Learner{ID: sig.LearnerID, AnonymousID: sig.LearnerAnonymousID}

	if err := s.learnerState.DeleteState(ctx, sig.CourseKey, sig.LearnerID, sig.BlockKey); err != nil {
		return err
	}

	return s.recalculate(ctx, learner, sig.CourseKey, sig.BlockKey, false, true)
}

// HandleCoursePublished drops the cached structure and marks course grades
// computed under a superseded policy stale.
func (s *GradesService) HandleCoursePublished(ctx context.Context, sig events.CoursePublished) error {
	if err := s.pipeline.InvalidateCache(ctx, sig.CourseKey); err != nil {
		s.log.Warn("failed to invalidate structure cache on publish",
			"course_id", sig.CourseKey, "error", err)
	}
	if !s.opts.PersistGrades {
		return nil
	}
	course, err := s.store.GetCourse(ctx, sig.CourseKey)
	if err != nil {
		return err
	}
	p, err := policy.Parse(course.GradingPolicy)
	if err != nil {
		return err
	}
	return s.courseGrades.MarkStaleForCourse(dbctx.Context{Ctx: ctx}, sig.CourseKey.String(), p.Hash())
}

// HandleCourseDeleted purges everything the core holds for the course.
func (s *GradesService) HandleCourseDeleted(ctx context.Context, sig events.CourseDeleted) error {
	if err := s.pipeline.InvalidateCache(ctx, sig.CourseKey); err != nil {
		s.log.Warn("failed to invalidate structure cache on delete",
			"course_id", sig.CourseKey, "error", err)
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.subGrades.DeleteForCourse(dbc, sig.CourseKey.String()); err != nil {
		return err
	}
	if err := s.courseGrades.DeleteForCourse(dbc, sig.CourseKey.String()); err != nil {
		return err
	}
	return s.visibleBlocks.DeleteByCourse(dbc, sig.CourseKey.String())
}

// recalculate updates the subsections containing the block, then the
// course grade, then notifies downstream consumers.
func (s *GradesService) recalculate(ctx context.Context, learner grading.Learner, courseKey keys.CourseKey, blockKey keys.BlockKey, onlyIfHigher, scoreDeleted bool) error {
	course, structure, err := s.learnerView(ctx, learner, courseKey)
	if err != nil {
		return err
	}
	affected := transformers.ContainingSubsections(structure, blockKey)
	if len(affected) == 0 {
		s.log.Debug("score change for block outside the learner's graded view",
			"course_id", courseKey,
			"learner_id", learner.ID,
			"usage_key", blockKey)
		return nil
	}

	snapshot, err := s.subsections.Snapshot(ctx, learner, courseKey, structure)
	if err != nil {
		return err
	}
	for _, subsectionKey := range affected {
		if _, err := s.subsections.Update(ctx, learner, course, structure, subsectionKey, snapshot, onlyIfHigher, scoreDeleted); err != nil {
			return err
		}
	}

	grade, passedFirstTime, err := s.courseFactory.Update(ctx, learner, courseKey)
	if err != nil {
		return err
	}
	s.notify(ctx, grade, passedFirstTime)
	return nil
}

func (s *GradesService) learnerView(ctx context.Context, learner grading.Learner, courseKey keys.CourseKey) (*coursegraph.CourseHandle, *blockstructure.BlockStructure, error) {
	course, err := s.store.GetCourse(ctx, courseKey)
	if err != nil {
		return nil, nil, err
	}
	usage := &transformers.UsageInfo{LearnerID: learner.ID, CourseKey: courseKey}
	structure, err := s.pipeline.GetTransformed(ctx, usage, transformers.DefaultViewNames())
	if err != nil {
		return nil, nil, err
	}
	return course, structure, nil
}

// firstAttemptedFor keeps the earliest attempt timestamp across rescores.
func (s *GradesService) firstAttemptedFor(ctx context.Context, sig events.ScoreSet) (time.Time, error) {
	existing, err := s.learnerState.GetForLocations(ctx, sig.CourseKey, sig.LearnerID, []keys.BlockKey{sig.BlockKey})
	if err != nil {
		return time.Time{}, err
	}
	if sv, ok := existing[sig.BlockKey]; ok && sv.FirstAttempted != nil {
		return *sv.FirstAttempted, nil
	}
	if !sig.ModifiedAt.IsZero() {
		return sig.ModifiedAt, nil
	}
	return time.Now().UTC(), nil
}

func (s *GradesService) notify(ctx context.Context, grade *grading.CourseGrade, passedFirstTime bool) {
	if s.publisher == nil || grade.Synthetic {
		return
	}
	n := events.GradeNotification{
		Name:            events.CourseGradeChanged,
		LearnerID:       grade.LearnerID,
		CourseKey:       grade.CourseKey,
		PercentGrade:    grade.Percent,
		LetterGrade:     grade.LetterGrade,
		PassedTimestamp: grade.PassedTimestamp,
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.log.Warn("failed to publish grade notification",
			"course_id", grade.CourseKey,
			"learner_id", grade.LearnerID,
			"error", err)
	}
	if !passedFirstTime {
		return
	}
	n.Name = events.CourseGradePassedFirstTime
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.log.Warn("failed to publish passed-first-time notification",
			"course_id", grade.CourseKey,
			"learner_id", grade.LearnerID,
			"error", err)
	}
}

package grading

import (
	"context"

	"github.com/google/uuid"

	"github.com/openlearn/gradecore/internal/coursegraph"
	repos "github.com/openlearn/gradecore/internal/data/repos/grades"
	types "github.com/openlearn/gradecore/internal/domain"
	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/grading/policy"
	"github.com/openlearn/gradecore/internal/pkg/dbctx"
	"github.com/openlearn/gradecore/internal/pkg/logger"
	"github.com/openlearn/gradecore/internal/transformers"
)

// CourseGradeFactory is the entry point for whole-course grades: reading
// persisted ones, computing fresh ones, and iterating a roster.
type CourseGradeFactory struct {
	pipeline     *transformers.Pipeline
	store        coursegraph.BlockStore
	courseGrades repos.CourseGradeRepo
	subsections  *SubsectionGradeFactory
	opts         Options
	log          *logger.Logger
}

func NewCourseGradeFactory(
	pipeline *transformers.Pipeline,
	store coursegraph.BlockStore,
	courseGradeRepo repos.CourseGradeRepo,
	subsectionFactory *SubsectionGradeFactory,
	opts Options,
	baseLog *logger.Logger,
) *CourseGradeFactory {
	return &CourseGradeFactory{
		pipeline:     pipeline,
		store:        store,
		courseGrades: courseGradeRepo,
		subsections:  subsectionFactory,
		opts:         opts,
		log:          baseLog.With("service", "CourseGradeFactory"),
	}
}

// Read returns the learner's course grade without writing anything. A
// persisted row computed under the current grading policy is returned as
// is; a stale or absent row triggers either a synthetic zero (under the
// assume-zero mode) or a fresh unsaved computation.
func (f *CourseGradeFactory) Read(ctx context.Context, learner Learner, courseKey keys.CourseKey) (*CourseGrade, error) {
	return f.read(ctx, learner, courseKey, nil, false)
}

func (f *CourseGradeFactory) read(
	ctx context.Context,
	learner Learner,
	courseKey keys.CourseKey,
	prefetchedRow *types.PersistentCourseGrade,
	prefetched bool,
) (*CourseGrade, error) {
	course, err := f.store.GetCourse(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	p, err := policy.Parse(course.GradingPolicy)
	if err != nil {
		return nil, err
	}

	if f.opts.PersistGrades {
		row := prefetchedRow
		if !prefetched {
			row, err = f.courseGrades.Read(dbctx.Context{Ctx: ctx}, learner.ID, courseKey.String())
			if err != nil {
				return nil, err
			}
		}
		if row != nil && row.GradingPolicyHash == p.Hash() {
			return f.fromRow(learner, courseKey, row), nil
		}
	}

	if f.opts.AssumeZeroGradeIfAbsent {
		return ZeroCourseGrade(learner.ID, courseKey, p, course.Version, course.EditedOn), nil
	}
	grade, _, err := f.compute(ctx, learner, course, p, false)
	return grade, err
}

// Create computes the learner's course grade and persists it.
func (f *CourseGradeFactory) Create(ctx context.Context, learner Learner, courseKey keys.CourseKey) (*CourseGrade, error) {
	grade, _, err := f.computeForCourse(ctx, learner, courseKey, true)
	return grade, err
}

// Update recomputes and persists the course grade, reporting whether this
// write was the learner's first transition into passing.
func (f *CourseGradeFactory) Update(ctx context.Context, learner Learner, courseKey keys.CourseKey) (*CourseGrade, bool, error) {
	return f.computeForCourse(ctx, learner, courseKey, true)
}

// IterResult is one roster entry's outcome. Err is per-learner: a failed
// computation for one learner never aborts the sweep.
type IterResult struct {
	Learner         Learner
	Grade           *CourseGrade
	PassedFirstTime bool
	Err             error
}

// Iter grades a roster. The collected structure is shared through the
// pipeline cache, so only the first learner pays the collect cost. On the
// read-only sweep the persisted rows are prefetched in one query.
func (f *CourseGradeFactory) Iter(ctx context.Context, learners []Learner, courseKey keys.CourseKey, forceUpdate bool) []IterResult {
	var prefetchedRows map[uuid.UUID]*types.PersistentCourseGrade
	prefetched := false
	if !forceUpdate && f.opts.PersistGrades {
		ids := make([]uuid.UUID, 0, len(learners))
		for _, learner := range learners {
			ids = append(ids, learner.ID)
		}
		rows, err := f.courseGrades.ReadMany(dbctx.Context{Ctx: ctx}, ids, courseKey.String())
		if err != nil {
			// Fall back to per-learner reads.
			f.log.Warn("course grade prefetch failed",
				"course_id", courseKey,
				"error", err)
		} else {
			prefetchedRows = make(map[uuid.UUID]*types.PersistentCourseGrade, len(rows))
			for _, row := range rows {
				prefetchedRows[row.UserID] = row
			}
			prefetched = true
		}
	}

	out := make([]IterResult, 0, len(learners))
	for _, learner := range learners {
		var res IterResult
		res.Learner = learner
		if forceUpdate {
			res.Grade, res.PassedFirstTime, res.Err = f.Update(ctx, learner, courseKey)
		} else {
			res.Grade, res.Err = f.read(ctx, learner, courseKey, prefetchedRows[learner.ID], prefetched)
		}
		if res.Err != nil {
			f.log.Warn("course grade failed for learner",
				"course_id", courseKey,
				"learner_id", learner.ID,
				"error", res.Err)
		}
		out = append(out, res)
	}
	return out
}

func (f *CourseGradeFactory) computeForCourse(ctx context.Context, learner Learner, courseKey keys.CourseKey, persist bool) (*CourseGrade, bool, error) {
	course, err := f.store.GetCourse(ctx, courseKey)
	if err != nil {
		return nil, false, err
	}
	p, err := policy.Parse(course.GradingPolicy)
	if err != nil {
		return nil, false, err
	}
	return f.compute(ctx, learner, course, p, persist)
}

// compute runs the full per-learner pass: transform the structure, snapshot
// scores once, rebuild persisted subsection grades and compute missing
// ones, then aggregate under the policy.
func (f *CourseGradeFactory) compute(ctx context.Context, learner Learner, course *coursegraph.CourseHandle, p *policy.GradingPolicy, persist bool) (*CourseGrade, bool, error) {
	usage := &transformers.UsageInfo{LearnerID: learner.ID, CourseKey: course.Key}
	s, err := f.pipeline.GetTransformed(ctx, usage, transformers.DefaultViewNames())
	if err != nil {
		return nil, false, err
	}

	snapshot, err := f.subsections.Snapshot(ctx, learner, course.Key, s)
	if err != nil {
		return nil, false, err
	}

	var rows map[string]*types.PersistentSubsectionGrade
	if f.opts.PersistGrades {
		rows, err = f.subsections.BulkReadRows(ctx, learner, course.Key)
		if err != nil {
			return nil, false, err
		}
	}

	grade := &CourseGrade{
		LearnerID:      learner.ID,
		CourseKey:      course.Key,
		CourseVersion:  course.Version,
		CourseEditedOn: course.EditedOn,
	}
	for _, subsectionKey := range SubsectionKeysInOrder(s) {
		var sub *SubsectionGrade
		if row, ok := rows[subsectionKey.String()]; ok {
			sub, err = f.subsections.FromRow(s, row, snapshot)
		} else {
			sub, err = f.subsections.Create(ctx, learner, course, s, subsectionKey, snapshot, persist)
		}
		if err != nil {
			return nil, false, err
		}
		grade.SubsectionGrades = append(grade.SubsectionGrades, sub)
	}
	grade.Aggregate(p)

	if !persist || !f.opts.PersistGrades {
		return grade, false, nil
	}
	if f.opts.WriteOnlyIfEngaged && !grade.Attempted() {
		return grade, false, nil
	}

	row := &types.PersistentCourseGrade{
		UserID:            learner.ID,
		CourseID:          course.Key.String(),
		CourseEditedOn:    &course.EditedOn,
		CourseVersion:     course.Version,
		GradingPolicyHash: grade.PolicyHash,
		PercentGrade:      grade.Percent,
		LetterGrade:       grade.LetterGrade,
	}
	saved, passedFirstTime, err := f.courseGrades.Upsert(dbctx.Context{Ctx: ctx}, row)
	if err != nil {
		// Persistence failures degrade to a computed-only grade; the next
		// write retries.
		f.log.Error("failed to persist course grade",
			"course_id", course.Key,
			"learner_id", learner.ID,
			"error", err)
		return grade, false, nil
	}
	grade.PassedTimestamp = saved.PassedTimestamp
	return grade, passedFirstTime, nil
}

// fromRow materializes a summary-only grade from the persisted row. The
// subsection detail is omitted; callers needing it recompute.
func (f *CourseGradeFactory) fromRow(learner Learner, courseKey keys.CourseKey, row *types.PersistentCourseGrade) *CourseGrade {
	grade := &CourseGrade{
		LearnerID:       learner.ID,
		CourseKey:       courseKey,
		Percent:         row.PercentGrade,
		LetterGrade:     row.LetterGrade,
		Passed:          row.Passed(),
		PassedTimestamp: row.PassedTimestamp,
		PolicyHash:      row.GradingPolicyHash,
		CourseVersion:   row.CourseVersion,
	}
	if row.CourseEditedOn != nil {
		grade.CourseEditedOn = *row.CourseEditedOn
	}
	return grade
}

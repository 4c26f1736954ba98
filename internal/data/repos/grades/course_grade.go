package grades

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/openlearn/gradecore/internal/domain"
	"github.com/openlearn/gradecore/internal/pkg/dbctx"
	"github.com/openlearn/gradecore/internal/pkg/logger"
)

// CourseGradeRepo persists per-(learner, course) course grade rows. An
// empty grading_policy_hash marks a row stale; the read path recomputes it
// lazily.
type CourseGradeRepo interface {
	Read(dbc dbctx.Context, userID uuid.UUID, courseID string) (*types.PersistentCourseGrade, error)
	ReadMany(dbc dbctx.Context, userIDs []uuid.UUID, courseID string) ([]*types.PersistentCourseGrade, error)
	// Upsert writes the row, preserving any earlier passed_timestamp and
	// stamping it when the grade passes for the first time. The second
	// return reports that first transition.
	Upsert(dbc dbctx.Context, row *types.PersistentCourseGrade) (*types.PersistentCourseGrade, bool, error)
	MarkStaleForCourse(dbc dbctx.Context, courseID, currentPolicyHash string) error
	DeleteForLearner(dbc dbctx.Context, userID uuid.UUID, courseID string) error
	DeleteForCourse(dbc dbctx.Context, courseID string) error
}

type courseGradeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseGradeRepo(db *gorm.DB, baseLog *logger.Logger) CourseGradeRepo {
	return &courseGradeRepo{db: db, log: baseLog.With("repo", "CourseGradeRepo")}
}

func (r *courseGradeRepo) Read(dbc dbctx.Context, userID uuid.UUID, courseID string) (*types.PersistentCourseGrade, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.PersistentCourseGrade
	err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *courseGradeRepo) ReadMany(dbc dbctx.Context, userIDs []uuid.UUID, courseID string) ([]*types.PersistentCourseGrade, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PersistentCourseGrade
	if len(userIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id IN ? AND course_id = ?", userIDs, courseID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseGradeRepo) Upsert(dbc dbctx.Context, row *types.PersistentCourseGrade) (*types.PersistentCourseGrade, bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	passedFirstTime := false
	err := transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var existing types.PersistentCourseGrade
		err := tx.Where("user_id = ? AND course_id = ?", row.UserID, row.CourseID).
			First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if found {
			row.ID = existing.ID
			row.PassedTimestamp = existing.PassedTimestamp
		}
		if row.Passed() && row.PassedTimestamp == nil {
			now := time.Now().UTC()
			row.PassedTimestamp = &now
			passedFirstTime = true
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "course_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"course_edited_on", "course_version", "grading_policy_hash",
				"percent_grade", "letter_grade", "passed_timestamp", "updated_at",
			}),
		}).Create(row).Error
	})
	if err != nil {
		return nil, false, err
	}
	return row, passedFirstTime, nil
}

// MarkStaleForCourse invalidates every course grade computed under a
// policy other than the current one. Rows already matching the current
// hash stay fresh, so republishing without a policy change is a no-op.
func (r *courseGradeRepo) MarkStaleForCourse(dbc dbctx.Context, courseID, currentPolicyHash string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.PersistentCourseGrade{}).
		Where("course_id = ? AND grading_policy_hash <> ?", courseID, currentPolicyHash).
		Update("grading_policy_hash", "").Error
}

func (r *courseGradeRepo) DeleteForLearner(dbc dbctx.Context, userID uuid.UUID, courseID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&types.PersistentCourseGrade{}).Error
}

func (r *courseGradeRepo) DeleteForCourse(dbc dbctx.Context, courseID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Delete(&types.PersistentCourseGrade{}).Error
}

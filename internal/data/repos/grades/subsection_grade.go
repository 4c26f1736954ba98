package grades

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/openlearn/gradecore/internal/domain"
	"github.com/openlearn/gradecore/internal/pkg/dbctx"
	"github.com/openlearn/gradecore/internal/pkg/logger"
)

// SubsectionGradeRepo persists per-(learner, subsection) grade rows. The
// monotone only-if-higher policy is enforced inside the upsert transaction
// by re-reading the existing row and comparing before writing.
type SubsectionGradeRepo interface {
	ReadGrade(dbc dbctx.Context, userID uuid.UUID, courseID, usageKey string) (*types.PersistentSubsectionGrade, error)
	BulkReadGrades(dbc dbctx.Context, userID uuid.UUID, courseID string) ([]*types.PersistentSubsectionGrade, error)
	Upsert(dbc dbctx.Context, row *types.PersistentSubsectionGrade, onlyIfHigher bool) (*types.PersistentSubsectionGrade, error)
	DeleteForLearner(dbc dbctx.Context, userID uuid.UUID, courseID string) error
	DeleteForCourse(dbc dbctx.Context, courseID string) error
}

type subsectionGradeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubsectionGradeRepo(db *gorm.DB, baseLog *logger.Logger) SubsectionGradeRepo {
	return &subsectionGradeRepo{db: db, log: baseLog.With("repo", "SubsectionGradeRepo")}
}

func (r *subsectionGradeRepo) ReadGrade(dbc dbctx.Context, userID uuid.UUID, courseID, usageKey string) (*types.PersistentSubsectionGrade, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.PersistentSubsectionGrade
	err := transaction.WithContext(dbc.Ctx).
		Preload("VisibleBlocks").
		Preload("Override").
		Where("user_id = ? AND course_id = ? AND usage_key = ?", userID, courseID, usageKey).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *subsectionGradeRepo) BulkReadGrades(dbc dbctx.Context, userID uuid.UUID, courseID string) ([]*types.PersistentSubsectionGrade, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PersistentSubsectionGrade
	if err := transaction.WithContext(dbc.Ctx).
		Preload("VisibleBlocks").
		Preload("Override").
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *subsectionGradeRepo) Upsert(dbc dbctx.Context, row *types.PersistentSubsectionGrade, onlyIfHigher bool) (*types.PersistentSubsectionGrade, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var saved *types.PersistentSubsectionGrade
	err := transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var existing types.PersistentSubsectionGrade
		err := tx.Where("user_id = ? AND course_id = ? AND usage_key = ?", row.UserID, row.CourseID, row.UsageKey).
			First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if found {
			if onlyIfHigher && !pairHigher(row.EarnedGraded, row.PossibleGraded, existing.EarnedGraded, existing.PossibleGraded) {
				saved = &existing
				return nil
			}
			// first_attempted is set once and kept.
			if existing.FirstAttempted != nil {
				row.FirstAttempted = existing.FirstAttempted
			}
			row.ID = existing.ID
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "course_id"}, {Name: "user_id"}, {Name: "usage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"course_version", "subtree_edited_on",
				"earned_all", "possible_all", "earned_graded", "possible_graded",
				"first_attempted", "visible_blocks_hash", "updated_at",
			}),
		}).Create(row).Error; err != nil {
			return err
		}
		saved = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *subsectionGradeRepo) DeleteForLearner(dbc dbctx.Context, userID uuid.UUID, courseID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&types.PersistentSubsectionGrade{}).Error
}

func (r *subsectionGradeRepo) DeleteForCourse(dbc dbctx.Context, courseID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Delete(&types.PersistentSubsectionGrade{}).Error
}

// pairHigher orders (earned, possible) pairs lexicographically, treating
// zero as lowest. Equal pairs are not higher: the existing row is kept.
func pairHigher(newEarned, newPossible, oldEarned, oldPossible float64) bool {
	if newEarned != oldEarned {
		return newEarned > oldEarned
	}
	return newPossible > oldPossible
}

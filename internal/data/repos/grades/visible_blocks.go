package grades

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/openlearn/gradecore/internal/domain"
	"github.com/openlearn/gradecore/internal/pkg/dbctx"
	"github.com/openlearn/gradecore/internal/pkg/logger"
)

// VisibleBlocksRepo stores the content-addressed persisted-blocks records.
// Rows are immutable once written and shared across learners, so creation
// is conflict-tolerant.
type VisibleBlocksRepo interface {
	BulkGetOrCreate(dbc dbctx.Context, rows []*types.VisibleBlocks) error
	DeleteByCourse(dbc dbctx.Context, courseID string) error
}

type visibleBlocksRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVisibleBlocksRepo(db *gorm.DB, baseLog *logger.Logger) VisibleBlocksRepo {
	return &visibleBlocksRepo{db: db, log: baseLog.With("repo", "VisibleBlocksRepo")}
}

func (r *visibleBlocksRepo) BulkGetOrCreate(dbc dbctx.Context, rows []*types.VisibleBlocks) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hashed"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *visibleBlocksRepo) DeleteByCourse(dbc dbctx.Context, courseID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("course_id = ?", courseID).
		Delete(&types.VisibleBlocks{}).Error
}

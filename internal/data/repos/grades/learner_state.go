package grades

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/openlearn/gradecore/internal/domain"
	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/pkg/dbctx"
	"github.com/openlearn/gradecore/internal/pkg/logger"
	"github.com/openlearn/gradecore/internal/scores"
)

// LearnerStateRepo persists raw per-learner block state. It doubles as the
// scores.LearnerStateStore implementation for deployments where courseware
// state lives in the grading database.
type LearnerStateRepo interface {
	GetForLocationsRows(dbc dbctx.Context, userID uuid.UUID, courseID string, usageKeys []string) ([]*types.LearnerState, error)
	UpsertRow(dbc dbctx.Context, row *types.LearnerState) error
	SoftDeleteRow(dbc dbctx.Context, userID uuid.UUID, courseID, usageKey string) error

	scores.LearnerStateStore
}

type learnerStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearnerStateRepo(db *gorm.DB, baseLog *logger.Logger) LearnerStateRepo {
	return &learnerStateRepo{db: db, log: baseLog.With("repo", "LearnerStateRepo")}
}

func (r *learnerStateRepo) GetForLocationsRows(dbc dbctx.Context, userID uuid.UUID, courseID string, usageKeys []string) ([]*types.LearnerState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LearnerState
	if len(usageKeys) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ? AND usage_key IN ?", userID, courseID, usageKeys).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *learnerStateRepo) UpsertRow(dbc dbctx.Context, row *types.LearnerState) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "course_id"}, {Name: "user_id"}, {Name: "usage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"raw_earned", "raw_possible", "first_attempted", "updated_at", "deleted_at",
			}),
		}).Create(row).Error
}

func (r *learnerStateRepo) SoftDeleteRow(dbc dbctx.Context, userID uuid.UUID, courseID, usageKey string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("user_id = ? AND course_id = ? AND usage_key = ?", userID, courseID, usageKey).
		Delete(&types.LearnerState{}).Error
}

// GetForLocations implements scores.LearnerStateStore.
func (r *learnerStateRepo) GetForLocations(ctx context.Context, courseKey keys.CourseKey, learnerID uuid.UUID, blocks []keys.BlockKey) (map[keys.BlockKey]scores.StateValue, error) {
	usageKeys := make([]string, 0, len(blocks))
	for _, b := range blocks {
		usageKeys = append(usageKeys, b.String())
	}
	rows, err := r.GetForLocationsRows(dbctx.Context{Ctx: ctx}, learnerID, courseKey.String(), usageKeys)
	if err != nil {
		return nil, err
	}
	out := make(map[keys.BlockKey]scores.StateValue, len(rows))
	for _, row := range rows {
		bk, err := keys.ParseBlockKey(row.UsageKey)
		if err != nil {
			r.log.Warn("skipping learner state row with bad usage key", "usage_key", row.UsageKey, "error", err)
			continue
		}
		out[bk] = scores.StateValue{
			RawEarned:      row.RawEarned,
			RawPossible:    row.RawPossible,
			FirstAttempted: row.FirstAttempted,
		}
	}
	return out, nil
}

// UpsertState implements scores.LearnerStateStore.
func (r *learnerStateRepo) UpsertState(ctx context.Context, courseKey keys.CourseKey, learnerID uuid.UUID, block keys.BlockKey, value scores.StateValue) error {
	return r.UpsertRow(dbctx.Context{Ctx: ctx}, &types.LearnerState{
		ID:             uuid.New(),
		UserID:         learnerID,
		CourseID:       courseKey.String(),
		UsageKey:       block.String(),
		RawEarned:      value.RawEarned,
		RawPossible:    value.RawPossible,
		FirstAttempted: value.FirstAttempted,
	})
}

// DeleteState implements scores.LearnerStateStore.
func (r *learnerStateRepo) DeleteState(ctx context.Context, courseKey keys.CourseKey, learnerID uuid.UUID, block keys.BlockKey) error {
	return r.SoftDeleteRow(dbctx.Context{Ctx: ctx}, learnerID, courseKey.String(), block.String())
}

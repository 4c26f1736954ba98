package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/openlearn/gradecore/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Shared visible-blocks records first; grades reference them.
		&types.VisibleBlocks{},

		// Per-learner persisted grades.
		&types.PersistentSubsectionGrade{},
		&types.PersistentSubsectionGradeOverride{},
		&types.PersistentCourseGrade{},

		// Raw courseware state consumed by the score resolver.
		&types.LearnerState{},
	)
}

func EnsureGradeIndexes(db *gorm.DB) error {
	// uuid-ossp is already enabled in NewPostgresService, but safe to re-run
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("enable uuid-ossp: %w", err)
	}
	// Stale-grade sweeps select on the empty policy-hash sentinel per course.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_course_grade_stale
		ON grades_course_grade (course_id)
		WHERE grading_policy_hash = '';
	`).Error; err != nil {
		return fmt.Errorf("create idx_course_grade_stale: %w", err)
	}
	// Passed-learner reporting per course.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_course_grade_passed
		ON grades_course_grade (course_id, passed_timestamp)
		WHERE passed_timestamp IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_course_grade_passed: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureGradeIndexes(s.db); err != nil {
		s.log.Error("Grade index migration failed", "error", err)
		return err
	}
	return nil
}

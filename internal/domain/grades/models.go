package grades

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VisibleBlocks tracks the set of scorable blocks under a subsection at the
// time they were used for a grade calculation. Rows are content-addressed by
// the hash of the canonical JSON and shared across learners.
type VisibleBlocks struct {
	Hashed     string         `gorm:"column:hashed;primaryKey;size:100" json:"hashed"`
	BlocksJSON datatypes.JSON `gorm:"column:blocks_json;type:jsonb;not null" json:"blocks_json"`
	CourseID   string         `gorm:"column:course_id;not null;index" json:"course_id"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (VisibleBlocks) TableName() string { return "grades_visible_blocks" }

// BlockRecordList decodes the stored canonical JSON.
func (v *VisibleBlocks) BlockRecordList() (BlockRecordList, error) {
	return BlockRecordListFromJSON([]byte(v.BlocksJSON))
}

// PersistentSubsectionGrade is one learner's persisted grade for one
// subsection, pinned to the visible blocks that produced it.
type PersistentSubsectionGrade struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index:idx_subsection_grade,unique,priority:2;index:idx_subsection_grade_attempted,priority:3" json:"user_id"`
	CourseID string    `gorm:"column:course_id;not null;index:idx_subsection_grade,unique,priority:1;index:idx_subsection_grade_attempted,priority:2" json:"course_id"`
	UsageKey string    `gorm:"column:usage_key;not null;index:idx_subsection_grade,unique,priority:3" json:"usage_key"`

	// Content state at calculation time.
	CourseVersion   string     `gorm:"column:course_version;size:255" json:"course_version"`
	SubtreeEditedOn *time.Time `gorm:"column:subtree_edited_on" json:"subtree_edited_on,omitempty"`

	// earned/possible over every scorable descendant vs. graded ones only.
	EarnedAll      float64 `gorm:"column:earned_all;not null" json:"earned_all"`
	PossibleAll    float64 `gorm:"column:possible_all;not null" json:"possible_all"`
	EarnedGraded   float64 `gorm:"column:earned_graded;not null" json:"earned_graded"`
	PossibleGraded float64 `gorm:"column:possible_graded;not null" json:"possible_graded"`

	// Nil means the learner has never attempted content in this subsection.
	FirstAttempted *time.Time `gorm:"column:first_attempted;index:idx_subsection_grade_attempted,priority:1" json:"first_attempted,omitempty"`

	VisibleBlocksHash string         `gorm:"column:visible_blocks_hash;not null;index" json:"visible_blocks_hash"`
	VisibleBlocks     *VisibleBlocks `gorm:"foreignKey:VisibleBlocksHash;references:Hashed;constraint:OnDelete:CASCADE" json:"visible_blocks,omitempty"`

	Override *PersistentSubsectionGradeOverride `gorm:"foreignKey:GradeID;references:ID" json:"override,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PersistentSubsectionGrade) TableName() string { return "grades_subsection_grade" }

// PersistentSubsectionGradeOverride replaces the computed totals of its
// parent grade for whichever fields are non-nil.
type PersistentSubsectionGradeOverride struct {
	ID      uuid.UUID                  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GradeID uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex" json:"grade_id"`
	Grade   *PersistentSubsectionGrade `gorm:"constraint:OnDelete:CASCADE;foreignKey:GradeID;references:ID" json:"grade,omitempty"`

	EarnedAllOverride      *float64 `gorm:"column:earned_all_override" json:"earned_all_override,omitempty"`
	PossibleAllOverride    *float64 `gorm:"column:possible_all_override" json:"possible_all_override,omitempty"`
	EarnedGradedOverride   *float64 `gorm:"column:earned_graded_override" json:"earned_graded_override,omitempty"`
	PossibleGradedOverride *float64 `gorm:"column:possible_graded_override" json:"possible_graded_override,omitempty"`

	// Which system wrote the override, and why.
	System         string `gorm:"column:system;size:100" json:"system,omitempty"`
	OverrideReason string `gorm:"column:override_reason;size:300" json:"override_reason,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (PersistentSubsectionGradeOverride) TableName() string {
	return "grades_subsection_grade_override"
}

// PersistentCourseGrade is one learner's persisted course-level grade.
// An empty GradingPolicyHash marks the row stale for lazy recompute.
type PersistentCourseGrade struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index;index:idx_course_grade,unique,priority:2" json:"user_id"`
	CourseID string    `gorm:"column:course_id;not null;index:idx_course_grade,unique,priority:1" json:"course_id"`

	CourseEditedOn    *time.Time `gorm:"column:course_edited_on" json:"course_edited_on,omitempty"`
	CourseVersion     string     `gorm:"column:course_version;size:255" json:"course_version"`
	GradingPolicyHash string     `gorm:"column:grading_policy_hash;size:255" json:"grading_policy_hash"`

	PercentGrade float64 `gorm:"column:percent_grade;not null" json:"percent_grade"`
	LetterGrade  string  `gorm:"column:letter_grade;size:255" json:"letter_grade"`

	// Set once, the first time the learner earns a passing grade.
	PassedTimestamp *time.Time `gorm:"column:passed_timestamp;index" json:"passed_timestamp,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (PersistentCourseGrade) TableName() string { return "grades_course_grade" }

// Passed mirrors the aggregator's rule: a non-empty letter grade passes.
func (g *PersistentCourseGrade) Passed() bool { return g.LetterGrade != "" }

// LearnerState is the per-learner raw score for one scorable block, written
// by the courseware runtime and read by the score resolver.
type LearnerState struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_state,unique,priority:2" json:"user_id"`
	CourseID string    `gorm:"column:course_id;not null;index:idx_learner_state,unique,priority:1" json:"course_id"`
	UsageKey string    `gorm:"column:usage_key;not null;index:idx_learner_state,unique,priority:3" json:"usage_key"`

	RawEarned   float64  `gorm:"column:raw_earned;not null" json:"raw_earned"`
	RawPossible *float64 `gorm:"column:raw_possible" json:"raw_possible,omitempty"`

	FirstAttempted *time.Time `gorm:"column:first_attempted" json:"first_attempted,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (LearnerState) TableName() string { return "grades_learner_state" }

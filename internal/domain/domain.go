package domain

import (
	"github.com/openlearn/gradecore/internal/domain/grades"
	"github.com/openlearn/gradecore/internal/domain/keys"
)

type CourseKey = keys.CourseKey
type BlockKey = keys.BlockKey

type BlockRecord = grades.BlockRecord
type BlockRecordList = grades.BlockRecordList
type VisibleBlocks = grades.VisibleBlocks
type PersistentSubsectionGrade = grades.PersistentSubsectionGrade
type PersistentSubsectionGradeOverride = grades.PersistentSubsectionGradeOverride
type PersistentCourseGrade = grades.PersistentCourseGrade
type LearnerState = grades.LearnerState

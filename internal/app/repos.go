package app

import (
	"gorm.io/gorm"

	repos "github.com/openlearn/gradecore/internal/data/repos/grades"
	"github.com/openlearn/gradecore/internal/pkg/logger"
)

type Repos struct {
	VisibleBlocks   repos.VisibleBlocksRepo
	SubsectionGrade repos.SubsectionGradeRepo
	CourseGrade     repos.CourseGradeRepo
	LearnerState    repos.LearnerStateRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		VisibleBlocks:   repos.NewVisibleBlocksRepo(db, log),
		SubsectionGrade: repos.NewSubsectionGradeRepo(db, log),
		CourseGrade:     repos.NewCourseGradeRepo(db, log),
		LearnerState:    repos.NewLearnerStateRepo(db, log),
	}
}

package app

import (
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/coursegraph"
	"github.com/openlearn/gradecore/internal/events"
	"github.com/openlearn/gradecore/internal/grading"
	"github.com/openlearn/gradecore/internal/pkg/logger"
	"github.com/openlearn/gradecore/internal/scores"
	"github.com/openlearn/gradecore/internal/services"
	"github.com/openlearn/gradecore/internal/transformers"
)

type Services struct {
	Pipeline  *transformers.Pipeline
	Grades    *services.GradesService
	Bus       *events.Bus
	Publisher events.Publisher
}

func wireServices(
	cfg Config,
	log *logger.Logger,
	reposet Repos,
	store coursegraph.BlockStore,
	submissions scores.SubmissionsStore,
) (Services, error) {
	log.Info("Wiring services...")

	var cache blockstructure.Cache
	var publisher events.Publisher
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:        cfg.RedisAddr,
			DialTimeout: 5 * time.Second,
		})
		cache = blockstructure.NewRedisCache(rdb, cfg.StructureCacheTTL, log)
		p, err := events.NewRedisPublisher(log)
		if err != nil {
			return Services{}, err
		}
		publisher = p
	} else {
		log.Warn("REDIS_ADDR not set; using in-process structure cache and dropping notifications")
		cache = blockstructure.NewMemCache()
		publisher = events.NopPublisher{}
	}

	pipeline := transformers.NewPipeline(store, cache, transformers.NewDefaultRegistry(), log)

	subsectionFactory := grading.NewSubsectionGradeFactory(
		reposet.SubsectionGrade,
		reposet.VisibleBlocks,
		submissions,
		reposet.LearnerState,
		cfg.Grading,
		log,
	)
	courseFactory := grading.NewCourseGradeFactory(
		pipeline,
		store,
		reposet.CourseGrade,
		subsectionFactory,
		cfg.Grading,
		log,
	)

	gradesService := services.NewGradesService(
		pipeline,
		store,
		reposet.LearnerState,
		courseFactory,
		subsectionFactory,
		reposet.CourseGrade,
		reposet.SubsectionGrade,
		reposet.VisibleBlocks,
		publisher,
		cfg.Grading,
		log,
	)

	bus := events.NewBus(gradesService, log)

	return Services{
		Pipeline:  pipeline,
		Grades:    gradesService,
		Bus:       bus,
		Publisher: publisher,
	}, nil
}

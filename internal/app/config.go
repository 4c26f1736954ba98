package app

import (
	"time"

	"github.com/openlearn/gradecore/internal/grading"
	"github.com/openlearn/gradecore/internal/pkg/logger"
	"github.com/openlearn/gradecore/internal/utils"
)

type Config struct {
	RedisAddr         string
	StructureCacheTTL time.Duration
	Grading           grading.Options
}

func LoadConfig(log *logger.Logger) Config {
	redisAddr := utils.GetEnv("REDIS_ADDR", "", log)
	cacheTTLSeconds := utils.GetEnvAsInt("STRUCTURE_CACHE_TTL", 86400, log)
	persistGrades := utils.GetEnvAsBool("PERSIST_GRADES", true, log)
	writeOnlyIfEngaged := utils.GetEnvAsBool("WRITE_ONLY_IF_ENGAGED", true, log)
	assumeZero := utils.GetEnvAsBool("ASSUME_ZERO_GRADE_IF_ABSENT", false, log)
	return Config{
		RedisAddr:         redisAddr,
		StructureCacheTTL: time.Duration(cacheTTLSeconds) * time.Second,
		Grading: grading.Options{
			PersistGrades:           persistGrades,
			WriteOnlyIfEngaged:      writeOnlyIfEngaged,
			AssumeZeroGradeIfAbsent: assumeZero,
		},
	}
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/pkg/logger"
)

// Outbound notification names.
const (
	CourseGradeChanged         = "course_grade_changed"
	CourseGradePassedFirstTime = "course_grade_passed_first_time"
)

// GradeNotification is the payload published to downstream consumers
// (certificates, credentials, analytics) whenever a persisted course grade
// changes.
type GradeNotification struct {
	Name            string         `json:"name"`
	LearnerID       uuid.UUID      `json:"learner_id"`
	CourseKey       keys.CourseKey `json:"course_key"`
	PercentGrade    float64        `json:"percent_grade"`
	LetterGrade     string         `json:"letter_grade"`
	PassedTimestamp *time.Time     `json:"passed_timestamp,omitempty"`
	EmittedAt       time.Time      `json:"emitted_at"`
}

// Publisher is the outbound side of the grading core.
type Publisher interface {
	Publish(ctx context.Context, n GradeNotification) error
	Close() error
}

type redisPublisher struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher connects to REDIS_ADDR and publishes notifications on
// REDIS_GRADES_CHANNEL (default "grades").
func NewRedisPublisher(log *logger.Logger) (Publisher, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_GRADES_CHANNEL"))
	if ch == "" {
		ch = "grades"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisPublisher{
		log:     log.With("service", "RedisGradePublisher"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (p *redisPublisher) Publish(ctx context.Context, n GradeNotification) error {
	if n.EmittedAt.IsZero() {
		n.EmittedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

func (p *redisPublisher) Close() error {
	return p.rdb.Close()
}

// NopPublisher drops notifications; used when no broker is configured and
// in tests that do not assert on them.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, GradeNotification) error { return nil }
func (NopPublisher) Close() error                                     { return nil }

// MemPublisher records notifications for assertions.
type MemPublisher struct {
	Notifications []GradeNotification
}

func (p *MemPublisher) Publish(_ context.Context, n GradeNotification) error {
	p.Notifications = append(p.Notifications, n)
	return nil
}

func (p *MemPublisher) Close() error { return nil }

// Package events carries the inbound score/content signals into the
// grading core and the outbound grade-change notifications out of it.
// Inbound dispatch is synchronous: a handler error is returned to the
// emitter, and signals for the same (learner, course) pair never run
// concurrently.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/gradecore/internal/domain/keys"
	"github.com/openlearn/gradecore/internal/pkg/logger"
)

// ScoreSet is emitted after a learner's score on a problem block changes.
type ScoreSet struct {
	LearnerID          uuid.UUID      `json:"learner_id"`
	LearnerAnonymousID string         `json:"learner_anonymous_id"`
	CourseKey          keys.CourseKey `json:"course_key"`
	BlockKey           keys.BlockKey  `json:"block_key"`
	RawEarned          float64        `json:"raw_earned"`
	RawPossible        float64        `json:"raw_possible"`
	// OnlyIfHigher requests the monotone persistence policy, as grade
	// overrides and rejected resubmissions do.
	OnlyIfHigher bool      `json:"only_if_higher"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// ScoreReset is emitted after a learner's attempts on a block are deleted.
type ScoreReset struct {
	LearnerID          uuid.UUID      `json:"learner_id"`
	LearnerAnonymousID string         `json:"learner_anonymous_id"`
	CourseKey          keys.CourseKey `json:"course_key"`
	BlockKey           keys.BlockKey  `json:"block_key"`
}

// CoursePublished is emitted after a course's content is (re)published.
type CoursePublished struct {
	CourseKey keys.CourseKey `json:"course_key"`
}

// CourseDeleted is emitted after a course is removed entirely.
type CourseDeleted struct {
	CourseKey keys.CourseKey `json:"course_key"`
}

// Handler is the receiving side, implemented by the grades service.
type Handler interface {
	HandleScoreSet(ctx context.Context, sig ScoreSet) error
	HandleScoreReset(ctx context.Context, sig ScoreReset) error
	HandleCoursePublished(ctx context.Context, sig CoursePublished) error
	HandleCourseDeleted(ctx context.Context, sig CourseDeleted) error
}

// Bus serializes signal delivery per (learner, course) pair so two score
// events for the same learner cannot interleave their read-modify-write
// cycles, while distinct learners proceed in parallel.
type Bus struct {
	handler Handler
	log     *logger.Logger

	mu    sync.Mutex
	locks map[pairKey]*sync.Mutex
}

type pairKey struct {
	learnerID uuid.UUID
	courseKey keys.CourseKey
}

func NewBus(handler Handler, baseLog *logger.Logger) *Bus {
	return &Bus{
		handler: handler,
		log:     baseLog.With("service", "EventBus"),
		locks:   map[pairKey]*sync.Mutex{},
	}
}

func (b *Bus) pairLock(learnerID uuid.UUID, courseKey keys.CourseKey) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := pairKey{learnerID, courseKey}
	l, ok := b.locks[key]
	if !ok {
		l = &sync.Mutex{}
		b.locks[key] = l
	}
	return l
}

// EmitScoreSet delivers the signal synchronously; the error is the
// handler's.
func (b *Bus) EmitScoreSet(ctx context.Context, sig ScoreSet) error {
	l := b.pairLock(sig.LearnerID, sig.CourseKey)
	l.Lock()
	defer l.Unlock()
	return b.handler.HandleScoreSet(ctx, sig)
}

func (b *Bus) EmitScoreReset(ctx context.Context, sig ScoreReset) error {
	l := b.pairLock(sig.LearnerID, sig.CourseKey)
	l.Lock()
	defer l.Unlock()
	return b.handler.HandleScoreReset(ctx, sig)
}

// EmitCoursePublished has no learner scope; course-wide signals take no
// pair lock and rely on the handler's own idempotence.
func (b *Bus) EmitCoursePublished(ctx context.Context, sig CoursePublished) error {
	return b.handler.HandleCoursePublished(ctx, sig)
}

func (b *Bus) EmitCourseDeleted(ctx context.Context, sig CourseDeleted) error {
	return b.handler.HandleCourseDeleted(ctx, sig)
}

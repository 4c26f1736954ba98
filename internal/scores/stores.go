package scores

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/openlearn/gradecore/internal/domain/keys"
)

// SubmissionsStore is the external submissions service, consulted by
// anonymous learner id. Keys of the returned snapshot are block key
// strings.
type SubmissionsStore interface {
	GetScores(ctx context.Context, courseKey keys.CourseKey, learnerAnonymousID string) (map[string]SubmissionValue, error)
}

// LearnerStateStore is the per-learner courseware state service.
type LearnerStateStore interface {
	GetForLocations(ctx context.Context, courseKey keys.CourseKey, learnerID uuid.UUID, blocks []keys.BlockKey) (map[keys.BlockKey]StateValue, error)
	UpsertState(ctx context.Context, courseKey keys.CourseKey, learnerID uuid.UUID, block keys.BlockKey, value StateValue) error
	DeleteState(ctx context.Context, courseKey keys.CourseKey, learnerID uuid.UUID, block keys.BlockKey) error
}

// MemSubmissionsStore is an in-memory SubmissionsStore for tests and
// single-node runs.
type MemSubmissionsStore struct {
	mu     sync.RWMutex
	scores map[string]map[string]SubmissionValue // anonymousID -> blockKeyStr -> value
}

func NewMemSubmissionsStore() *MemSubmissionsStore {
	return &MemSubmissionsStore{scores: map[string]map[string]SubmissionValue{}}
}

func (s *MemSubmissionsStore) Put(learnerAnonymousID string, block keys.BlockKey, value SubmissionValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.scores[learnerAnonymousID]
	if !ok {
		m = map[string]SubmissionValue{}
		s.scores[learnerAnonymousID] = m
	}
	m[block.String()] = value
}

func (s *MemSubmissionsStore) GetScores(_ context.Context, _ keys.CourseKey, learnerAnonymousID string) (map[string]SubmissionValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SubmissionValue, len(s.scores[learnerAnonymousID]))
	for k, v := range s.scores[learnerAnonymousID] {
		out[k] = v
	}
	return out, nil
}

// MemLearnerStateStore is an in-memory LearnerStateStore.
type MemLearnerStateStore struct {
	mu    sync.RWMutex
	state map[uuid.UUID]map[keys.BlockKey]StateValue
}

func NewMemLearnerStateStore() *MemLearnerStateStore {
	return &MemLearnerStateStore{state: map[uuid.UUID]map[keys.BlockKey]StateValue{}}
}

func (s *MemLearnerStateStore) GetForLocations(_ context.Context, _ keys.CourseKey, learnerID uuid.UUID, blocks []keys.BlockKey) (map[keys.BlockKey]StateValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[keys.BlockKey]StateValue{}
	for _, b := range blocks {
		if v, ok := s.state[learnerID][b]; ok {
			out[b] = v
		}
	}
	return out, nil
}

func (s *MemLearnerStateStore) UpsertState(_ context.Context, _ keys.CourseKey, learnerID uuid.UUID, block keys.BlockKey, value StateValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.state[learnerID]
	if !ok {
		m = map[keys.BlockKey]StateValue{}
		s.state[learnerID] = m
	}
	m[block] = value
	return nil
}

// DeleteState clears one block's state, as a score reset does.
func (s *MemLearnerStateStore) DeleteState(_ context.Context, _ keys.CourseKey, learnerID uuid.UUID, block keys.BlockKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state[learnerID], block)
	return nil
}

package coursegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/openlearn/gradecore/internal/domain/keys"
	pkgerrors "github.com/openlearn/gradecore/internal/pkg/errors"
)

// MemStore is an in-memory BlockStore. It backs the test suites and any
// deployment that receives course snapshots over the wire instead of owning
// a content database. Publish bumps the course version the way the content
// service does on republish.
type MemStore struct {
	mu      sync.RWMutex
	courses map[keys.CourseKey]*memCourse
}

type memCourse struct {
	handle CourseHandle
	blocks map[keys.BlockKey]*BlockHandle
	pubSeq int
}

func NewMemStore() *MemStore {
	return &MemStore{courses: map[keys.CourseKey]*memCourse{}}
}

// PutCourse registers (or replaces) a course with the given root block and
// grading policy document.
func (s *MemStore) PutCourse(courseKey keys.CourseKey, root keys.BlockKey, gradingPolicy json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &memCourse{
		handle: CourseHandle{
			Key:           courseKey,
			Root:          root,
			GradingPolicy: gradingPolicy,
			Version:       "v1",
			EditedOn:      time.Now().UTC(),
		},
		blocks: map[keys.BlockKey]*BlockHandle{},
		pubSeq: 1,
	}
	c.blocks[root] = &BlockHandle{Key: root, BlockType: root.Type, Fields: map[string]interface{}{}}
	s.courses[courseKey] = c
}

// SetGradingPolicy swaps the course's grading policy document and bumps the
// edit metadata, as a policy change in the authoring tool would.
func (s *MemStore) SetGradingPolicy(courseKey keys.CourseKey, gradingPolicy json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[courseKey]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrCourseNotFound, courseKey)
	}
	c.handle.GradingPolicy = gradingPolicy
	c.bumpVersion()
	return nil
}

// AddBlock attaches a new block under parent with the given dynamic fields.
func (s *MemStore) AddBlock(parent, child keys.BlockKey, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[child.Course]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrCourseNotFound, child.Course)
	}
	p, ok := c.blocks[parent]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrBlockNotFound, parent)
	}
	b, ok := c.blocks[child]
	if !ok {
		if fields == nil {
			fields = map[string]interface{}{}
		}
		b = &BlockHandle{Key: child, BlockType: child.Type, Fields: fields}
		c.blocks[child] = b
	} else if fields != nil {
		for k, v := range fields {
			b.Fields[k] = v
		}
	}
	p.Children = append(p.Children, child)
	b.Parents = append(b.Parents, parent)
	c.bumpVersion()
	return nil
}

// SetField updates one dynamic field on an existing block.
func (s *MemStore) SetField(blockKey keys.BlockKey, name string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[blockKey.Course]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrCourseNotFound, blockKey.Course)
	}
	b, ok := c.blocks[blockKey]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrBlockNotFound, blockKey)
	}
	b.Fields[name] = value
	c.bumpVersion()
	return nil
}

// RemoveBlock detaches a block (and orphans its subtree) from the course.
func (s *MemStore) RemoveBlock(blockKey keys.BlockKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[blockKey.Course]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrCourseNotFound, blockKey.Course)
	}
	b, ok := c.blocks[blockKey]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrBlockNotFound, blockKey)
	}
	for _, pk := range b.Parents {
		if p, ok := c.blocks[pk]; ok {
			p.Children = removeKey(p.Children, blockKey)
		}
	}
	delete(c.blocks, blockKey)
	c.bumpVersion()
	return nil
}

func (c *memCourse) bumpVersion() {
	c.pubSeq++
	c.handle.Version = "v" + strconv.Itoa(c.pubSeq)
	c.handle.EditedOn = time.Now().UTC()
}

func (s *MemStore) GetCourse(_ context.Context, courseKey keys.CourseKey) (*CourseHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[courseKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrCourseNotFound, courseKey)
	}
	handle := c.handle
	return &handle, nil
}

func (s *MemStore) GetBlock(_ context.Context, blockKey keys.BlockKey) (*BlockHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[blockKey.Course]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrCourseNotFound, blockKey.Course)
	}
	b, ok := c.blocks[blockKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrBlockNotFound, blockKey)
	}
	return copyHandle(b), nil
}

func (s *MemStore) BulkLoad(_ context.Context, courseKey keys.CourseKey) ([]*BlockHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[courseKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrCourseNotFound, courseKey)
	}
	out := make([]*BlockHandle, 0, len(c.blocks))
	for _, b := range c.blocks {
		out = append(out, copyHandle(b))
	}
	return out, nil
}

func copyHandle(b *BlockHandle) *BlockHandle {
	fields := make(map[string]interface{}, len(b.Fields))
	for k, v := range b.Fields {
		fields[k] = v
	}
	return &BlockHandle{
		Key:       b.Key,
		BlockType: b.BlockType,
		Children:  append([]keys.BlockKey(nil), b.Children...),
		Parents:   append([]keys.BlockKey(nil), b.Parents...),
		Fields:    fields,
	}
}

func removeKey(list []keys.BlockKey, key keys.BlockKey) []keys.BlockKey {
	out := list[:0]
	for _, k := range list {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}

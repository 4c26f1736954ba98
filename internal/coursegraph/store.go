// Package coursegraph is the read-only adapter between the grading core and
// the course content store. The core sees content through CourseHandle and
// BlockHandle values only; it never talks to the authoring stack.
package coursegraph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openlearn/gradecore/internal/domain/keys"
)

// Well-known block field names consumed by the built-in transformers.
const (
	FieldDisplayName    = "display_name"
	FieldFormat         = "format"
	FieldDue            = "due"
	FieldStart          = "start"
	FieldGraded         = "graded"
	FieldWeight         = "weight"
	FieldMaxScore       = "max_score"
	FieldHasScore       = "has_score"
	FieldVisibleToStaff = "visible_to_staff_only"
	FieldUserPartitions = "group_access"
)

// CourseHandle is the course-level view the grading core needs: the grading
// policy document plus enough versioning metadata for staleness checks.
type CourseHandle struct {
	Key           keys.CourseKey
	Root          keys.BlockKey
	GradingPolicy json.RawMessage
	SelfPaced     bool
	End           *time.Time
	Version       string
	EditedOn      time.Time
}

// BlockHandle exposes one content block: its type, relations, and a dynamic
// field bag. Field values are whatever the content store put there; callers
// use the typed getters.
type BlockHandle struct {
	Key       keys.BlockKey
	BlockType string
	Children  []keys.BlockKey
	Parents   []keys.BlockKey
	Fields    map[string]interface{}
}

// GetField returns the named field value, or nil when unset.
func (b *BlockHandle) GetField(name string) interface{} {
	if b.Fields == nil {
		return nil
	}
	return b.Fields[name]
}

// FloatField returns the named field as a float64 if present and numeric.
func (b *BlockHandle) FloatField(name string) (float64, bool) {
	switch v := b.GetField(name).(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// BoolField returns the named field as a bool if present.
func (b *BlockHandle) BoolField(name string) (bool, bool) {
	v, ok := b.GetField(name).(bool)
	return v, ok
}

// TimeField returns the named field as a time.Time if present.
func (b *BlockHandle) TimeField(name string) (time.Time, bool) {
	v, ok := b.GetField(name).(time.Time)
	return v, ok
}

// StringField returns the named field as a string if present.
func (b *BlockHandle) StringField(name string) (string, bool) {
	v, ok := b.GetField(name).(string)
	return v, ok
}

// BlockStore is the capability set the grading core consumes. GetBlock may
// fail with pkg/errors.ErrBlockNotFound (recoverable, skip the block);
// GetCourse and BulkLoad may fail with ErrCourseNotFound (fatal for the
// operation). No other error kinds are tolerated by the core.
type BlockStore interface {
	GetCourse(ctx context.Context, courseKey keys.CourseKey) (*CourseHandle, error)
	GetBlock(ctx context.Context, blockKey keys.BlockKey) (*BlockHandle, error)
	BulkLoad(ctx context.Context, courseKey keys.CourseKey) ([]*BlockHandle, error)
}

package keys

import (
	"fmt"
	"strings"

	pkgerrors "github.com/openlearn/gradecore/internal/pkg/errors"
)

const (
	courseKeyPrefix = "course-v1:"
	blockKeyPrefix  = "block-v1:"
)

// CourseKey identifies one course run, e.g. "course-v1:OpenLearn+CS101+2026".
type CourseKey string

func (c CourseKey) String() string { return string(c) }

// Suffix returns the org+course+run portion without the scheme prefix.
func (c CourseKey) Suffix() string {
	return strings.TrimPrefix(string(c), courseKeyPrefix)
}

// ParseCourseKey validates the scheme prefix and the three-part suffix.
func ParseCourseKey(s string) (CourseKey, error) {
	if !strings.HasPrefix(s, courseKeyPrefix) {
		return "", fmt.Errorf("%w: course key %q missing %q prefix", pkgerrors.ErrInvalidArgument, s, courseKeyPrefix)
	}
	suffix := strings.TrimPrefix(s, courseKeyPrefix)
	if parts := strings.Split(suffix, "+"); len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("%w: course key %q must be org+course+run", pkgerrors.ErrInvalidArgument, s)
	}
	return CourseKey(s), nil
}

// BlockKey identifies one content block inside a course. It is comparable
// and therefore usable as a map key; textual form is
// "block-v1:<org>+<course>+<run>+type@<type>+block@<id>".
type BlockKey struct {
	Course CourseKey
	Type   string
	ID     string
}

func NewBlockKey(course CourseKey, blockType, id string) BlockKey {
	return BlockKey{Course: course, Type: blockType, ID: id}
}

func (b BlockKey) String() string {
	return fmt.Sprintf("%s%s+type@%s+block@%s", blockKeyPrefix, b.Course.Suffix(), b.Type, b.ID)
}

// IsZero reports whether the key is the zero value.
func (b BlockKey) IsZero() bool {
	return b.Course == "" && b.Type == "" && b.ID == ""
}

// ParseBlockKey is the inverse of BlockKey.String.
func ParseBlockKey(s string) (BlockKey, error) {
	if !strings.HasPrefix(s, blockKeyPrefix) {
		return BlockKey{}, fmt.Errorf("%w: block key %q missing %q prefix", pkgerrors.ErrInvalidArgument, s, blockKeyPrefix)
	}
	rest := strings.TrimPrefix(s, blockKeyPrefix)
	parts := strings.Split(rest, "+")
	if len(parts) != 5 {
		return BlockKey{}, fmt.Errorf("%w: block key %q has %d segments, want 5", pkgerrors.ErrInvalidArgument, s, len(parts))
	}
	typePart, blockPart := parts[3], parts[4]
	if !strings.HasPrefix(typePart, "type@") || !strings.HasPrefix(blockPart, "block@") {
		return BlockKey{}, fmt.Errorf("%w: block key %q missing type@/block@ segments", pkgerrors.ErrInvalidArgument, s)
	}
	course, err := ParseCourseKey(courseKeyPrefix + strings.Join(parts[:3], "+"))
	if err != nil {
		return BlockKey{}, err
	}
	bk := BlockKey{
		Course: course,
		Type:   strings.TrimPrefix(typePart, "type@"),
		ID:     strings.TrimPrefix(blockPart, "block@"),
	}
	if bk.Type == "" || bk.ID == "" {
		return BlockKey{}, fmt.Errorf("%w: block key %q has empty type or id", pkgerrors.ErrInvalidArgument, s)
	}
	return bk, nil
}

// MarshalText lets BlockKey round-trip through JSON map keys and columns.
func (b BlockKey) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *BlockKey) UnmarshalText(text []byte) error {
	parsed, err := ParseBlockKey(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

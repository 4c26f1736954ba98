// Package transformers implements the two-phase pipeline that turns the raw
// course graph into a per-learner block structure: an expensive, cacheable
// collect phase over the whole course, and a cheap per-learner transform
// phase that mutates a loaded structure.
package transformers

import (
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/domain/keys"
)

// UsageInfo identifies whose view of the course the transform phase is
// producing.
type UsageInfo struct {
	LearnerID      uuid.UUID
	CourseKey      keys.CourseKey
	HasStaffAccess bool
	// Groups maps user-partition name to the learner's group within it.
	Groups map[string]int
	// Now anchors release-date checks; the zero value means time.Now.
	Now time.Time
}

func (u *UsageInfo) now() time.Time {
	if u.Now.IsZero() {
		return time.Now().UTC()
	}
	return u.Now
}

// Transformer is one pluggable stage of the pipeline.
//
// Collect runs once per course against the full structure; it may only read
// previously materialized block fields and write into its own data slots.
// Transform runs per learner against a loaded structure; it may mutate the
// structure (including removing blocks) and read collected data, but must
// never touch the content store.
type Transformer interface {
	// Name is stable across versions and used as the data-slot key.
	Name() string
	// Version stamps collected data; bumping it invalidates cached
	// structures collected by earlier versions. Must be positive.
	Version() int
	// RequiredFields lists the block fields the transformer needs
	// materialized before Collect runs.
	RequiredFields() []string

	Collect(s *blockstructure.BlockStructure) error
	Transform(usage *UsageInfo, s *blockstructure.BlockStructure) error
}

package grades

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/openlearn/gradecore/internal/domain/keys"
)

// blockRecordListVersion tags the serialized form so the layout can evolve.
const blockRecordListVersion = 1

// BlockRecord captures one scorable block at the time it was used in a
// grade calculation. Weight is nil when the block declares none.
type BlockRecord struct {
	Graded      bool          `json:"graded"`
	Locator     keys.BlockKey `json:"locator"`
	RawPossible *float64      `json:"raw_possible"`
	Weight      *float64      `json:"weight"`
}

// BlockRecordList is an immutable ordered list of BlockRecords with a
// content-addressed hash. Persisted subsection grades reference the list by
// hash so later content edits cannot retroactively alter a finalized grade.
type BlockRecordList struct {
	Blocks    []BlockRecord
	CourseKey keys.CourseKey
	Version   int

	jsonValue []byte
	hashValue string
}

type blockRecordListJSON struct {
	Blocks    []BlockRecord `json:"blocks"`
	CourseKey string        `json:"course_key"`
	Version   int           `json:"version"`
}

// NewBlockRecordList canonicalizes the given records for course_key.
func NewBlockRecordList(blocks []BlockRecord, courseKey keys.CourseKey) BlockRecordList {
	return BlockRecordList{
		Blocks:    blocks,
		CourseKey: courseKey,
		Version:   blockRecordListVersion,
	}
}

// JSONValue returns the canonical JSON form (stable field order, compact
// separators). Memoized on first call.
func (l *BlockRecordList) JSONValue() ([]byte, error) {
	if l.jsonValue != nil {
		return l.jsonValue, nil
	}
	blocks := l.Blocks
	if blocks == nil {
		blocks = []BlockRecord{}
	}
	version := l.Version
	if version == 0 {
		version = blockRecordListVersion
	}
	raw, err := json.Marshal(blockRecordListJSON{
		Blocks:    blocks,
		CourseKey: l.CourseKey.String(),
		Version:   version,
	})
	if err != nil {
		return nil, fmt.Errorf("serialize block record list: %w", err)
	}
	l.jsonValue = raw
	return raw, nil
}

// HashValue returns a base64-encoded sha1 digest of the canonical JSON.
func (l *BlockRecordList) HashValue() (string, error) {
	if l.hashValue != "" {
		return l.hashValue, nil
	}
	raw, err := l.JSONValue()
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(raw)
	l.hashValue = base64.StdEncoding.EncodeToString(sum[:])
	return l.hashValue, nil
}

// BlockRecordListFromJSON is the inverse of JSONValue.
func BlockRecordListFromJSON(raw []byte) (BlockRecordList, error) {
	var decoded blockRecordListJSON
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return BlockRecordList{}, fmt.Errorf("parse block record list: %w", err)
	}
	courseKey, err := keys.ParseCourseKey(decoded.CourseKey)
	if err != nil {
		return BlockRecordList{}, err
	}
	return BlockRecordList{
		Blocks:    decoded.Blocks,
		CourseKey: courseKey,
		Version:   decoded.Version,
	}, nil
}

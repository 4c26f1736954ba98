package blockstructure

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/openlearn/gradecore/internal/domain/keys"
)

// The serialized form is self-describing (gob) and gzip-compressed before
// it goes to the shared cache. Interface-typed slot values must be gob
// registered; the common value types used by the built-in transformers are
// registered here. Transformers contributed from elsewhere register their
// own types in an init.
func init() {
	gob.Register(time.Time{})
	gob.Register(keys.BlockKey{})
	gob.Register([]keys.BlockKey{})
	gob.Register([]string{})
	gob.Register(map[string]bool{})
	gob.Register(map[string][]int{})
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

type serializedBlock struct {
	Key             keys.BlockKey
	Children        []keys.BlockKey
	Fields          map[string]interface{}
	TransformerData map[string]map[string]interface{}
}

type serializedStructure struct {
	Root                keys.BlockKey
	Blocks              []serializedBlock
	TransformerData     map[string]map[string]interface{}
	TransformerVersions map[string]int
}

// Marshal serializes and compresses the structure.
func Marshal(s *BlockStructure) ([]byte, error) {
	snap := serializedStructure{
		Root:                s.root,
		Blocks:              make([]serializedBlock, 0, len(s.blockData)),
		TransformerData:     s.transformerData,
		TransformerVersions: s.transformerVersions,
	}
	for key, bd := range s.blockData {
		snap.Blocks = append(snap.Blocks, serializedBlock{
			Key:             key,
			Children:        s.children[key],
			Fields:          bd.fields,
			TransformerData: bd.transformerData,
		})
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode block structure: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress block structure: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal is the inverse of Marshal.
func Unmarshal(raw []byte) (*BlockStructure, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decompress block structure: %w", err)
	}
	defer zr.Close()

	var snap serializedStructure
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode block structure: %w", err)
	}

	s := New(snap.Root)
	for _, b := range snap.Blocks {
		s.ensureBlock(b.Key)
	}
	for _, b := range snap.Blocks {
		for _, c := range b.Children {
			s.AddRelation(b.Key, c)
		}
		bd := s.blockData[b.Key]
		if b.Fields != nil {
			bd.fields = b.Fields
		}
		if b.TransformerData != nil {
			bd.transformerData = b.TransformerData
		}
	}
	if snap.TransformerData != nil {
		s.transformerData = snap.TransformerData
	}
	if snap.TransformerVersions != nil {
		s.transformerVersions = snap.TransformerVersions
	}
	return s, nil
}

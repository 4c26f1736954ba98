// Package blockstructure holds the in-memory DAG of course blocks that the
// transformer pipeline collects over and the per-learner transform phase
// mutates. The structure owns its nodes and data slots exclusively.
package blockstructure

import (
	"github.com/openlearn/gradecore/internal/domain/keys"
)

// BlockData carries the per-block slots: collected block fields plus one
// key/value bag per transformer.
type BlockData struct {
	fields          map[string]interface{}
	transformerData map[string]map[string]interface{}
}

func newBlockData() *BlockData {
	return &BlockData{
		fields:          map[string]interface{}{},
		transformerData: map[string]map[string]interface{}{},
	}
}

// BlockStructure is a rooted DAG over BlockKeys. A node may have multiple
// parents; cycles are never created (AddRelation ignores self-loops and the
// content store guarantees acyclicity upstream).
type BlockStructure struct {
	root     keys.BlockKey
	parents  map[keys.BlockKey][]keys.BlockKey
	children map[keys.BlockKey][]keys.BlockKey

	blockData map[keys.BlockKey]*BlockData

	// Structure-wide per-transformer data and collected version stamps.
	transformerData     map[string]map[string]interface{}
	transformerVersions map[string]int
}

// New creates an empty structure rooted at root.
func New(root keys.BlockKey) *BlockStructure {
	s := &BlockStructure{
		root:                root,
		parents:             map[keys.BlockKey][]keys.BlockKey{},
		children:            map[keys.BlockKey][]keys.BlockKey{},
		blockData:           map[keys.BlockKey]*BlockData{},
		transformerData:     map[string]map[string]interface{}{},
		transformerVersions: map[string]int{},
	}
	s.ensureBlock(root)
	return s
}

func (s *BlockStructure) Root() keys.BlockKey { return s.root }

func (s *BlockStructure) Len() int { return len(s.blockData) }

func (s *BlockStructure) HasBlock(key keys.BlockKey) bool {
	_, ok := s.blockData[key]
	return ok
}

// BlockKeys returns every block currently in the structure, in no
// particular order.
func (s *BlockStructure) BlockKeys() []keys.BlockKey {
	out := make([]keys.BlockKey, 0, len(s.blockData))
	for k := range s.blockData {
		out = append(out, k)
	}
	return out
}

// GetParents returns the in-structure parents of key.
func (s *BlockStructure) GetParents(key keys.BlockKey) []keys.BlockKey {
	return append([]keys.BlockKey(nil), s.parents[key]...)
}

// GetChildren returns the in-structure children of key.
func (s *BlockStructure) GetChildren(key keys.BlockKey) []keys.BlockKey {
	return append([]keys.BlockKey(nil), s.children[key]...)
}

func (s *BlockStructure) ensureBlock(key keys.BlockKey) *BlockData {
	bd, ok := s.blockData[key]
	if !ok {
		bd = newBlockData()
		s.blockData[key] = bd
	}
	return bd
}

// AddRelation adds the parent→child edge, creating either node as needed.
// Self-loops and duplicate edges are ignored.
func (s *BlockStructure) AddRelation(parent, child keys.BlockKey) {
	if parent == child {
		return
	}
	s.ensureBlock(parent)
	s.ensureBlock(child)
	if containsKey(s.children[parent], child) {
		return
	}
	s.children[parent] = append(s.children[parent], child)
	s.parents[child] = append(s.parents[child], parent)
}

// RemoveBlock drops the block. With keepDescendants, each child is spliced
// up to every parent of the removed block (skipping edges that already
// exist); otherwise the subtree is left to be dropped by PruneUnreachable.
func (s *BlockStructure) RemoveBlock(key keys.BlockKey, keepDescendants bool) {
	if !s.HasBlock(key) {
		return
	}
	parents := s.parents[key]
	children := s.children[key]
	if keepDescendants {
		for _, p := range parents {
			for _, c := range children {
				s.AddRelation(p, c)
			}
		}
	}
	for _, p := range parents {
		s.children[p] = removeKey(s.children[p], key)
	}
	for _, c := range children {
		s.parents[c] = removeKey(s.parents[c], key)
	}
	delete(s.parents, key)
	delete(s.children, key)
	delete(s.blockData, key)
}

// RemoveBlockIf removes every block matching the predicate. Removal order
// is topological so splicing sees a consistent parent set.
func (s *BlockStructure) RemoveBlockIf(predicate func(keys.BlockKey) bool, keepDescendants bool) {
	var doomed []keys.BlockKey
	for _, key := range s.Topological(TraversalOptions{}) {
		if predicate(key) {
			doomed = append(doomed, key)
		}
	}
	for _, key := range doomed {
		s.RemoveBlock(key, keepDescendants)
	}
}

// PruneUnreachable drops every block not reachable from the root in one
// pass. Called once at the end of the transform phase.
func (s *BlockStructure) PruneUnreachable() {
	reachable := make(map[keys.BlockKey]bool, len(s.blockData))
	for _, key := range s.PostOrder() {
		reachable[key] = true
	}
	for key := range s.blockData {
		if !reachable[key] {
			for _, p := range s.parents[key] {
				s.children[p] = removeKey(s.children[p], key)
			}
			for _, c := range s.children[key] {
				s.parents[c] = removeKey(s.parents[c], key)
			}
			delete(s.parents, key)
			delete(s.children, key)
			delete(s.blockData, key)
		}
	}
}

// GetBlockField reads a collected block field.
func (s *BlockStructure) GetBlockField(key keys.BlockKey, name string) (interface{}, bool) {
	bd, ok := s.blockData[key]
	if !ok {
		return nil, false
	}
	v, ok := bd.fields[name]
	return v, ok
}

// SetBlockField writes a collected block field. No-op for absent blocks.
func (s *BlockStructure) SetBlockField(key keys.BlockKey, name string, value interface{}) {
	if bd, ok := s.blockData[key]; ok {
		bd.fields[name] = value
	}
}

// GetTransformerBlockData reads one transformer's per-block slot.
func (s *BlockStructure) GetTransformerBlockData(key keys.BlockKey, transformer, dataKey string) (interface{}, bool) {
	bd, ok := s.blockData[key]
	if !ok {
		return nil, false
	}
	slot, ok := bd.transformerData[transformer]
	if !ok {
		return nil, false
	}
	v, ok := slot[dataKey]
	return v, ok
}

// SetTransformerBlockData writes one transformer's per-block slot.
func (s *BlockStructure) SetTransformerBlockData(key keys.BlockKey, transformer, dataKey string, value interface{}) {
	bd, ok := s.blockData[key]
	if !ok {
		return
	}
	slot, ok := bd.transformerData[transformer]
	if !ok {
		slot = map[string]interface{}{}
		bd.transformerData[transformer] = slot
	}
	slot[dataKey] = value
}

// GetTransformerData reads a structure-wide transformer value.
func (s *BlockStructure) GetTransformerData(transformer, dataKey string) (interface{}, bool) {
	slot, ok := s.transformerData[transformer]
	if !ok {
		return nil, false
	}
	v, ok := slot[dataKey]
	return v, ok
}

// SetTransformerData writes a structure-wide transformer value.
func (s *BlockStructure) SetTransformerData(transformer, dataKey string, value interface{}) {
	slot, ok := s.transformerData[transformer]
	if !ok {
		slot = map[string]interface{}{}
		s.transformerData[transformer] = slot
	}
	slot[dataKey] = value
}

// TransformerVersion returns the version stamp recorded at collect time,
// or 0 if the transformer never collected on this structure.
func (s *BlockStructure) TransformerVersion(transformer string) int {
	return s.transformerVersions[transformer]
}

// SetTransformerVersion stamps the structure with the transformer's version.
func (s *BlockStructure) SetTransformerVersion(transformer string, version int) {
	s.transformerVersions[transformer] = version
}

func containsKey(list []keys.BlockKey, key keys.BlockKey) bool {
	for _, k := range list {
		if k == key {
			return true
		}
	}
	return false
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

package blockstructure

import (
	"github.com/openlearn/gradecore/internal/domain/keys"
)

// TraversalOptions controls the topological traversal.
type TraversalOptions struct {
	// Filter decides whether a visited node is emitted. Nil emits all.
	Filter func(keys.BlockKey) bool
	// YieldDescendantsOfUnyielded keeps a node eligible for emission even
	// when every one of its in-structure parents was filtered out. With the
	// default false, such a node (and anything reachable only through it)
	// is skipped.
	YieldDescendantsOfUnyielded bool
}

// Topological emits parents before children; a child is emitted only after
// every one of its in-structure parents has been processed. Iterative, with
// an explicit stack, so arbitrarily deep courses are fine.
func (s *BlockStructure) Topological(opts TraversalOptions) []keys.BlockKey {
	if !s.HasBlock(s.root) {
		return nil
	}

	// In-degree restricted to blocks reachable from the root.
	reachable := s.reachableSet()
	indegree := make(map[keys.BlockKey]int, len(reachable))
	for key := range reachable {
		n := 0
		for _, p := range s.parents[key] {
			if reachable[p] {
				n++
			}
		}
		indegree[key] = n
	}

	out := make([]keys.BlockKey, 0, len(reachable))
	yielded := make(map[keys.BlockKey]bool, len(reachable))
	stack := []keys.BlockKey{s.root}
	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		eligible := key == s.root || opts.YieldDescendantsOfUnyielded
		if !eligible {
			for _, p := range s.parents[key] {
				if yielded[p] {
					eligible = true
					break
				}
			}
		}
		if eligible && (opts.Filter == nil || opts.Filter(key)) {
			out = append(out, key)
			yielded[key] = true
		}

		// Push children whose parents have all been processed. Reverse
		// order keeps the emission order aligned with child order.
		children := s.children[key]
		for i := len(children) - 1; i >= 0; i-- {
			c := children[i]
			if !reachable[c] {
				continue
			}
			indegree[c]--
			if indegree[c] == 0 {
				stack = append(stack, c)
			}
		}
	}
	return out
}

// PreOrder emits each reachable node before any of its descendants. A DAG
// node with multiple parents is visited once.
func (s *BlockStructure) PreOrder() []keys.BlockKey {
	if !s.HasBlock(s.root) {
		return nil
	}
	out := make([]keys.BlockKey, 0, len(s.blockData))
	visited := map[keys.BlockKey]bool{}
	stack := []keys.BlockKey{s.root}
	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[key] {
			continue
		}
		visited[key] = true
		out = append(out, key)
		children := s.children[key]
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i]] {
				stack = append(stack, children[i])
			}
		}
	}
	return out
}

// PostOrder emits all of a node's descendants before the node itself.
func (s *BlockStructure) PostOrder() []keys.BlockKey {
	if !s.HasBlock(s.root) {
		return nil
	}
	type frame struct {
		key   keys.BlockKey
		child int
	}
	out := make([]keys.BlockKey, 0, len(s.blockData))
	visited := map[keys.BlockKey]bool{}
	emitted := map[keys.BlockKey]bool{}
	stack := []frame{{key: s.root}}
	visited[s.root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := s.children[top.key]
		advanced := false
		for top.child < len(children) {
			c := children[top.child]
			top.child++
			if !visited[c] {
				visited[c] = true
				stack = append(stack, frame{key: c})
				advanced = true
				break
			}
		}
		if advanced {
			continue
		}
		if !emitted[top.key] {
			emitted[top.key] = true
			out = append(out, top.key)
		}
		stack = stack[:len(stack)-1]
	}
	return out
}

func (s *BlockStructure) reachableSet() map[keys.BlockKey]bool {
	reachable := make(map[keys.BlockKey]bool, len(s.blockData))
	for _, key := range s.PreOrder() {
		reachable[key] = true
	}
	return reachable
}

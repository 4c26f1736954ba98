package transformers

import (
	"sort"
	"sync"

	pkgerrors "github.com/openlearn/gradecore/internal/pkg/errors"
)

// Registry is the process-wide table of known transformers, populated at
// startup. The pipeline validates every requested transformer against it
// before running a transform.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Transformer
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]Transformer{}}
}

// NewDefaultRegistry returns a registry preloaded with the built-in
// transformers the grading core depends on.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of builtins cannot fail: names are distinct, versions
	// positive.
	_ = r.Register(NewGradesTransformer())
	_ = r.Register(NewVisibilityTransformer())
	_ = r.Register(NewStartDateTransformer())
	_ = r.Register(NewUserPartitionTransformer())
	return r
}

// DefaultViewNames is the transform order for learner grading views:
// access filters first, so the grades metadata only covers blocks the
// learner can actually reach.
func DefaultViewNames() []string {
	return []string{
		VisibilityTransformerName,
		StartDateTransformerName,
		UserPartitionTransformerName,
		GradesTransformerName,
	}
}

// Register adds a transformer. Duplicate names and non-positive versions
// are rejected.
func (r *Registry) Register(t Transformer) error {
	if t.Version() <= 0 {
		return pkgerrors.NewTransformerError(t.Name(), "version must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[t.Name()]; exists {
		return pkgerrors.NewTransformerError(t.Name(), "already registered")
	}
	r.byName[t.Name()] = t
	return nil
}

// Get looks up a transformer by name.
func (r *Registry) Get(name string) (Transformer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// All returns every registered transformer in stable name order, so the
// collect phase is deterministic.
func (r *Registry) All() []Transformer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Transformer, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

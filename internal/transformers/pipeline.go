package transformers

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/openlearn/gradecore/internal/blockstructure"
	"github.com/openlearn/gradecore/internal/coursegraph"
	"github.com/openlearn/gradecore/internal/domain/keys"
	pkgerrors "github.com/openlearn/gradecore/internal/pkg/errors"
	"github.com/openlearn/gradecore/internal/pkg/logger"
)

// Pipeline builds, caches, and transforms block structures. Collect runs
// are collapsed per course with singleflight so concurrent cache misses do
// one bulk load.
type Pipeline struct {
	store    coursegraph.BlockStore
	cache    blockstructure.Cache
	registry *Registry
	log      *logger.Logger
	collects singleflight.Group
}

func NewPipeline(store coursegraph.BlockStore, cache blockstructure.Cache, registry *Registry, baseLog *logger.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		cache:    cache,
		registry: registry,
		log:      baseLog.With("service", "TransformerPipeline"),
	}
}

func (p *Pipeline) Registry() *Registry { return p.registry }

// Collect builds the full course structure, runs every registered
// transformer's collect hook, and writes the serialized result to the
// shared cache. A failure in any collect hook fails the whole call;
// partial collects are never cached.
func (p *Pipeline) Collect(ctx context.Context, courseKey keys.CourseKey) (*blockstructure.BlockStructure, error) {
	course, err := p.store.GetCourse(ctx, courseKey)
	if err != nil {
		return nil, err
	}
	handles, err := p.store.BulkLoad(ctx, courseKey)
	if err != nil {
		return nil, err
	}

	s := blockstructure.New(course.Root)
	byKey := make(map[keys.BlockKey]*coursegraph.BlockHandle, len(handles))
	for _, h := range handles {
		byKey[h.Key] = h
		for _, c := range h.Children {
			s.AddRelation(h.Key, c)
		}
	}

	// Materialize the union of all required fields once per block.
	fields := map[string]bool{}
	all := p.registry.All()
	for _, t := range all {
		for _, f := range t.RequiredFields() {
			fields[f] = true
		}
	}
	for key, h := range byKey {
		for name := range fields {
			if v := h.GetField(name); v != nil {
				s.SetBlockField(key, name, v)
			}
		}
	}

	for _, t := range all {
		if err := t.Collect(s); err != nil {
			return nil, fmt.Errorf("collect %s: %w", t.Name(), err)
		}
		s.SetTransformerVersion(t.Name(), t.Version())
	}

	blob, err := blockstructure.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, courseKey, blob); err != nil {
		// Cache write failures are not fatal: the structure is valid and
		// the next reader will recollect.
		p.log.Warn("failed to cache collected structure", "course_id", courseKey, "error", err)
	}
	return s, nil
}

// GetCollected returns a collected structure for the course, from cache
// when the cached copy's version stamps match the requested transformers,
// recollecting otherwise.
func (p *Pipeline) GetCollected(ctx context.Context, courseKey keys.CourseKey, requested []Transformer) (*blockstructure.BlockStructure, error) {
	blob, ok, err := p.cache.Get(ctx, courseKey)
	if err != nil {
		p.log.Warn("structure cache read failed, recollecting", "course_id", courseKey, "error", err)
	} else if ok {
		s, err := blockstructure.Unmarshal(blob)
		if err != nil {
			p.log.Warn("cached structure undecodable, recollecting", "course_id", courseKey, "error", err)
		} else if p.versionsCurrent(s, requested) {
			return s, nil
		}
	}

	v, err, _ := p.collects.Do(courseKey.String(), func() (interface{}, error) {
		return p.Collect(ctx, courseKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*blockstructure.BlockStructure), nil
}

func (p *Pipeline) versionsCurrent(s *blockstructure.BlockStructure, requested []Transformer) bool {
	for _, t := range requested {
		if s.TransformerVersion(t.Name()) != t.Version() {
			p.log.Debug("stale transformer version in cached structure",
				"transformer", t.Name(),
				"stored", s.TransformerVersion(t.Name()),
				"current", t.Version())
			return false
		}
	}
	return true
}

// GetTransformed produces the learner's view of the course: a collected
// structure with the requested transformers applied in the given order and
// unreachable blocks pruned. Unknown transformer names are fatal.
func (p *Pipeline) GetTransformed(ctx context.Context, usage *UsageInfo, requestedNames []string) (*blockstructure.BlockStructure, error) {
	requested := make([]Transformer, 0, len(requestedNames))
	for _, name := range requestedNames {
		t, ok := p.registry.Get(name)
		if !ok {
			return nil, pkgerrors.NewTransformerError(name, "not registered")
		}
		requested = append(requested, t)
	}

	s, err := p.GetCollected(ctx, usage.CourseKey, requested)
	if err != nil {
		return nil, err
	}
	for _, t := range requested {
		if err := t.Transform(usage, s); err != nil {
			return nil, fmt.Errorf("transform %s: %w", t.Name(), err)
		}
	}
	s.PruneUnreachable()
	return s, nil
}

// InvalidateCache drops the cached structure for the course. Called on
// publish; the next read recollects.
func (p *Pipeline) InvalidateCache(ctx context.Context, courseKey keys.CourseKey) error {
	return p.cache.Delete(ctx, courseKey)
}

// Package resource owns the per-language analyzer chains shared by every
// analysis in the process.
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dgallion1/docannot/internal/analyzer"
	"github.com/dgallion1/docannot/internal/profile"
)

// Registry lazily builds one Set per language and hands the same Set to
// every caller. A failed build is remembered and never retried.
type Registry struct {
	load analyzer.Loader
	log  *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	sets   map[Language]*Set
	failed map[Language]*InitError

	total   profile.Counter
	latency *profile.StageLatency
}

// NewRegistry creates an empty registry. statsWindow bounds the rolling
// per-stage latency window.
func NewRegistry(load analyzer.Loader, log *slog.Logger, statsWindow time.Duration) *Registry {
	return &Registry{
		load:    load,
		log:     log,
		sets:    make(map[Language]*Set),
		failed:  make(map[Language]*InitError),
		latency: profile.NewStageLatency(statsWindow),
	}
}

// GetOrInit returns the Set for lang, building it on first use. Concurrent
// first callers share a single build. Unsupported identifiers fail without
// leaving any trace in the registry.
func (r *Registry) GetOrInit(ctx context.Context, lang string) (*Set, error) {
	l, err := ParseLanguage(lang)
	if err != nil {
		return nil, &InitError{Lang: lang, Err: err}
	}

	if set, err := r.cached(l); set != nil || err != nil {
		return set, err
	}

	ch := r.group.DoChan(string(l), func() (any, error) {
		if set, err := r.cached(l); set != nil || err != nil {
			return set, err
		}
		return r.build(l)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Set), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) cached(l Language) (*Set, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ierr, ok := r.failed[l]; ok {
		return nil, ierr
	}
	return r.sets[l], nil
}

func (r *Registry) build(l Language) (*Set, error) {
	log := r.log.With("lang", string(l))
	start := time.Now()

	// A detached context: the build outlives the caller that triggered it.
	stages, err := r.load(context.Background(), string(l))
	if err == nil {
		err = validateStages(stages)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		ierr := &InitError{Lang: string(l), Err: err}
		r.failed[l] = ierr
		log.Error("analyzer initialization failed, language disabled", "error", err)
		return nil, ierr
	}
	set := newSet(l, stages, &r.total, r.latency)
	r.sets[l] = set
	log.Info("analyzers initialized", "duration_ms", time.Since(start).Milliseconds())
	return set, nil
}

func validateStages(st *analyzer.Stages) error {
	switch {
	case st == nil:
		return errors.New("loader returned no stages")
	case st.Splitter == nil, st.Tokenizer == nil, st.Morph == nil, st.Tagger == nil,
		st.NEClassifier == nil, st.SenseTagger == nil, st.Disambiguate == nil, st.Parser == nil:
		return errors.New("loader returned an incomplete stage chain")
	}
	return nil
}

// Preload initializes each language up front, stopping at the first failure.
func (r *Registry) Preload(ctx context.Context, langs []string) error {
	for _, lang := range langs {
		if _, err := r.GetOrInit(ctx, lang); err != nil {
			return fmt.Errorf("preload: %w", err)
		}
	}
	return nil
}

// Languages returns the initialized languages, sorted.
func (r *Registry) Languages() []Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Language, 0, len(r.sets))
	for l := range r.sets {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Failed returns the languages whose initialization failed.
func (r *Registry) Failed() map[Language]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Language]string, len(r.failed))
	for l, e := range r.failed {
		out[l] = e.Err.Error()
	}
	return out
}

// Has reports whether lang has a registry entry, initialized or failed.
func (r *Registry) Has(lang Language) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sets[lang]
	_, bad := r.failed[lang]
	return ok || bad
}

// ProcessingSeconds is the cumulative time spent inside stage guards by
// every caller.
func (r *Registry) ProcessingSeconds() float64 {
	return r.total.Seconds()
}

// StageLatency returns rolling latency aggregates keyed "<lang>.<stage>".
func (r *Registry) StageLatency() map[string]profile.Snapshot {
	return r.latency.Snapshot()
}

// Close releases the backing resources of every initialized language.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for l, set := range r.sets {
		delete(r.sets, l)
		if set.closer == nil {
			continue
		}
		if err := set.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", l, err))
		}
	}
	return errors.Join(errs...)
}

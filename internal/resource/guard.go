package resource

import (
	"context"
	"time"

	"github.com/dgallion1/docannot/internal/profile"
)

// Stage names one of the eight analyzer stages.
type Stage string

const (
	StageSplit        Stage = "split"
	StageTokenize     Stage = "tokenize"
	StageMorph        Stage = "morph"
	StageTag          Stage = "tag"
	StageNER          Stage = "ner"
	StageSenses       Stage = "senses"
	StageDisambiguate Stage = "disambiguate"
	StageParse        Stage = "parse"
)

// Guard owns one non-reentrant stage value. Only the holder of its slot
// may touch the value.
type Guard[T any] struct {
	stage   Stage
	val     T
	slot    chan struct{}
	total   *profile.Counter
	latency *profile.Latency
}

func newGuard[T any](stage Stage, val T, total *profile.Counter, latency *profile.Latency) *Guard[T] {
	return &Guard[T]{
		stage:   stage,
		val:     val,
		slot:    make(chan struct{}, 1),
		total:   total,
		latency: latency,
	}
}

// Stage returns the guarded stage name.
func (g *Guard[T]) Stage() Stage { return g.stage }

// Do waits for exclusive use of the stage, runs fn with it and releases
// it on every exit path, panics included. Time spent holding the stage is
// added to the process-wide counter and to local, which may be nil.
// Waiting ends early with ctx.Err() if ctx is done first; a running fn
// is never interrupted.
func (g *Guard[T]) Do(ctx context.Context, local *profile.Counter, fn func(T) error) error {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		g.total.Add(elapsed)
		local.Add(elapsed)
		if g.latency != nil {
			g.latency.Record(elapsed)
		}
		<-g.slot
	}()
	return fn(g.val)
}

package urgency

import (
	"context"
	"time"

	"gigline/internal/clock"
)

// Tick is one watcher observation of a single deadline.
type Tick struct {
	MissionID string
	Classification
}

// Source supplies the deadlines to watch. The engine implements this with a
// read-only listing of the actor's accepted set.
type Source interface {
	Deadlines(ctx context.Context) (map[string]*time.Time, error)
}

// Watcher re-classifies a Source's deadlines once per second and pushes each
// observation to the sink. It never mutates mission state.
type Watcher struct {
	Clock  clock.Clock
	Source Source
	Sink   func(Tick)
}

// Run blocks until ctx is cancelled, emitting one Tick per watched deadline
// per second.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		deadlines, err := w.Source.Deadlines(ctx)
		if err != nil {
			return err
		}
		now := w.Clock.Now()
		for id, dl := range deadlines {
			w.Sink(Tick{MissionID: id, Classification: Classify(now, dl)})
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.Clock.After(time.Second):
		}
	}
}

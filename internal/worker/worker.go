// Package worker keeps the statistics cache warm from the event queue and
// on a schedule.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"emargement/internal/events"
	"emargement/internal/metrics"
	"emargement/internal/queue"
	"emargement/internal/stats"
)

// Worker consumes domain events. Metrics may be nil.
type Worker struct {
	Queue    queue.Queue
	Stats    *stats.Service
	Metrics  *metrics.Metrics
	Schedule string
}

// Run blocks until ctx is done. An invalid Schedule fails immediately.
func (w *Worker) Run(ctx context.Context) error {
	if w.Schedule != "" {
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		if _, err := c.AddFunc(w.Schedule, func() { w.refresh(ctx, "schedule") }); err != nil {
			return fmt.Errorf("stats refresh schedule %q: %w", w.Schedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		log.Printf("[worker] stats refresh schedule=%q", w.Schedule)
	}

	w.refresh(ctx, "startup")
	return events.Consume(ctx, w.Queue, w.Handle)
}

// Handle reacts to one event: the cache was already invalidated by the
// publisher, so recompute what dashboards read first.
func (w *Worker) Handle(ctx context.Context, evt events.Event) error {
	log.Printf("[worker] %s #%d (%s)", evt.Type, evt.EntityID, evt.ID)
	return w.warm(ctx)
}

func (w *Worker) refresh(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	if err := w.warm(ctx); err != nil {
		log.Printf("[worker] %s refresh failed: %v", reason, err)
	}
}

func (w *Worker) warm(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	sum, err := w.Stats.Warm(ctx)
	if err != nil {
		return err
	}
	if w.Metrics != nil {
		w.Metrics.SetEntries(sum.Present, sum.Late, sum.Absent)
	}
	return nil
}

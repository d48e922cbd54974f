package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor runs PruneSnapshots across every known task on a cron schedule,
// keeping snapshot-history retention bounded without pruning inline on
// the hot write path of every PutSnapshot.
type Janitor struct {
	store  *Store
	cron   *cron.Cron
	logger *slog.Logger
}

// NewJanitor builds a Janitor. schedule is a standard five-field cron
// expression; "0 */6 * * *" (every six hours) is a reasonable default for
// a system whose tasks may sit interrupted for days.
func NewJanitor(s *Store, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:  s,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start schedules the sweep and begins running it in the background.
// Callers must call Stop to release the underlying cron scheduler.
func (j *Janitor) Start(ctx context.Context, schedule string) error {
	_, err := j.cron.AddFunc(schedule, func() {
		j.sweep(ctx)
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) sweep(ctx context.Context) {
	start := time.Now()
	tasks, err := j.store.ListTasks(ctx)
	if err != nil {
		j.logger.Error("janitor: list tasks failed", "error", err)
		return
	}
	pruned := 0
	for _, t := range tasks {
		if err := j.store.PruneSnapshots(ctx, t.ID); err != nil {
			j.logger.Error("janitor: prune snapshots failed", "task_id", t.ID, "error", err)
			continue
		}
		pruned++
	}
	j.logger.Info("janitor: snapshot retention sweep complete",
		"tasks_considered", len(tasks), "tasks_pruned", pruned, "duration", time.Since(start))
}

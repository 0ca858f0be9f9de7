// Package tasks registers the maintenance tasks that run on the
// scheduler.
package tasks

import (
	"context"

	"github.com/mediastow/mediastow/internal/history"
	"github.com/mediastow/mediastow/internal/scheduler"
)

const HistoryRetentionTaskID = "history-retention"

// RegisterHistoryRetentionTask schedules the nightly prune of old
// organization log entries. A retention of zero or less makes the task
// a no-op.
func RegisterHistoryRetentionTask(sched *scheduler.Scheduler, historySvc *history.Service, retentionDays int) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryRetentionTaskID,
		Name:        "History Retention",
		Description: "Deletes organization log entries older than the configured retention period",
		Cron:        "0 3 * * *",
		Func: func(ctx context.Context) error {
			_, err := historySvc.Prune(ctx, retentionDays)
			return err
		},
	})
}

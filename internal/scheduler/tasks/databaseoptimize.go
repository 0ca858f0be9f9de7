package tasks

import (
	"github.com/mediastow/mediastow/internal/database"
	"github.com/mediastow/mediastow/internal/scheduler"
)

const DatabaseOptimizeTaskID = "database-optimize"

// RegisterDatabaseOptimizeTask schedules weekly SQLite maintenance.
func RegisterDatabaseOptimizeTask(sched *scheduler.Scheduler, db *database.DB) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          DatabaseOptimizeTaskID,
		Name:        "Database Optimize",
		Description: "Runs SQLite optimization to keep queries fast and reclaim free pages",
		Cron:        "0 4 * * 0",
		Func:        db.Optimize,
	})
}

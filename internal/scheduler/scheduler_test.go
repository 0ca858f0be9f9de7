package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	sched, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = sched.Stop() })
	return sched
}

func TestRegisterTaskRejectsDuplicates(t *testing.T) {
	sched := newTestScheduler(t)

	config := TaskConfig{
		ID:   "demo",
		Name: "Demo",
		Cron: "0 3 * * *",
		Func: func(context.Context) error { return nil },
	}
	if err := sched.RegisterTask(config); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := sched.RegisterTask(config); err == nil {
		t.Fatal("duplicate registration accepted")
	}
}

func TestRunNowExecutesTask(t *testing.T) {
	sched := newTestScheduler(t)

	done := make(chan struct{})
	err := sched.RegisterTask(TaskConfig{
		ID:   "demo",
		Name: "Demo",
		Cron: "0 3 * * *",
		Func: func(context.Context) error {
			close(done)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := sched.RunNow("demo"); err != nil {
		t.Fatalf("run now: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := sched.GetTask("demo")
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if task.LastRun != nil && !task.Running {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("lastRun never recorded")
}

func TestRunNowUnknownTask(t *testing.T) {
	sched := newTestScheduler(t)

	if err := sched.RunNow("missing"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestListTasks(t *testing.T) {
	sched := newTestScheduler(t)

	for _, id := range []string{"a", "b"} {
		err := sched.RegisterTask(TaskConfig{
			ID:   id,
			Name: id,
			Cron: "0 3 * * *",
			Func: func(context.Context) error { return nil },
		})
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	tasks := sched.ListTasks()
	if len(tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(tasks))
	}
}

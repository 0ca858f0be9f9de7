// Package scheduler runs recurring maintenance tasks on cron schedules
// and exposes their state for the API.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// TaskFunc is the body of a scheduled task. The context is never tied
// to an HTTP request; tasks run in the background.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes one recurring task.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Cron        string // five-field cron expression, e.g. "0 3 * * *"
	Func        TaskFunc
	RunOnStart  bool
}

// TaskInfo is the API view of a registered task.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cron        string     `json:"cron"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	Running     bool       `json:"running"`
}

type taskState struct {
	config    TaskConfig
	job       gocron.Job
	lastRun   *time.Time
	lastError string
	running   bool
}

// info snapshots the task for API responses. Callers hold the
// scheduler lock.
func (st *taskState) info() TaskInfo {
	out := TaskInfo{
		ID:          st.config.ID,
		Name:        st.config.Name,
		Description: st.config.Description,
		Cron:        st.config.Cron,
		LastRun:     st.lastRun,
		LastError:   st.lastError,
		Running:     st.running,
	}
	if next, err := st.job.NextRun(); err == nil {
		out.NextRun = &next
	}
	return out
}

// Scheduler owns the registered tasks and the underlying cron engine.
type Scheduler struct {
	engine gocron.Scheduler
	logger zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*taskState
}

// New creates a stopped scheduler. Register tasks, then call Start.
func New(logger zerolog.Logger) (*Scheduler, error) {
	engine, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating cron engine: %w", err)
	}

	return &Scheduler{
		engine: engine,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*taskState),
	}, nil
}

// RegisterTask adds a task under a unique id. Registration wires the
// cron trigger; nothing runs until Start.
func (s *Scheduler) RegisterTask(config TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("task %q already registered", config.ID)
	}

	job, err := s.engine.NewJob(
		gocron.CronJob(config.Cron, false),
		gocron.NewTask(func() { s.execute(config.ID) }),
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
	)
	if err != nil {
		return fmt.Errorf("scheduling task %q: %w", config.ID, err)
	}

	s.tasks[config.ID] = &taskState{config: config, job: job}
	s.logger.Info().
		Str("task", config.ID).
		Str("cron", config.Cron).
		Bool("runOnStart", config.RunOnStart).
		Msg("Task registered")
	return nil
}

// Start begins cron evaluation and kicks off RunOnStart tasks.
func (s *Scheduler) Start() error {
	s.engine.Start()

	s.mu.RLock()
	total := len(s.tasks)
	var startup []string
	for id, st := range s.tasks {
		if st.config.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range startup {
		go s.execute(id)
	}

	s.logger.Info().Int("tasks", total).Msg("Scheduler started")
	return nil
}

// Stop shuts the cron engine down and waits for running jobs.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Scheduler stopping")
	return s.engine.Shutdown()
}

// RunNow triggers one task outside its schedule. A task that is
// already running is not started twice.
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	st, exists := s.tasks[id]
	running := exists && st.running
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("task %q not found", id)
	}
	if running {
		return fmt.Errorf("task %q is already running", id)
	}

	go s.execute(id)
	return nil
}

// ListTasks returns every registered task.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, st := range s.tasks {
		infos = append(infos, st.info())
	}
	return infos
}

// GetTask returns one task by id.
func (s *Scheduler) GetTask(id string) (*TaskInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.tasks[id]
	if !exists {
		return nil, fmt.Errorf("task %q not found", id)
	}
	out := st.info()
	return &out, nil
}

// execute runs one task, serializing the state transitions but not the
// task body itself.
func (s *Scheduler) execute(id string) {
	s.mu.Lock()
	st, exists := s.tasks[id]
	if !exists {
		s.mu.Unlock()
		return
	}
	st.running = true
	s.mu.Unlock()

	started := time.Now()
	s.logger.Info().Str("task", id).Msg("Task started")

	err := st.config.Func(context.Background())

	s.mu.Lock()
	st.running = false
	st.lastRun = &started
	st.lastError = ""
	if err != nil {
		st.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("task", id).Dur("took", time.Since(started)).Msg("Task failed")
		return
	}
	s.logger.Info().Str("task", id).Dur("took", time.Since(started)).Msg("Task finished")
}

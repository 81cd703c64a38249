package bot

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/mrdev/replybot/internal/bot/tasks"
	"github.com/mrdev/replybot/internal/config"
	"github.com/mrdev/replybot/internal/logger"
)

var errSchedulerRunning = errors.New("scheduler is already running")

// scheduledTask is a registered task with its cron expression (seconds first).
type scheduledTask struct {
	name     string
	schedule string
	run      tasks.ScheduledTaskFunc
}

// Scheduler runs the configured maintenance tasks on gocron.
type Scheduler struct {
	cron    gocron.Scheduler
	logger  *slog.Logger
	cfg     *config.SchedulerConfig
	taskMap map[string]tasks.ScheduledTaskFunc

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler for the tasks in taskMap that are enabled
// in cfg.
func NewScheduler(log *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scheduler")

	cron, err := gocron.NewScheduler(gocron.WithLogger(logger.NewGocronLogger(log)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{cron: cron, logger: log, cfg: cfg, taskMap: taskMap}, nil
}

// Start registers every runnable task and starts ticking. A task that fails
// to register is logged and skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errSchedulerRunning
	}

	runnable := s.runnable()
	added := 0
	for _, task := range runnable {
		if err := s.add(task); err != nil {
			s.logger.Error("Failed to schedule task", "task_name", task.name, "schedule", task.schedule, "error", err)
			continue
		}
		added++
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", added, "tasks_configured", s.configured())
	return nil
}

// runnable returns the enabled, registered tasks with a schedule, by name.
func (s *Scheduler) runnable() []scheduledTask {
	if s.cfg == nil {
		return nil
	}

	var out []scheduledTask
	for name, tc := range s.cfg.Tasks {
		fn, registered := s.taskMap[name]
		switch {
		case !tc.Enabled:
			s.logger.Info("Skipping disabled task", "task_name", name)
		case !registered:
			s.logger.Warn("Configured task has no implementation, skipping", "task_name", name)
		case tc.Schedule == "":
			s.logger.Warn("Enabled task has no schedule, skipping", "task_name", name)
		default:
			out = append(out, scheduledTask{name: name, schedule: tc.Schedule, run: fn})
		}
	}
	slices.SortFunc(out, func(a, b scheduledTask) int { return cmp.Compare(a.name, b.name) })
	return out
}

func (s *Scheduler) configured() int {
	if s.cfg == nil {
		return 0
	}
	return len(s.cfg.Tasks)
}

func (s *Scheduler) add(task scheduledTask) error {
	_, err := s.cron.NewJob(
		gocron.CronJob(task.schedule, true),
		gocron.NewTask(s.runTask, task),
		gocron.WithName(task.name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	s.logger.Info("Scheduled task", "task_name", task.name, "schedule", task.schedule)
	return nil
}

// runTask is the gocron entry point; gocron injects ctx.
func (s *Scheduler) runTask(ctx context.Context, task scheduledTask) {
	start := time.Now()
	if err := task.run(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled task failed", "task_name", task.name, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "Scheduled task finished", "task_name", task.name, "duration", time.Since(start))
}

// Jobs returns the names of the scheduled jobs, sorted.
func (s *Scheduler) Jobs() []string {
	jobs := s.cron.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	slices.Sort(names)
	return names
}

// Stop shuts the scheduler down, waiting for running jobs. Stopping a
// scheduler that is not running is a no-op.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	s.logger.Info("Scheduler stopped")
	return nil
}

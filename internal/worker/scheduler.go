package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// DefaultPrewarmInterval is used when no interval is configured.
const DefaultPrewarmInterval = 15 * time.Minute

// Scheduler runs the prewarm job on a fixed interval. A run that is still
// in progress when the next one is due causes that tick to be skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *PrewarmJob
	interval  time.Duration
	logger    zerolog.Logger
	cancel    context.CancelFunc
	tasks     []task
}

type task struct {
	name     string
	interval time.Duration
	run      func(context.Context)
}

// NewScheduler creates a Scheduler. The first run happens on Start.
func NewScheduler(job *PrewarmJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPrewarmInterval
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// AddTask registers a housekeeping task that runs alongside the prewarm
// job. Tasks must be added before Start.
func (s *Scheduler) AddTask(name string, interval time.Duration, run func(context.Context)) {
	s.tasks = append(s.tasks, task{name: name, interval: interval, run: run})
}

// Start schedules the prewarm job and starts the underlying scheduler.
// Runs are cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.logger.Debug().Msg("scheduler: running forecast prewarm")
		s.job.Run(ctx)
	})
	if err != nil {
		s.cancel()
		return err
	}

	for _, t := range s.tasks {
		_, err := s.scheduler.Every(t.interval).Do(func() {
			s.logger.Debug().Str("task", t.name).Msg("scheduler: running task")
			t.run(ctx)
		})
		if err != nil {
			s.cancel()
			return fmt.Errorf("schedule %s: %w", t.name, err)
		}
	}

	s.logger.Info().
		Dur("interval", s.interval).
		Msg("prewarm scheduler started")
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any run in progress.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
}

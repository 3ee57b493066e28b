package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"herald/internal/metrics"
	"herald/internal/types"
)

type JobConfig struct {
	Name     string
	Stages   Stages
	Schedule cron.Schedule
	Jitter   time.Duration
	Testing  bool
}

// Job owns the run loop of one configured pipeline.
type Job struct {
	name     string
	stages   Stages
	schedule cron.Schedule
	jitter   time.Duration
	testing  bool
	executor *Executor
	logger   *slog.Logger

	mu      sync.Mutex
	running bool

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	random func(bound time.Duration) time.Duration
}

func NewJob(config JobConfig, executor *Executor, logger *slog.Logger) (*Job, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("job name is required")
	}
	if config.Schedule == nil && !config.Testing {
		return nil, fmt.Errorf("job %s: schedule is required", config.Name)
	}
	if config.Jitter < 0 {
		return nil, fmt.Errorf("job %s: jitter must not be negative", config.Name)
	}
	config.Stages.Job = config.Name
	if err := config.Stages.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Job{
		name:     config.Name,
		stages:   config.Stages,
		schedule: config.Schedule,
		jitter:   config.Jitter,
		testing:  config.Testing,
		executor: executor,
		logger:   logger.With("job", config.Name),
		now:      time.Now,
		sleep:    sleepContext,
		random:   RandomJitter,
	}, nil
}

func (j *Job) Name() string {
	return j.name
}

func (j *Job) Testing() bool {
	return j.testing
}

func (j *Job) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// RunOnce executes the pipeline a single time. Runs of the same job never
// overlap.
func (j *Job) RunOnce(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return fmt.Errorf("job %s already running", j.name)
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	start := time.Now()
	err := j.executor.RunPipeline(ctx, j.stages)

	switch {
	case err == nil:
		metrics.ObserveRun(j.name, metrics.OutcomeSuccess, time.Since(start))
	case ctx.Err() != nil:
		metrics.ObserveRun(j.name, metrics.OutcomeCanceled, time.Since(start))
	default:
		metrics.ObserveRun(j.name, metrics.OutcomeFailure, time.Since(start))
	}

	return err
}

// Run waits for each scheduled fire time and runs the pipeline until ctx is
// canceled. Run errors are logged and the loop continues.
func (j *Job) Run(ctx context.Context) error {
	for {
		now := j.now().UTC()
		jitter := j.random(j.jitter)

		delay, next, ok := NextDelay(j.schedule, now, jitter)
		if !ok {
			return fmt.Errorf("job %s: schedule has no upcoming occurrence", j.name)
		}

		j.logger.Info("Waiting for next run", "next", next, "delay", delay, "jitter", jitter)

		if err := j.sleep(ctx, delay); err != nil {
			j.logger.Info("Job stopped")
			return nil
		}

		if err := j.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				j.logger.Info("Job stopped during run")
				return nil
			}
			j.logger.Error("Pipeline run failed", "stage", types.StageOf(err), "error", err)
		}

		if ctx.Err() != nil {
			j.logger.Info("Job stopped")
			return nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

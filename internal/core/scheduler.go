package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Scheduler owns every configured job. Testing jobs run once inline, all
// others loop concurrently until the context is canceled.
type Scheduler struct {
	jobs   map[string]*Job
	order  []string
	logger *slog.Logger
	mu     sync.RWMutex
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:   make(map[string]*Job),
		logger: logger,
	}
}

func (s *Scheduler) Register(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	s.jobs[job.Name()] = job
	s.order = append(s.order, job.Name())
	return nil
}

func (s *Scheduler) Get(name string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[name]
	return job, exists
}

// List returns job names in registration order.
func (s *Scheduler) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Run returns once every job loop has stopped. A testing job failure is
// returned before any loop starts.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.RUnlock()

	loops := make([]*Job, 0, len(jobs))
	for _, job := range jobs {
		if !job.Testing() {
			loops = append(loops, job)
			continue
		}

		s.logger.Info("Running job in test mode", "job", job.Name())
		if err := job.RunOnce(ctx); err != nil {
			return fmt.Errorf("job %s failed: %w", job.Name(), err)
		}
	}

	s.logger.Info("Started jobs", "count", len(loops))

	var wg sync.WaitGroup
	errChan := make(chan error, len(loops))

	for _, job := range loops {
		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			if err := j.Run(ctx); err != nil {
				s.logger.Error("Job loop ended", "job", j.Name(), "error", err)
				errChan <- fmt.Errorf("job %s failed: %w", j.Name(), err)
			}
		}(job)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

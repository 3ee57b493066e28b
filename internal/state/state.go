package state

import (
	"context"
	"errors"
	"fmt"
	"io"

	"herald/internal/components"
	"herald/internal/config"
	"herald/internal/core"
)

// State is everything a running herald process owns. Close releases it.
type State struct {
	Config    *config.Config
	Registry  *components.Registry
	Scheduler *core.Scheduler

	closers []io.Closer
}

func NewState(cfg *config.Config, registry *components.Registry, scheduler *core.Scheduler, closers []io.Closer) *State {
	return &State{
		Config:    cfg,
		Registry:  registry,
		Scheduler: scheduler,
		closers:   closers,
	}
}

// Close closes collaborators in reverse creation order, then the shared
// components.
func (s *State) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close collaborator: %w", err))
		}
	}
	s.closers = nil

	if s.Registry != nil {
		if err := s.Registry.CloseAll(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

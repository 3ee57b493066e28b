// Package components owns the long-lived shared resources that collaborators
// are built on: the database, the Redis client, the browser and the HTTP
// server.
package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"herald/internal/graph"
)

const (
	StorageComponentName = "storage"
	RedisComponentName   = "redis"
	BrowserComponentName = "browser"
	HTTPComponentName    = "http"
)

type IComponent interface {
	Name() string
	Dependencies() []string
	Validate() error
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error
}

type Registry struct {
	components map[string]IComponent
	order      []string
	logger     *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		components: make(map[string]IComponent),
		order:      make([]string, 0),
		logger:     logger,
	}
}

func (r *Registry) Register(component IComponent) error {
	name := component.Name()
	if _, exists := r.components[name]; exists {
		return fmt.Errorf("component %s already registered", name)
	}
	r.components[name] = component
	return nil
}

func (r *Registry) Get(name string) (IComponent, bool) {
	comp, exists := r.components[name]
	return comp, exists
}

// Lookup returns the component registered under name as a T.
func Lookup[T IComponent](r *Registry, name string) (T, error) {
	var zero T
	comp, exists := r.Get(name)
	if !exists {
		return zero, fmt.Errorf("component %s not registered", name)
	}
	typed, ok := comp.(T)
	if !ok {
		return zero, fmt.Errorf("component %s has unexpected type %T", name, comp)
	}
	return typed, nil
}

func (r *Registry) InitializeAll(ctx context.Context) error {
	nodes := make(map[string]graph.Node)
	for name, comp := range r.components {
		nodes[name] = &componentNode{comp: comp}
	}

	if err := graph.ValidateGraph(nodes); err != nil {
		return err
	}

	order, err := graph.TopologicalSort(nodes)
	if err != nil {
		return err
	}

	for _, name := range order {
		comp := r.components[name]
		if err := comp.Validate(); err != nil {
			return fmt.Errorf("component %s validation failed: %w", name, err)
		}
	}

	for _, name := range order {
		comp := r.components[name]
		if err := comp.Initialize(ctx); err != nil {
			return fmt.Errorf("component %s initialization failed: %w", name, err)
		}
		r.order = append(r.order, name)
		r.logger.Debug("Initialized component", "component", name)
	}

	return nil
}

type componentNode struct {
	comp IComponent
}

func (cn *componentNode) GetName() string {
	return cn.comp.Name()
}

func (cn *componentNode) GetDependencies() []string {
	return cn.comp.Dependencies()
}

// CloseAll closes initialized components in reverse initialization order.
func (r *Registry) CloseAll(ctx context.Context) error {
	var errs []error
	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		comp := r.components[name]
		if err := comp.Close(ctx); err != nil {
			r.logger.Error("Error closing component", "component", name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	r.order = r.order[:0]
	return errors.Join(errs...)
}

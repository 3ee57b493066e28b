package types

import (
	"errors"
	"fmt"
)

// StageError records which pipeline stage and collaborator failed.
type StageError struct {
	Stage     string
	Component string
	Err       error
}

func (e *StageError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Stage, e.Component, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func NewStageError(stage, component string, err error) *StageError {
	return &StageError{
		Stage:     stage,
		Component: component,
		Err:       err,
	}
}

// StageOf returns the failing stage of err, or "" if err did not come from
// the pipeline.
func StageOf(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

type ConfigError struct {
	Section string
	Name    string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("config %s: %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("config %s.%s: %s", e.Section, e.Name, e.Reason)
}

func NewConfigError(section, name, reason string) *ConfigError {
	return &ConfigError{
		Section: section,
		Name:    name,
		Reason:  reason,
	}
}

func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"herald/internal/metrics"
	"herald/internal/types"
)

// ErrPostsRearranged is returned when an enricher replaces, removes or
// reorders the posts it was given instead of mutating them in place.
var ErrPostsRearranged = errors.New("enricher rearranged posts")

// Stages are the collaborators of one job, in declared order.
type Stages struct {
	Job          string
	Sources      []types.Source
	Extractors   []types.Extractor
	Tracker      types.Tracker
	Enrichers    []types.Enricher
	Destinations []types.Destination
}

func (s Stages) Validate() error {
	if len(s.Sources) == 0 {
		return fmt.Errorf("job %s: no sources", s.Job)
	}
	if len(s.Extractors) == 0 {
		return fmt.Errorf("job %s: no extractors", s.Job)
	}
	if s.Tracker == nil {
		return fmt.Errorf("job %s: no tracker", s.Job)
	}
	if len(s.Destinations) == 0 {
		return fmt.Errorf("job %s: no destinations", s.Job)
	}
	return nil
}

// Executor runs a single fetch, extract, dedup, enrich, deliver and commit
// cycle. It keeps no state between runs.
type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// RunPipeline returns nil when the run completes or finds nothing new. Any
// collaborator error aborts the run and is returned as a *types.StageError.
func (e *Executor) RunPipeline(ctx context.Context, stages Stages) error {
	logger := e.logger.With("job", stages.Job)

	documents := make([]*types.SourceDocument, 0, len(stages.Sources))
	for _, source := range stages.Sources {
		doc, err := source.GetContent(ctx)
		if err != nil {
			return types.NewStageError("source", source.Name(), err)
		}
		logger.Debug("Fetched document", "source", source.Name(), "address", doc.Address, "bytes", len(doc.Body))
		documents = append(documents, doc)
	}

	var posts []*types.ExtractedPost
	for _, doc := range documents {
		for _, extractor := range stages.Extractors {
			extracted, err := extractor.ExtractPosts(doc)
			if err != nil {
				return types.NewStageError("extractor", extractor.Name(), fmt.Errorf("extract from %s: %w", doc.Address, err))
			}
			logger.Debug("Extracted posts", "extractor", extractor.Name(), "address", doc.Address, "count", len(extracted))
			posts = append(posts, extracted...)
		}
	}

	metrics.ObserveExtracted(stages.Job, len(posts))

	if len(posts) == 0 {
		logger.Info("No posts extracted")
		return nil
	}

	unseen, err := stages.Tracker.GetUnseen(ctx, posts)
	if err != nil {
		return types.NewStageError("tracker", stages.Tracker.Name(), err)
	}

	logger.Info("Found unseen posts", "extracted", len(posts), "unseen", len(unseen))

	if len(unseen) == 0 {
		return nil
	}

	snapshot := slices.Clone(unseen)
	for _, enricher := range stages.Enrichers {
		if err := enricher.Enrich(ctx, unseen); err != nil {
			return types.NewStageError("enricher", enricher.Name(), err)
		}
		if !slices.Equal(unseen, snapshot) {
			return types.NewStageError("enricher", enricher.Name(), ErrPostsRearranged)
		}
	}

	for _, destination := range stages.Destinations {
		if err := destination.Share(ctx, unseen); err != nil {
			return types.NewStageError("destination", destination.Name(), err)
		}
		logger.Debug("Shared posts", "destination", destination.Name(), "count", len(unseen))
	}

	if err := stages.Tracker.SetSeen(ctx, unseen); err != nil {
		return types.NewStageError("tracker", stages.Tracker.Name(), err)
	}

	metrics.ObserveDelivered(stages.Job, len(unseen))
	logger.Info("Delivered posts", "count", len(unseen), "destinations", len(stages.Destinations))
	return nil
}

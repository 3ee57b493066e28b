package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/types"
)

func newStages(rec *recorder, tracker *fakeTracker) (Stages, *fakeEnricher, *fakeDestination, *fakeDestination) {
	enricher := &fakeEnricher{name: "enrich", rec: rec}
	first := &fakeDestination{name: "first", rec: rec}
	second := &fakeDestination{name: "second", rec: rec}

	return Stages{
		Job: "test",
		Sources: []types.Source{
			&fakeSource{name: "s1", doc: &types.SourceDocument{Address: "https://one/"}, rec: rec},
		},
		Extractors: []types.Extractor{
			&fakeExtractor{name: "e1", permalinks: []string{"a", "b", "c"}, rec: rec},
		},
		Tracker:      tracker,
		Enrichers:    []types.Enricher{enricher},
		Destinations: []types.Destination{first, second},
	}, enricher, first, second
}

func TestRunPipelineKeepsTrackerOrder(t *testing.T) {
	rec := &recorder{}
	tracker := &fakeTracker{
		rec: rec,
		pick: func(posts []*types.ExtractedPost) []*types.ExtractedPost {
			return []*types.ExtractedPost{posts[2], posts[0]}
		},
	}
	stages, enricher, first, second := newStages(rec, tracker)

	err := NewExecutor(nil).RunPipeline(context.Background(), stages)
	require.NoError(t, err)

	want := []string{"https://one/c", "https://one/a"}
	assert.Equal(t, []string{"https://one/a", "https://one/b", "https://one/c"}, permalinks(tracker.candidates))
	assert.Equal(t, want, permalinks(enricher.got))
	require.Len(t, first.shared, 1)
	require.Len(t, second.shared, 1)
	assert.Equal(t, want, permalinks(first.shared[0]))
	assert.Equal(t, want, permalinks(second.shared[0]))
	assert.Equal(t, want, permalinks(tracker.committed))

	assert.Equal(t, []string{
		"source:s1",
		"extractor:e1:https://one/",
		"tracker:get",
		"enricher:enrich",
		"destination:first",
		"destination:second",
		"tracker:set",
	}, rec.Calls())
}

func TestRunPipelineConcatenatesSourcesThenExtractors(t *testing.T) {
	rec := &recorder{}
	tracker := &fakeTracker{rec: rec}
	dest := &fakeDestination{name: "d", rec: rec}

	stages := Stages{
		Job: "multi",
		Sources: []types.Source{
			&fakeSource{name: "s1", doc: &types.SourceDocument{Address: "1/"}, rec: rec},
			&fakeSource{name: "s2", doc: &types.SourceDocument{Address: "2/"}, rec: rec},
		},
		Extractors: []types.Extractor{
			&fakeExtractor{name: "x", permalinks: []string{"x1", "x2"}, rec: rec},
			&fakeExtractor{name: "y", permalinks: []string{"y1"}, rec: rec},
		},
		Tracker:      tracker,
		Destinations: []types.Destination{dest},
	}

	require.NoError(t, NewExecutor(nil).RunPipeline(context.Background(), stages))

	assert.Equal(t, []string{"1/x1", "1/x2", "1/y1", "2/x1", "2/x2", "2/y1"}, permalinks(tracker.candidates))
	assert.Equal(t, []string{
		"source:s1",
		"source:s2",
		"extractor:x:1/",
		"extractor:y:1/",
		"extractor:x:2/",
		"extractor:y:2/",
		"tracker:get",
		"destination:d",
		"tracker:set",
	}, rec.Calls())
}

func TestRunPipelineZeroPostsSkipsTracker(t *testing.T) {
	rec := &recorder{}
	tracker := &fakeTracker{rec: rec}
	stages, _, _, _ := newStages(rec, tracker)
	stages.Extractors = []types.Extractor{&fakeExtractor{name: "empty", rec: rec}}

	require.NoError(t, NewExecutor(nil).RunPipeline(context.Background(), stages))

	assert.Equal(t, []string{"source:s1", "extractor:empty:https://one/"}, rec.Calls())
}

func TestRunPipelineNothingUnseen(t *testing.T) {
	rec := &recorder{}
	tracker := &fakeTracker{
		rec:  rec,
		seen: map[string]bool{"https://one/a": true, "https://one/b": true, "https://one/c": true},
	}
	stages, _, first, _ := newStages(rec, tracker)

	require.NoError(t, NewExecutor(nil).RunPipeline(context.Background(), stages))

	assert.Equal(t, []string{"source:s1", "extractor:e1:https://one/", "tracker:get"}, rec.Calls())
	assert.Empty(t, first.shared)
	assert.Empty(t, tracker.committed)
}

func TestRunPipelineSecondRunDeliversNothing(t *testing.T) {
	rec := &recorder{}
	tracker := &fakeTracker{rec: rec}
	stages, _, first, _ := newStages(rec, tracker)
	executor := NewExecutor(nil)

	require.NoError(t, executor.RunPipeline(context.Background(), stages))
	require.NoError(t, executor.RunPipeline(context.Background(), stages))

	require.Len(t, first.shared, 1)
	assert.Len(t, first.shared[0], 3)
}

func TestRunPipelineEnricherMutationsReachDestinations(t *testing.T) {
	rec := &recorder{}
	tracker := &fakeTracker{rec: rec}
	stages, enricher, first, _ := newStages(rec, tracker)
	enricher.mutate = func(p *types.ExtractedPost) { p.Title = "enriched " + p.Permalink }
	second := &fakeEnricher{name: "second", rec: rec, mutate: func(p *types.ExtractedPost) { p.Title += "!" }}
	stages.Enrichers = append(stages.Enrichers, second)

	require.NoError(t, NewExecutor(nil).RunPipeline(context.Background(), stages))

	assert.Equal(t, []string{
		"enriched https://one/a!",
		"enriched https://one/b!",
		"enriched https://one/c!",
	}, first.titles)
}

func TestRunPipelineRejectsRearrangingEnricher(t *testing.T) {
	tests := []struct {
		name      string
		rearrange func(posts []*types.ExtractedPost)
	}{
		{"swap", func(posts []*types.ExtractedPost) { posts[0], posts[1] = posts[1], posts[0] }},
		{"drop", func(posts []*types.ExtractedPost) { posts[2] = nil }},
		{"replace", func(posts []*types.ExtractedPost) { posts[1] = types.NewExtractedPost("https://other/") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			tracker := &fakeTracker{rec: rec}
			stages, enricher, first, _ := newStages(rec, tracker)
			enricher.rearrange = tt.rearrange

			err := NewExecutor(nil).RunPipeline(context.Background(), stages)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPostsRearranged)
			assert.Equal(t, "enricher", types.StageOf(err))
			assert.Empty(t, first.shared)
			assert.Empty(t, tracker.committed)
		})
	}
}

func TestRunPipelineDestinationFailureSkipsCommit(t *testing.T) {
	rec := &recorder{}
	tracker := &fakeTracker{rec: rec}
	stages, _, first, second := newStages(rec, tracker)
	cause := errors.New("webhook down")
	first.err = cause

	err := NewExecutor(nil).RunPipeline(context.Background(), stages)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "destination", types.StageOf(err))

	assert.Empty(t, second.shared)
	assert.Empty(t, tracker.committed)
	assert.NotContains(t, rec.Calls(), "tracker:set")

	first.err = nil
	require.NoError(t, NewExecutor(nil).RunPipeline(context.Background(), stages))
	require.Len(t, second.shared, 1)
	assert.Len(t, second.shared[0], 3)
}

func TestRunPipelineStageErrors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name   string
		mutate func(stages *Stages, tracker *fakeTracker, enricher *fakeEnricher)
		stage  string
		calls  []string
	}{
		{
			name: "source",
			mutate: func(s *Stages, _ *fakeTracker, _ *fakeEnricher) {
				s.Sources[0].(*fakeSource).err = cause
			},
			stage: "source",
			calls: []string{"source:s1"},
		},
		{
			name: "extractor",
			mutate: func(s *Stages, _ *fakeTracker, _ *fakeEnricher) {
				s.Extractors[0].(*fakeExtractor).err = cause
			},
			stage: "extractor",
			calls: []string{"source:s1", "extractor:e1:https://one/"},
		},
		{
			name: "tracker",
			mutate: func(_ *Stages, tr *fakeTracker, _ *fakeEnricher) {
				tr.getErr = cause
			},
			stage: "tracker",
			calls: []string{"source:s1", "extractor:e1:https://one/", "tracker:get"},
		},
		{
			name: "enricher",
			mutate: func(_ *Stages, _ *fakeTracker, e *fakeEnricher) {
				e.err = cause
			},
			stage: "enricher",
			calls: []string{"source:s1", "extractor:e1:https://one/", "tracker:get", "enricher:enrich"},
		},
		{
			name: "commit",
			mutate: func(_ *Stages, tr *fakeTracker, _ *fakeEnricher) {
				tr.setErr = cause
			},
			stage: "tracker",
			calls: []string{
				"source:s1", "extractor:e1:https://one/", "tracker:get", "enricher:enrich",
				"destination:first", "destination:second", "tracker:set",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			tracker := &fakeTracker{rec: rec}
			stages, enricher, _, _ := newStages(rec, tracker)
			tt.mutate(&stages, tracker, enricher)

			err := NewExecutor(nil).RunPipeline(context.Background(), stages)
			require.Error(t, err)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, tt.stage, types.StageOf(err))
			assert.Equal(t, tt.calls, rec.Calls())
		})
	}
}

func TestStagesValidate(t *testing.T) {
	rec := &recorder{}
	stages, _, _, _ := newStages(rec, &fakeTracker{rec: rec})
	assert.NoError(t, stages.Validate())

	missingTracker := stages
	missingTracker.Tracker = nil
	assert.Error(t, missingTracker.Validate())

	missingDest := stages
	missingDest.Destinations = nil
	assert.Error(t, missingDest.Validate())
}

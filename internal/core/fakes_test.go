package core

import (
	"context"
	"sync"

	"herald/internal/types"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeSource struct {
	name string
	doc  *types.SourceDocument
	err  error
	rec  *recorder
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) GetContent(ctx context.Context) (*types.SourceDocument, error) {
	s.rec.record("source:" + s.name)
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

// fakeExtractor returns one post per permalink, prefixed with the document
// address so ordering across sources is observable.
type fakeExtractor struct {
	name       string
	permalinks []string
	err        error
	rec        *recorder
}

func (e *fakeExtractor) Name() string { return e.name }

func (e *fakeExtractor) ExtractPosts(doc *types.SourceDocument) ([]*types.ExtractedPost, error) {
	e.rec.record("extractor:" + e.name + ":" + doc.Address)
	if e.err != nil {
		return nil, e.err
	}
	posts := make([]*types.ExtractedPost, 0, len(e.permalinks))
	for _, p := range e.permalinks {
		posts = append(posts, types.NewExtractedPost(doc.Address+p))
	}
	return posts, nil
}

// fakeTracker returns unseen posts through pick, or everything not yet
// committed when pick is nil.
type fakeTracker struct {
	rec        *recorder
	pick       func(posts []*types.ExtractedPost) []*types.ExtractedPost
	getErr     error
	setErr     error
	candidates []*types.ExtractedPost
	committed  []*types.ExtractedPost
	seen       map[string]bool
}

func (t *fakeTracker) Name() string { return "tracker" }

func (t *fakeTracker) GetUnseen(ctx context.Context, posts []*types.ExtractedPost) ([]*types.ExtractedPost, error) {
	t.rec.record("tracker:get")
	t.candidates = posts
	if t.getErr != nil {
		return nil, t.getErr
	}
	if t.pick != nil {
		return t.pick(posts), nil
	}
	return types.FirstUnseen(posts, func(p string) bool { return t.seen[p] }), nil
}

func (t *fakeTracker) SetSeen(ctx context.Context, posts []*types.ExtractedPost) error {
	t.rec.record("tracker:set")
	if t.setErr != nil {
		return t.setErr
	}
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	for _, p := range posts {
		t.seen[p.Permalink] = true
	}
	t.committed = append(t.committed, posts...)
	return nil
}

type fakeEnricher struct {
	name   string
	rec    *recorder
	err    error
	mutate func(post *types.ExtractedPost)
	// rearrange, when set, edits the slice itself.
	rearrange func(posts []*types.ExtractedPost)
	got       []*types.ExtractedPost
}

func (e *fakeEnricher) Name() string { return e.name }

func (e *fakeEnricher) Enrich(ctx context.Context, posts []*types.ExtractedPost) error {
	e.rec.record("enricher:" + e.name)
	e.got = append([]*types.ExtractedPost(nil), posts...)
	if e.err != nil {
		return e.err
	}
	if e.mutate != nil {
		for _, p := range posts {
			e.mutate(p)
		}
	}
	if e.rearrange != nil {
		e.rearrange(posts)
	}
	return nil
}

type fakeDestination struct {
	name   string
	rec    *recorder
	err    error
	shared [][]*types.ExtractedPost
	titles []string
}

func (d *fakeDestination) Name() string { return d.name }

func (d *fakeDestination) Share(ctx context.Context, posts []*types.ExtractedPost) error {
	d.rec.record("destination:" + d.name)
	if d.err != nil {
		return d.err
	}
	d.shared = append(d.shared, append([]*types.ExtractedPost(nil), posts...))
	for _, p := range posts {
		d.titles = append(d.titles, p.Title)
	}
	return nil
}

func permalinks(posts []*types.ExtractedPost) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Permalink)
	}
	return out
}

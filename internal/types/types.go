package types

import (
	"context"
	"slices"
	"time"
)

// SourceDocument is the raw payload fetched by a Source.
type SourceDocument struct {
	Address     string
	ContentType string
	Body        []byte
}

func (d *SourceDocument) String() string {
	return string(d.Body)
}

// ExtractedPost is a single harvested item. Permalink is its identity.
type ExtractedPost struct {
	Permalink string
	Author    string
	Title     string
	Body      string
	Summary   string
	Avatar    string
	Thumbnail string
	Published time.Time
	Links     []string
	Media     []string
}

func NewExtractedPost(permalink string) *ExtractedPost {
	return &ExtractedPost{Permalink: permalink}
}

func (p *ExtractedPost) AddLink(uri string) {
	if uri == "" || slices.Contains(p.Links, uri) {
		return
	}
	p.Links = append(p.Links, uri)
}

func (p *ExtractedPost) AddMedia(uri string) {
	if uri == "" || slices.Contains(p.Media, uri) {
		return
	}
	p.Media = append(p.Media, uri)
}

// ReplaceMedia swaps every occurrence of from with to across media, avatar
// and thumbnail. It reports whether any field changed.
func (p *ExtractedPost) ReplaceMedia(from, to string) bool {
	changed := false
	for i, uri := range p.Media {
		if uri == from {
			p.Media[i] = to
			changed = true
		}
	}

	if p.Avatar == from {
		p.Avatar = to
		changed = true
	}
	if p.Thumbnail == from {
		p.Thumbnail = to
		changed = true
	}
	return changed
}

// MediaURIs returns the distinct media and avatar references of the post.
func (p *ExtractedPost) MediaURIs() []string {
	uris := make([]string, 0, len(p.Media)+1)
	for _, uri := range p.Media {
		if uri != "" && !slices.Contains(uris, uri) {
			uris = append(uris, uri)
		}
	}
	if p.Avatar != "" && !slices.Contains(uris, p.Avatar) {
		uris = append(uris, p.Avatar)
	}
	return uris
}

type Source interface {
	Name() string
	GetContent(ctx context.Context) (*SourceDocument, error)
}

type Extractor interface {
	Name() string
	ExtractPosts(doc *SourceDocument) ([]*ExtractedPost, error)
}

// Tracker remembers which permalinks have been delivered.
type Tracker interface {
	Name() string
	GetUnseen(ctx context.Context, posts []*ExtractedPost) ([]*ExtractedPost, error)
	SetSeen(ctx context.Context, posts []*ExtractedPost) error
}

type Enricher interface {
	Name() string
	Enrich(ctx context.Context, posts []*ExtractedPost) error
}

type Destination interface {
	Name() string
	Share(ctx context.Context, posts []*ExtractedPost) error
}

// FirstUnseen keeps the first occurrence of every permalink for which seen
// returns false, preserving candidate order.
func FirstUnseen(posts []*ExtractedPost, seen func(permalink string) bool) []*ExtractedPost {
	unseen := make([]*ExtractedPost, 0, len(posts))
	picked := make(map[string]struct{}, len(posts))
	for _, post := range posts {
		if _, ok := picked[post.Permalink]; ok {
			continue
		}
		if seen(post.Permalink) {
			continue
		}
		picked[post.Permalink] = struct{}{}
		unseen = append(unseen, post)
	}
	return unseen
}

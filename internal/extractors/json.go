package extractors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"

	"herald/internal/types"
	"herald/internal/utils"
)

// JSONConfig holds templates evaluated once per item with .item set to the
// decoded item and .source to the document metadata.
type JSONConfig struct {
	ItemPath        string
	PermalinkFormat string
	TitleFormat     string
	SummaryFormat   string
	BodyFormat      string
	AuthorFormat    string
	AvatarFormat    string
	ThumbnailFormat string
	// MediaFormat may render several URLs separated by whitespace.
	MediaFormat     string
	PublishedFormat string
}

type JSONExtractor struct {
	name      string
	itemPath  []string
	permalink *template.Template
	title     *template.Template
	summary   *template.Template
	body      *template.Template
	author    *template.Template
	avatar    *template.Template
	thumbnail *template.Template
	media     *template.Template
	published *template.Template
}

func NewJSONExtractor(name string, config JSONConfig) (*JSONExtractor, error) {
	if config.PermalinkFormat == "" {
		return nil, fmt.Errorf("extractor %s: permalink_format is required", name)
	}

	e := &JSONExtractor{name: name}
	if config.ItemPath != "" {
		e.itemPath = strings.Split(config.ItemPath, ".")
	}

	formats := []struct {
		key  string
		text string
		dst  **template.Template
	}{
		{"permalink_format", config.PermalinkFormat, &e.permalink},
		{"title_format", config.TitleFormat, &e.title},
		{"summary_format", config.SummaryFormat, &e.summary},
		{"body_format", config.BodyFormat, &e.body},
		{"author_format", config.AuthorFormat, &e.author},
		{"avatar_format", config.AvatarFormat, &e.avatar},
		{"thumbnail_format", config.ThumbnailFormat, &e.thumbnail},
		{"media_format", config.MediaFormat, &e.media},
		{"published_format", config.PublishedFormat, &e.published},
	}

	for _, f := range formats {
		if f.text == "" {
			continue
		}
		tmpl, err := utils.ParseTemplate(name+"-"+f.key, f.text)
		if err != nil {
			return nil, fmt.Errorf("extractor %s: invalid %s: %w", name, f.key, err)
		}
		*f.dst = tmpl
	}

	return e, nil
}

func (e *JSONExtractor) Name() string {
	return e.name
}

func (e *JSONExtractor) ExtractPosts(doc *types.SourceDocument) ([]*types.ExtractedPost, error) {
	decoder := json.NewDecoder(bytes.NewReader(doc.Body))
	decoder.UseNumber()

	var root any
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	node, err := lookupPath(root, e.itemPath)
	if err != nil {
		return nil, err
	}

	items, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("item_path %q is not an array", strings.Join(e.itemPath, "."))
	}

	base, _ := url.Parse(doc.Address)
	source := map[string]any{
		"address":      doc.Address,
		"content_type": doc.ContentType,
	}

	posts := make([]*types.ExtractedPost, 0, len(items))
	for i, item := range items {
		data := map[string]any{"item": item, "source": source}

		permalink, err := utils.RenderTemplate(e.permalink, data)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		permalink = resolveURL(base, permalink)
		if permalink == "" {
			continue
		}

		post := types.NewExtractedPost(permalink)
		fields := []struct {
			tmpl *template.Template
			dst  *string
		}{
			{e.title, &post.Title},
			{e.summary, &post.Summary},
			{e.body, &post.Body},
			{e.author, &post.Author},
			{e.avatar, &post.Avatar},
			{e.thumbnail, &post.Thumbnail},
		}
		for _, f := range fields {
			if *f.dst, err = utils.RenderTemplate(f.tmpl, data); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
		}
		post.Avatar = resolveURL(base, post.Avatar)
		post.Thumbnail = resolveURL(base, post.Thumbnail)

		media, err := utils.RenderTemplate(e.media, data)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		for _, uri := range strings.Fields(media) {
			post.AddMedia(resolveURL(base, uri))
		}

		published, err := utils.RenderTemplate(e.published, data)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		post.Published = parseTime(published)

		posts = append(posts, post)
	}

	return posts, nil
}

func lookupPath(node any, path []string) (any, error) {
	for i, key := range path {
		switch v := node.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, fmt.Errorf("item_path: key %q not found", strings.Join(path[:i+1], "."))
			}
			node = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("item_path: invalid index %q", strings.Join(path[:i+1], "."))
			}
			node = v[idx]
		default:
			return nil, fmt.Errorf("item_path: cannot descend into %q", strings.Join(path[:i], "."))
		}
	}
	return node, nil
}

// parseTime accepts RFC 3339 strings and unix seconds.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Unix(int64(f), 0).UTC()
	}
	return time.Time{}
}

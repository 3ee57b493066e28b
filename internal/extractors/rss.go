// Package extractors turns fetched documents into posts.
package extractors

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"herald/internal/types"
	"herald/internal/utils"
)

type RSSConfig struct {
	SummaryLength int
	MaxItems      int
}

// RSSExtractor parses RSS, Atom and JSON Feed documents.
type RSSExtractor struct {
	name   string
	config RSSConfig
}

func NewRSSExtractor(name string, config RSSConfig) *RSSExtractor {
	if config.SummaryLength <= 0 {
		config.SummaryLength = 500
	}
	if config.MaxItems < 0 {
		config.MaxItems = 0
	}

	return &RSSExtractor{
		name:   name,
		config: config,
	}
}

func (r *RSSExtractor) Name() string {
	return r.name
}

func (r *RSSExtractor) ExtractPosts(doc *types.SourceDocument) ([]*types.ExtractedPost, error) {
	feed, err := gofeed.NewParser().ParseString(doc.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	base, _ := url.Parse(doc.Address)

	posts := make([]*types.ExtractedPost, 0, len(feed.Items))
	for _, item := range feed.Items {
		if r.config.MaxItems > 0 && len(posts) >= r.config.MaxItems {
			break
		}

		post := r.convertItem(base, item)
		if post == nil {
			continue
		}
		posts = append(posts, post)
	}

	return posts, nil
}

func (r *RSSExtractor) convertItem(base *url.URL, item *gofeed.Item) *types.ExtractedPost {
	link := item.Link
	if link == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}
	permalink := resolveURL(base, link)
	if permalink == "" {
		return nil
	}

	post := types.NewExtractedPost(permalink)
	post.Title = strings.TrimSpace(html.UnescapeString(item.Title))

	if item.Author != nil {
		post.Author = item.Author.Name
		if post.Author == "" {
			post.Author = item.Author.Email
		}
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	post.Body = body

	summary := item.Description
	if summary == "" {
		summary = item.Content
	}
	post.Summary = utils.StripHTML(summary, r.config.SummaryLength)

	if item.PublishedParsed != nil {
		post.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		post.Published = *item.UpdatedParsed
	}

	for _, l := range item.Links {
		post.AddLink(resolveURL(base, l))
	}

	if item.Image != nil {
		image := resolveURL(base, item.Image.URL)
		post.AddMedia(image)
		post.Thumbnail = image
	}

	for _, enclosure := range item.Enclosures {
		if strings.HasPrefix(enclosure.Type, "image/") || strings.HasPrefix(enclosure.Type, "video/") {
			post.AddMedia(resolveURL(base, enclosure.URL))
		}
	}

	contents, thumbnails := mediaExtensions(item.Extensions)
	for _, content := range contents {
		post.AddMedia(resolveURL(base, content))
	}
	if post.Thumbnail == "" && len(thumbnails) > 0 {
		post.Thumbnail = resolveURL(base, thumbnails[0])
	}

	return post
}

// mediaExtensions collects media:content and media:thumbnail URLs, looking
// inside media:group as well.
func mediaExtensions(extensions ext.Extensions) (contents, thumbnails []string) {
	media, ok := extensions["media"]
	if !ok {
		return nil, nil
	}

	var walk func(map[string][]ext.Extension)
	walk = func(nodes map[string][]ext.Extension) {
		for _, e := range nodes["content"] {
			medium := e.Attrs["medium"]
			if medium != "" && medium != "image" && medium != "video" {
				continue
			}
			if u := e.Attrs["url"]; u != "" {
				contents = append(contents, u)
			}
			walk(e.Children)
		}
		for _, e := range nodes["thumbnail"] {
			if u := e.Attrs["url"]; u != "" {
				thumbnails = append(thumbnails, u)
			}
		}
		for _, group := range nodes["group"] {
			walk(group.Children)
		}
	}
	walk(media)

	return contents, thumbnails
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil || parsed.IsAbs() {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

package extractors

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"herald/internal/types"
	"herald/internal/utils"
)

type HTMLConfig struct {
	Item              string
	Permalink         string
	PermalinkAttr     string
	PermalinkContains string
	Title             string
	Body              string
	Author            string
	Avatar            string
	Media             string
	Link              string
}

// HTMLExtractor selects repeated items from a page with CSS selectors. All
// selectors other than Item are relative to the item.
type HTMLExtractor struct {
	name   string
	config HTMLConfig
}

func NewHTMLExtractor(name string, config HTMLConfig) (*HTMLExtractor, error) {
	if config.Item == "" {
		return nil, fmt.Errorf("extractor %s: item selector is required", name)
	}
	if config.Permalink == "" {
		config.Permalink = "a"
	}
	if config.PermalinkAttr == "" {
		config.PermalinkAttr = "href"
	}

	return &HTMLExtractor{
		name:   name,
		config: config,
	}, nil
}

func (h *HTMLExtractor) Name() string {
	return h.name
}

func (h *HTMLExtractor) ExtractPosts(doc *types.SourceDocument) ([]*types.ExtractedPost, error) {
	document, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, _ := url.Parse(doc.Address)

	var posts []*types.ExtractedPost
	document.Find(h.config.Item).Each(func(_ int, item *goquery.Selection) {
		permalink := h.permalink(base, item)
		if permalink == "" {
			return
		}

		post := types.NewExtractedPost(permalink)
		post.Title = selectText(item, h.config.Title)
		post.Author = selectText(item, h.config.Author)

		if h.config.Body != "" {
			post.Body = strings.TrimSpace(item.Find(h.config.Body).First().Text())
			post.Summary = utils.StripHTML(post.Body, 500)
		}

		if h.config.Avatar != "" {
			post.Avatar = resolveURL(base, item.Find(h.config.Avatar).First().AttrOr("src", ""))
		}

		if h.config.Media != "" {
			item.Find(h.config.Media).Each(func(_ int, media *goquery.Selection) {
				post.AddMedia(resolveURL(base, media.AttrOr("src", "")))
			})
		}

		if h.config.Link != "" {
			item.Find(h.config.Link).Each(func(_ int, link *goquery.Selection) {
				post.AddLink(resolveURL(base, link.AttrOr("href", "")))
			})
		}

		posts = append(posts, post)
	})

	return posts, nil
}

// permalink returns the first candidate under the permalink selector that
// satisfies PermalinkContains.
func (h *HTMLExtractor) permalink(base *url.URL, item *goquery.Selection) string {
	var candidates []string
	item.Find(h.config.Permalink).Each(func(_ int, s *goquery.Selection) {
		if href := resolveURL(base, s.AttrOr(h.config.PermalinkAttr, "")); href != "" {
			candidates = append(candidates, href)
		}
	})

	if h.config.PermalinkContains != "" {
		candidates = utils.Filter(candidates, func(c string) bool {
			return strings.Contains(c, h.config.PermalinkContains)
		})
	}

	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

func selectText(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(item.Find(selector).First().Text()), " ")
}

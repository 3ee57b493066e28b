package enrichers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/types"
)

const articlePage = `<!DOCTYPE html>
<html>
<head>
  <title>Herald Launch Notes</title>
  <meta property="og:title" content="Herald Launch Notes">
  <meta name="author" content="Ada Lovelace">
  <meta name="description" content="What shipped in the first release.">
  <meta property="og:image" content="https://example.com/cover.png">
</head>
<body>
  <nav><a href="/">Home</a></nav>
  <article>
    <h1>Herald Launch Notes</h1>
    <p>` + loremParagraph + `</p>
    <p>` + loremParagraph + `</p>
    <p>` + loremParagraph + `</p>
  </article>
  <footer>Copyright</footer>
</body>
</html>`

const loremParagraph = `The harvesting pipeline reads every configured source in order, runs the
documents through each extractor, asks the tracker which permalinks are new, enriches those posts and
hands them to every destination before committing them as seen. Jobs run on a cron schedule with a
random delay added to each run so that many jobs sharing a schedule do not hit their sources at once.`

func newArticleServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestArticleFillsEmptyFields(t *testing.T) {
	server := newArticleServer(t)
	enricher := NewArticle("article", ArticleConfig{}, nil)

	post := types.NewExtractedPost(server.URL + "/post")
	post.Title = "Extracted title"

	require.NoError(t, enricher.Enrich(context.Background(), []*types.ExtractedPost{post}))

	assert.Equal(t, "Extracted title", post.Title)
	assert.Contains(t, post.Body, "harvesting pipeline reads every configured source")
	assert.Equal(t, "Ada Lovelace", post.Author)
	assert.Equal(t, "What shipped in the first release.", post.Summary)
	assert.Equal(t, "https://example.com/cover.png", post.Thumbnail)
}

func TestArticleOverwrite(t *testing.T) {
	server := newArticleServer(t)
	enricher := NewArticle("article", ArticleConfig{Overwrite: true}, nil)

	post := types.NewExtractedPost(server.URL + "/post")
	post.Title = "Extracted title"

	require.NoError(t, enricher.Enrich(context.Background(), []*types.ExtractedPost{post}))
	assert.Equal(t, "Herald Launch Notes", post.Title)
}

func TestArticleFailureIsIsolated(t *testing.T) {
	server := newArticleServer(t)
	enricher := NewArticle("article", ArticleConfig{Concurrency: 1}, nil)

	gone := types.NewExtractedPost(server.URL + "/gone")
	gone.Body = "original"
	ok := types.NewExtractedPost(server.URL + "/post")
	invalid := types.NewExtractedPost("not a url")

	require.NoError(t, enricher.Enrich(context.Background(), []*types.ExtractedPost{gone, ok, invalid}))

	assert.Equal(t, "original", gone.Body)
	assert.True(t, strings.Contains(ok.Body, "cron schedule"))
	assert.Empty(t, invalid.Body)
}

func TestArticleCanceled(t *testing.T) {
	enricher := NewArticle("article", ArticleConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	post := types.NewExtractedPost("https://example.invalid/post")
	err := enricher.Enrich(ctx, []*types.ExtractedPost{post})
	assert.ErrorIs(t, err, context.Canceled)
}

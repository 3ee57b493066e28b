package enrichers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/types"
)

type storedObject struct {
	bucket      string
	key         string
	data        []byte
	contentType string
}

type fakeStore struct {
	mu      sync.Mutex
	objects []storedObject
	signed  int
	putErr  error
}

func (s *fakeStore) Put(_ context.Context, bucket, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects = append(s.objects, storedObject{bucket: bucket, key: key, data: data, contentType: contentType})
	return nil
}

func (s *fakeStore) SignedURL(_ context.Context, bucket, key string, expiry time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signed++
	return fmt.Sprintf("https://signed.example/%s/%s?expires=%d", bucket, key, int(expiry.Seconds())), nil
}

func (s *fakeStore) stored() []storedObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storedObject(nil), s.objects...)
}

type mediaServer struct {
	*httptest.Server
	hits sync.Map
}

func newMediaServer(t *testing.T) *mediaServer {
	t.Helper()

	ms := &mediaServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/media1", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/media2", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/untyped", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		w.Header()["Content-Type"] = nil
		w.Write([]byte("raw"))
	})
	mux.HandleFunc("/large", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte(strings.Repeat("x", 64)))
	})

	ms.Server = httptest.NewServer(mux)
	t.Cleanup(ms.Close)
	return ms
}

func (ms *mediaServer) hit(path string) {
	counter, _ := ms.hits.LoadOrStore(path, new(atomic.Int32))
	counter.(*atomic.Int32).Add(1)
}

func (ms *mediaServer) count(path string) int32 {
	counter, ok := ms.hits.Load(path)
	if !ok {
		return 0
	}
	return counter.(*atomic.Int32).Load()
}

func TestMediaCacheReplacesCachedReferences(t *testing.T) {
	server := newMediaServer(t)
	store := &fakeStore{}

	cache, err := NewMediaCache("media", store, MediaCacheConfig{Bucket: "test-bucket"}, nil)
	require.NoError(t, err)

	media1 := server.URL + "/media1"
	media2 := server.URL + "/media2"

	post := types.NewExtractedPost("https://example.com/post/1")
	post.AddMedia(media1)
	post.AddMedia(media2)
	post.Avatar = media1

	require.NoError(t, cache.Enrich(context.Background(), []*types.ExtractedPost{post}))

	objects := store.stored()
	require.Len(t, objects, 1)
	assert.Equal(t, "test-bucket", objects[0].bucket)
	assert.Equal(t, "image/jpeg", objects[0].contentType)
	assert.Equal(t, "jpeg-bytes", string(objects[0].data))

	_, err = uuid.Parse(objects[0].key)
	assert.NoError(t, err, "default key is a bare uuid")

	want := fmt.Sprintf("https://signed.example/test-bucket/%s?expires=%d", objects[0].key, int((7 * 24 * time.Hour).Seconds()))
	assert.Equal(t, []string{want, media2}, post.Media)
	assert.Equal(t, want, post.Avatar)

	assert.Equal(t, int32(1), server.count("/media1"))
	assert.Equal(t, int32(1), server.count("/media2"))
}

func TestMediaCacheKeyFormat(t *testing.T) {
	server := newMediaServer(t)
	store := &fakeStore{}

	cache, err := NewMediaCache("media", store, MediaCacheConfig{
		Bucket:    "b",
		KeyFormat: "test/{{.ID}}{{.Ext}}",
	}, nil)
	require.NoError(t, err)

	post := types.NewExtractedPost("p")
	post.AddMedia(server.URL + "/media1")

	require.NoError(t, cache.Enrich(context.Background(), []*types.ExtractedPost{post}))

	objects := store.stored()
	require.Len(t, objects, 1)
	assert.True(t, strings.HasPrefix(objects[0].key, "test/"))
	assert.True(t, strings.HasSuffix(objects[0].key, ".jpg"))

	id := strings.TrimSuffix(strings.TrimPrefix(objects[0].key, "test/"), ".jpg")
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}

func TestMediaCacheURLFormat(t *testing.T) {
	server := newMediaServer(t)
	store := &fakeStore{}

	cache, err := NewMediaCache("media", store, MediaCacheConfig{
		Bucket:    "b",
		URLFormat: "https://cdn.example.com/{{.Bucket}}/{{.Key}}",
	}, nil)
	require.NoError(t, err)
	cache.newID = func() (string, error) { return "fixed", nil }

	post := types.NewExtractedPost("p")
	post.Thumbnail = server.URL + "/media1"
	post.AddMedia(server.URL + "/media1")

	require.NoError(t, cache.Enrich(context.Background(), []*types.ExtractedPost{post}))

	assert.Equal(t, []string{"https://cdn.example.com/b/fixed"}, post.Media)
	assert.Equal(t, "https://cdn.example.com/b/fixed", post.Thumbnail)
	assert.Zero(t, store.signed)
}

func TestMediaCacheStoreFailureIsIsolated(t *testing.T) {
	server := newMediaServer(t)
	store := &fakeStore{putErr: errors.New("bucket gone")}

	cache, err := NewMediaCache("media", store, MediaCacheConfig{Bucket: "b"}, nil)
	require.NoError(t, err)

	original := server.URL + "/media1"
	post := types.NewExtractedPost("p")
	post.AddMedia(original)
	post.Avatar = original

	require.NoError(t, cache.Enrich(context.Background(), []*types.ExtractedPost{post}))
	assert.Equal(t, []string{original}, post.Media)
	assert.Equal(t, original, post.Avatar)
}

func TestMediaCacheDefaultsContentType(t *testing.T) {
	server := newMediaServer(t)
	store := &fakeStore{}

	cache, err := NewMediaCache("media", store, MediaCacheConfig{Bucket: "b"}, nil)
	require.NoError(t, err)

	post := types.NewExtractedPost("p")
	post.AddMedia(server.URL + "/untyped")

	require.NoError(t, cache.Enrich(context.Background(), []*types.ExtractedPost{post}))

	objects := store.stored()
	require.Len(t, objects, 1)
	assert.Equal(t, "application/octet-stream", objects[0].contentType)
}

func TestMediaCacheMaxBytes(t *testing.T) {
	server := newMediaServer(t)
	store := &fakeStore{}

	cache, err := NewMediaCache("media", store, MediaCacheConfig{Bucket: "b", MaxBytes: 16}, nil)
	require.NoError(t, err)

	original := server.URL + "/large"
	post := types.NewExtractedPost("p")
	post.AddMedia(original)

	require.NoError(t, cache.Enrich(context.Background(), []*types.ExtractedPost{post}))
	assert.Empty(t, store.stored())
	assert.Equal(t, []string{original}, post.Media)
}

func TestMediaCacheManyPosts(t *testing.T) {
	server := newMediaServer(t)
	store := &fakeStore{}

	cache, err := NewMediaCache("media", store, MediaCacheConfig{Bucket: "b", Concurrency: 2}, nil)
	require.NoError(t, err)

	var posts []*types.ExtractedPost
	for i := range 5 {
		post := types.NewExtractedPost(fmt.Sprintf("p%d", i))
		post.AddMedia(server.URL + "/media1")
		posts = append(posts, post)
	}

	require.NoError(t, cache.Enrich(context.Background(), posts))
	assert.Len(t, store.stored(), 5)
	for _, post := range posts {
		assert.True(t, strings.HasPrefix(post.Media[0], "https://signed.example/b/"))
	}
}

func TestMediaCacheCanceled(t *testing.T) {
	store := &fakeStore{}
	cache, err := NewMediaCache("media", store, MediaCacheConfig{Bucket: "b"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	post := types.NewExtractedPost("p")
	post.AddMedia("https://example.invalid/a.png")

	err = cache.Enrich(ctx, []*types.ExtractedPost{post})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.stored())
}

func TestNewMediaCacheValidation(t *testing.T) {
	_, err := NewMediaCache("media", nil, MediaCacheConfig{Bucket: "b"}, nil)
	assert.Error(t, err)

	_, err = NewMediaCache("media", &fakeStore{}, MediaCacheConfig{}, nil)
	assert.Error(t, err)

	_, err = NewMediaCache("media", &fakeStore{}, MediaCacheConfig{Bucket: "b", KeyFormat: "{{.ID"}, nil)
	assert.Error(t, err)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".jpg", extensionFor("image/jpeg", "https://x/a"))
	assert.Equal(t, ".bin", extensionFor("application/octet-stream", "https://x/file.BIN"))
	assert.Equal(t, "", extensionFor("application/x-herald-unknown", "https://x/noext"))
}

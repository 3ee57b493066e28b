package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"herald/internal/metrics"
	"herald/internal/middleware"
)

// FeedRenderer renders a named feed in one of the rss, atom or json formats.
type FeedRenderer interface {
	Render(ctx context.Context, format string) (body string, contentType string, err error)
}

type ServerConfig struct {
	ListenAddr string
	// MediaDir, when set, is served read-only under /media/.
	MediaDir string
}

// ServerComponent serves health, metrics, feeds and cached media over HTTP.
type ServerComponent struct {
	config ServerConfig
	logger *slog.Logger

	mu    sync.RWMutex
	feeds map[string]FeedRenderer

	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

func NewServerComponent(config ServerConfig, logger *slog.Logger) *ServerComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerComponent{
		config: config,
		logger: logger.With("component", HTTPComponentName),
		feeds:  make(map[string]FeedRenderer),
	}
}

func (c *ServerComponent) Name() string {
	return HTTPComponentName
}

func (c *ServerComponent) Dependencies() []string {
	return []string{}
}

func (c *ServerComponent) Validate() error {
	if c.config.ListenAddr == "" {
		return fmt.Errorf("http: listen_addr is required")
	}
	return nil
}

// RegisterFeed exposes renderer at /feeds/<name>.<format>.
func (c *ServerComponent) RegisterFeed(name string, renderer FeedRenderer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.feeds[name]; exists {
		return fmt.Errorf("http: feed %s already registered", name)
	}
	c.feeds[name] = renderer
	return nil
}

func (c *ServerComponent) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(c.logger))

	r.Get("/healthz", c.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/feeds/{file}", c.serveFeed)

	if c.config.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(c.config.MediaDir))))
	}

	return r
}

func (c *ServerComponent) Initialize(ctx context.Context) error {
	listener, err := net.Listen("tcp", c.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("http: failed to listen on %s: %w", c.config.ListenAddr, err)
	}

	c.listener = listener
	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		c.logger.Info("HTTP server started", "addr", listener.Addr().String())
		if err := c.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address once initialized.
func (c *ServerComponent) Addr() string {
	if c.listener == nil {
		return ""
	}
	return c.listener.Addr().String()
}

func (c *ServerComponent) Close(ctx context.Context) error {
	if c.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.server.Shutdown(shutdownCtx)
	<-c.done
	c.server = nil
	c.listener = nil
	return err
}

func (c *ServerComponent) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","time":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func (c *ServerComponent) serveFeed(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	dot := strings.LastIndex(file, ".")
	if dot <= 0 {
		http.NotFound(w, r)
		return
	}
	name, format := file[:dot], file[dot+1:]

	c.mu.RLock()
	renderer, ok := c.feeds[name]
	c.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch format {
	case "rss", "atom", "json":
	default:
		http.NotFound(w, r)
		return
	}

	body, contentType, err := renderer.Render(r.Context(), format)
	if err != nil {
		c.logger.Error("Failed to render feed", "feed", name, "format", format, "error", err)
		http.Error(w, "failed to render feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	fmt.Fprint(w, body)
}

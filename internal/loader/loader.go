package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"herald/internal/blob"
	"herald/internal/components"
	"herald/internal/config"
	"herald/internal/core"
	"herald/internal/destinations"
	"herald/internal/enrichers"
	"herald/internal/extractors"
	"herald/internal/sources"
	"herald/internal/state"
	"herald/internal/trackers"
	"herald/internal/types"
)

// Loader turns a parsed config into initialized components, collaborators
// and registered jobs. Collaborators are built once per name and shared by
// every job that references them.
type Loader struct {
	config *config.Config
	logger *slog.Logger

	registry *components.Registry
	storage  *components.StorageComponent
	redis    *components.RedisComponent
	browser  *components.BrowserComponent
	server   *components.ServerComponent

	sources      map[string]types.Source
	extractors   map[string]types.Extractor
	trackers     map[string]types.Tracker
	stores       map[string]blob.Store
	enrichers    map[string]types.Enricher
	destinations map[string]types.Destination
	closers      []io.Closer
}

func NewLoader(cfg *config.Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		config:       cfg,
		logger:       logger,
		registry:     components.NewRegistry(logger),
		sources:      make(map[string]types.Source),
		extractors:   make(map[string]types.Extractor),
		trackers:     make(map[string]types.Tracker),
		stores:       make(map[string]blob.Store),
		enrichers:    make(map[string]types.Enricher),
		destinations: make(map[string]types.Destination),
	}
}

// Build initializes everything the active jobs need and registers the jobs
// with a new scheduler. When once is set every job runs a single time. On
// error everything already opened is closed again.
func (l *Loader) Build(ctx context.Context, once bool) (*state.State, error) {
	active := l.activeJobs()

	schedules := make(map[string]core.JobConfig, len(active))
	for _, name := range active {
		job := l.config.Jobs[name]
		jobConfig := core.JobConfig{
			Name:    name,
			Jitter:  job.Jitter(),
			Testing: job.Testing || once,
		}
		schedule, err := core.ParseSchedule(job.Cron)
		if err != nil {
			return nil, types.NewConfigError("jobs", name, err.Error())
		}
		jobConfig.Schedule = schedule
		schedules[name] = jobConfig
	}

	if err := l.registerComponents(active); err != nil {
		return nil, err
	}

	if err := l.registry.InitializeAll(ctx); err != nil {
		return nil, l.abort(ctx, fmt.Errorf("failed to initialize components: %w", err))
	}

	executor := core.NewExecutor(l.logger)
	scheduler := core.NewScheduler(l.logger)

	for _, name := range active {
		jobConfig := schedules[name]

		stages, err := l.buildStages(ctx, name, l.config.Jobs[name])
		if err != nil {
			return nil, l.abort(ctx, err)
		}
		jobConfig.Stages = stages

		job, err := core.NewJob(jobConfig, executor, l.logger)
		if err != nil {
			return nil, l.abort(ctx, fmt.Errorf("failed to create job %s: %w", name, err))
		}
		if err := scheduler.Register(job); err != nil {
			return nil, l.abort(ctx, err)
		}
	}

	l.logger.Info("Loaded configuration",
		"jobs", len(active),
		"sources", len(l.sources),
		"destinations", len(l.destinations),
	)

	return state.NewState(l.config, l.registry, scheduler, l.closers), nil
}

func (l *Loader) abort(ctx context.Context, err error) error {
	partial := state.NewState(l.config, l.registry, nil, l.closers)
	if closeErr := partial.Close(ctx); closeErr != nil {
		l.logger.Warn("Failed to release partially loaded state", "error", closeErr)
	}
	return err
}

func (l *Loader) activeJobs() []string {
	var active []string
	for _, name := range config.SortedKeys(l.config.Jobs) {
		if l.config.Jobs[name].Skip {
			l.logger.Info("Skipping job", "job", name)
			continue
		}
		active = append(active, name)
	}
	return active
}

func (l *Loader) registerComponents(active []string) error {
	needsRedis := l.config.Redis.Addr != ""
	needsBrowser := false

	for _, name := range active {
		job := l.config.Jobs[name]
		if l.config.Trackers[job.Tracker].Type == "redis" {
			needsRedis = true
		}
		for _, source := range job.Sources {
			if l.config.Sources[source].Type == "browser" {
				needsBrowser = true
			}
		}
	}

	l.storage = components.NewStorageComponent(l.config.Storage.Path)
	if err := l.registry.Register(l.storage); err != nil {
		return err
	}

	if needsRedis {
		l.redis = components.NewRedisComponent(components.RedisConfig{
			Addr:     l.config.Redis.Addr,
			Password: l.config.Redis.Password,
			DB:       l.config.Redis.DB,
		})
		if err := l.registry.Register(l.redis); err != nil {
			return err
		}
	}

	if needsBrowser {
		headless := true
		if l.config.Browser.Headless != nil {
			headless = *l.config.Browser.Headless
		}
		l.browser = components.NewBrowserComponent(components.BrowserConfig{
			Headless:  headless,
			UserAgent: l.config.Browser.UserAgent,
		})
		if err := l.registry.Register(l.browser); err != nil {
			return err
		}
	}

	if l.config.App.ListenAddr != "" {
		l.server = components.NewServerComponent(components.ServerConfig{
			ListenAddr: l.config.App.ListenAddr,
			MediaDir:   l.servedMediaDir(),
		}, l.logger)
		if err := l.registry.Register(l.server); err != nil {
			return err
		}
	}

	return nil
}

// servedMediaDir returns the directory of the first local store marked
// serve = true.
func (l *Loader) servedMediaDir() string {
	for _, name := range config.SortedKeys(l.config.Stores) {
		store := l.config.Stores[name]
		if store.Type == "local" && config.GetBool(store.Settings, "serve", false) {
			return config.GetString(store.Settings, "dir", "")
		}
	}
	return ""
}

func (l *Loader) buildStages(ctx context.Context, name string, job config.JobConfig) (core.Stages, error) {
	stages := core.Stages{Job: name}

	for _, sourceName := range job.Sources {
		source, err := l.source(sourceName)
		if err != nil {
			return stages, err
		}
		stages.Sources = append(stages.Sources, source)
	}

	for _, extractorName := range job.Extractors {
		extractor, err := l.extractor(extractorName)
		if err != nil {
			return stages, err
		}
		stages.Extractors = append(stages.Extractors, extractor)
	}

	tracker, err := l.tracker(job.Tracker)
	if err != nil {
		return stages, err
	}
	stages.Tracker = tracker

	for _, enricherName := range job.Enrichers {
		enricher, err := l.enricher(ctx, enricherName)
		if err != nil {
			return stages, err
		}
		stages.Enrichers = append(stages.Enrichers, enricher)
	}

	for _, destinationName := range job.Destinations {
		destination, err := l.destination(destinationName)
		if err != nil {
			return stages, err
		}
		stages.Destinations = append(stages.Destinations, destination)
	}

	return stages, nil
}

func (l *Loader) source(name string) (types.Source, error) {
	if source, ok := l.sources[name]; ok {
		return source, nil
	}

	cfg := l.config.Sources[name]
	s := cfg.Settings

	var (
		source types.Source
		err    error
	)

	switch cfg.Type {
	case "http":
		source, err = sources.NewHTTPSource(name, sources.HTTPConfig{
			URL:       config.GetString(s, "url", ""),
			UserAgent: config.GetString(s, "user_agent", ""),
			Headers:   config.GetStringMap(s, "headers"),
			Timeout:   config.GetDuration(s, "timeout", 0),
			MaxBytes:  int64(config.GetInt(s, "max_bytes", 0)),
		}, l.logger)

	case "browser":
		if l.browser == nil {
			return nil, types.NewConfigError("sources", name, "browser component is not available")
		}
		source, err = sources.NewBrowserSource(name, l.browser.Allocator(), sources.BrowserConfig{
			URL:          config.GetString(s, "url", ""),
			WaitSelector: config.GetString(s, "wait_selector", ""),
			Wait:         config.GetDuration(s, "wait", 2*time.Second),
			Timeout:      config.GetDuration(s, "timeout", 0),
			UserAgent:    config.GetString(s, "user_agent", l.config.Browser.UserAgent),
		}, l.logger)

	default:
		return nil, types.NewConfigError("sources", name, fmt.Sprintf("unsupported type %q", cfg.Type))
	}

	if err != nil {
		return nil, types.NewConfigError("sources", name, err.Error())
	}

	l.sources[name] = source
	return source, nil
}

func (l *Loader) extractor(name string) (types.Extractor, error) {
	if extractor, ok := l.extractors[name]; ok {
		return extractor, nil
	}

	cfg := l.config.Extractors[name]
	s := cfg.Settings

	var (
		extractor types.Extractor
		err       error
	)

	switch cfg.Type {
	case "rss":
		extractor = extractors.NewRSSExtractor(name, extractors.RSSConfig{
			SummaryLength: config.GetInt(s, "summary_length", 0),
			MaxItems:      config.GetInt(s, "max_items", 0),
		})

	case "html":
		extractor, err = extractors.NewHTMLExtractor(name, extractors.HTMLConfig{
			Item:              config.GetString(s, "item", ""),
			Permalink:         config.GetString(s, "permalink", ""),
			PermalinkAttr:     config.GetString(s, "permalink_attr", ""),
			PermalinkContains: config.GetString(s, "permalink_contains", ""),
			Title:             config.GetString(s, "title", ""),
			Body:              config.GetString(s, "body", ""),
			Author:            config.GetString(s, "author", ""),
			Avatar:            config.GetString(s, "avatar", ""),
			Media:             config.GetString(s, "media", ""),
			Link:              config.GetString(s, "link", ""),
		})

	case "json":
		extractor, err = extractors.NewJSONExtractor(name, extractors.JSONConfig{
			ItemPath:        config.GetString(s, "item_path", ""),
			PermalinkFormat: config.GetString(s, "permalink_format", ""),
			TitleFormat:     config.GetString(s, "title_format", ""),
			SummaryFormat:   config.GetString(s, "summary_format", ""),
			BodyFormat:      config.GetString(s, "body_format", ""),
			AuthorFormat:    config.GetString(s, "author_format", ""),
			AvatarFormat:    config.GetString(s, "avatar_format", ""),
			ThumbnailFormat: config.GetString(s, "thumbnail_format", ""),
			MediaFormat:     config.GetString(s, "media_format", ""),
			PublishedFormat: config.GetString(s, "published_format", ""),
		})

	default:
		return nil, types.NewConfigError("extractors", name, fmt.Sprintf("unsupported type %q", cfg.Type))
	}

	if err != nil {
		return nil, types.NewConfigError("extractors", name, err.Error())
	}

	l.extractors[name] = extractor
	return extractor, nil
}

func (l *Loader) tracker(name string) (types.Tracker, error) {
	if tracker, ok := l.trackers[name]; ok {
		return tracker, nil
	}

	cfg := l.config.Trackers[name]
	s := cfg.Settings

	var tracker types.Tracker

	switch cfg.Type {
	case "memory":
		tracker = trackers.NewMemoryTracker(name)

	case "sqlite":
		tracker = trackers.NewSQLiteTracker(
			name,
			config.GetString(s, "namespace", ""),
			l.storage.Store().Seen(),
			l.logger,
		)

	case "redis":
		if l.redis == nil {
			return nil, types.NewConfigError("trackers", name, "redis component is not available")
		}
		tracker = trackers.NewRedisTracker(name, l.redis.Client(), config.GetString(s, "prefix", ""))

	default:
		return nil, types.NewConfigError("trackers", name, fmt.Sprintf("unsupported type %q", cfg.Type))
	}

	l.trackers[name] = tracker
	return tracker, nil
}

func (l *Loader) store(ctx context.Context, name string) (blob.Store, error) {
	if store, ok := l.stores[name]; ok {
		return store, nil
	}

	cfg, ok := l.config.Stores[name]
	if !ok {
		return nil, types.NewConfigError("stores", name, "store is not defined")
	}
	s := cfg.Settings

	var store blob.Store

	switch cfg.Type {
	case "gcs":
		gcs, err := blob.NewGCSStore(ctx, blob.GCSConfig{
			Endpoint:       config.GetString(s, "endpoint", ""),
			GoogleAccessID: config.GetString(s, "google_access_id", ""),
			PrivateKeyPath: config.GetString(s, "private_key_path", ""),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create store %s: %w", name, err)
		}
		l.closers = append(l.closers, gcs)
		store = gcs

	case "local":
		local, err := blob.NewLocalStore(config.GetString(s, "dir", ""), config.GetString(s, "base_url", ""))
		if err != nil {
			return nil, types.NewConfigError("stores", name, err.Error())
		}
		store = local

	default:
		return nil, types.NewConfigError("stores", name, fmt.Sprintf("unsupported type %q", cfg.Type))
	}

	l.stores[name] = store
	return store, nil
}

func (l *Loader) enricher(ctx context.Context, name string) (types.Enricher, error) {
	if enricher, ok := l.enrichers[name]; ok {
		return enricher, nil
	}

	cfg := l.config.Enrichers[name]
	s := cfg.Settings

	var enricher types.Enricher

	switch cfg.Type {
	case "media_cache":
		storeName := config.GetString(s, "store", "")
		if storeName == "" {
			return nil, types.NewConfigError("enrichers", name, "store is required")
		}
		store, err := l.store(ctx, storeName)
		if err != nil {
			return nil, err
		}

		mediaCache, err := enrichers.NewMediaCache(name, store, enrichers.MediaCacheConfig{
			Bucket:      config.GetString(s, "bucket", ""),
			KeyFormat:   config.GetString(s, "key_format", ""),
			URLFormat:   config.GetString(s, "url_format", ""),
			URLExpiry:   config.GetDuration(s, "url_expiry", 0),
			Concurrency: config.GetInt(s, "concurrency", 0),
			MaxBytes:    int64(config.GetInt(s, "max_bytes", 0)),
			Timeout:     config.GetDuration(s, "timeout", 0),
			UserAgent:   config.GetString(s, "user_agent", ""),
		}, l.logger)
		if err != nil {
			return nil, types.NewConfigError("enrichers", name, err.Error())
		}
		enricher = mediaCache

	case "article":
		enricher = enrichers.NewArticle(name, enrichers.ArticleConfig{
			Concurrency: config.GetInt(s, "concurrency", 0),
			MaxBytes:    int64(config.GetInt(s, "max_bytes", 0)),
			Timeout:     config.GetDuration(s, "timeout", 0),
			UserAgent:   config.GetString(s, "user_agent", ""),
			Overwrite:   config.GetBool(s, "overwrite", false),
		}, l.logger)

	default:
		return nil, types.NewConfigError("enrichers", name, fmt.Sprintf("unsupported type %q", cfg.Type))
	}

	l.enrichers[name] = enricher
	return enricher, nil
}

func (l *Loader) destination(name string) (types.Destination, error) {
	if destination, ok := l.destinations[name]; ok {
		return destination, nil
	}

	cfg := l.config.Destinations[name]
	s := cfg.Settings

	var (
		destination types.Destination
		err         error
	)

	webhook := destinations.WebhookConfig{
		URL:     config.GetString(s, "webhook_url", ""),
		Timeout: config.GetDuration(s, "timeout", 0),
	}

	switch cfg.Type {
	case "discord":
		destination, err = destinations.NewDiscordWebhook(name, webhook, l.logger)

	case "rocketchat":
		destination, err = destinations.NewRocketChatWebhook(name, webhook, l.logger)

	case "feed":
		var feed *destinations.Feed
		feed, err = destinations.NewFeed(name, l.storage.Store().Feed(), destinations.FeedConfig{
			Title:       config.GetString(s, "title", ""),
			Link:        config.GetString(s, "link", ""),
			Description: config.GetString(s, "description", ""),
			MaxItems:    config.GetInt(s, "max_items", 0),
			Retention:   config.GetDuration(s, "retention", 0),
			CacheTTL:    config.GetDuration(s, "cache_ttl", 0),
		}, l.logger)
		if err != nil {
			break
		}

		if l.server == nil {
			l.logger.Warn("Feed is stored but not served, listen_addr is not set", "destination", name)
		} else if err := l.server.RegisterFeed(name, feed); err != nil {
			return nil, err
		}
		destination = feed

	default:
		return nil, types.NewConfigError("destinations", name, fmt.Sprintf("unsupported type %q", cfg.Type))
	}

	if err != nil {
		return nil, types.NewConfigError("destinations", name, err.Error())
	}

	l.destinations[name] = destination
	return destination, nil
}

// LoadAndBuild reads the config at path and builds it.
func LoadAndBuild(ctx context.Context, configPath string, logger *slog.Logger, once bool) (*state.State, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewLoader(cfg, logger).Build(ctx, once)
}

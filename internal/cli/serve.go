package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mosaic/pkg/api"
	"github.com/matzehuels/mosaic/pkg/cache"
	"github.com/matzehuels/mosaic/pkg/config"
	"github.com/matzehuels/mosaic/pkg/feed"
	"github.com/matzehuels/mosaic/pkg/httputil"
	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/observability"
	"github.com/matzehuels/mosaic/pkg/store"
	"github.com/matzehuels/mosaic/pkg/worker"
)

// closeTimeout bounds closing the store after the server stopped.
const closeTimeout = 5 * time.Second

// serveOptions holds the flags of the serve command.
type serveOptions struct {
	configPath string
	addr       string
	memory     bool
	noCache    bool
}

// serveCommand creates the serve command, which runs the mosaic server.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mosaic server",
		Long: `Run the mosaic server.

Configuration is read from the optional TOML file given with --config, then
from the environment (MOSAIC_ADDR, MONGODB_URI, MONGODB_HOST, MONGODB_PORT,
MONGODB_DB, REDIS_ADDR, FEED_URL, FEED_TOKEN, MOSAIC_LOG_LEVEL). Flags win
over both.`,
		Example: `  # Serve with MongoDB on localhost and a file cache
  mosaic serve

  # Serve without external services
  mosaic serve --memory --no-cache --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(opts)
			if err != nil {
				return err
			}
			if c.Logger.GetLevel() == LogInfo {
				if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
					c.SetLogLevel(level)
				}
			}
			return serve(cmd.Context(), cfg, opts.memory)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "keep posts in memory instead of MongoDB")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the image and post cache")

	return cmd
}

func loadServeConfig(opts serveOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.noCache {
		cfg.Cache.Backend = config.CacheNone
	}
	return cfg, cfg.Validate()
}

// serve wires the server from cfg and blocks until ctx is done or the
// listener fails. Workers are stopped before it returns.
func serve(ctx context.Context, cfg config.Config, memory bool) error {
	logger := loggerFromContext(ctx)

	prom := observability.NewPrometheus(prometheus.DefaultRegisterer, "")
	observability.SetWorkerHooks(prom)
	observability.SetCacheHooks(prom)
	observability.SetHTTPHooks(prom)
	defer observability.Reset()

	prog := newProgress(logger)
	cch, err := newCache(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}
	defer cch.Close()
	prog.done("Opened " + cfg.Cache.Backend + " cache")

	keyer := cache.NewDefaultKeyer()
	if cfg.Redis.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, cfg.Redis.Prefix)
	}

	prog = newProgress(logger)
	st, err := openStore(ctx, cfg, memory)
	if err != nil {
		return err
	}
	if memory {
		prog.done("Using in-memory post store")
	} else {
		prog.done("Connected to MongoDB")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logger.Warn("close store", "err", err)
		}
	}()
	posts := store.NewCached(st, cache.Instrument(cch, "seen"), keyer, cfg.Cache.SeenTTL.Duration)

	httpClient := httputil.NewClient(cfg.Feed.Timeout.Duration)
	fetcher := images.NewFetcher(cache.Instrument(cch, "image"), cfg.Cache.ImageTTL.Duration,
		images.WithHTTPClient(httpClient),
		images.WithKeyer(keyer),
	)
	clientOpts := []feed.ClientOption{feed.WithHTTPClient(httpClient), feed.WithKeyer(keyer)}
	if cfg.Feed.Token != "" {
		clientOpts = append(clientOpts, feed.WithHeaders(map[string]string{
			"Authorization": "Bearer " + cfg.Feed.Token,
		}))
	}
	source := feed.NewClient(cfg.Feed.URL, cache.Instrument(cch, "post"), cfg.Cache.PostTTL.Duration, clientOpts...)

	feeder := feed.New(feed.Config{
		Source:       source,
		Fetcher:      fetcher,
		Store:        posts,
		PollInterval: cfg.Feed.PollInterval.Duration,
		Logger:       logger.WithPrefix("feed"),
	})
	registry := worker.NewRegistry(worker.Deps{
		Feed:   feeder,
		Store:  posts,
		Logger: logger.WithPrefix("worker"),
	})
	server := api.NewServer(api.Config{
		Registry:     registry,
		Logger:       logger.WithPrefix("api"),
		MaxBodyBytes: int64(cfg.Server.MaxBodyMB) << 20,
		Defaults: worker.Options{
			FillBoost:   cfg.Worker.FillBoost,
			WarmLimit:   cfg.Worker.WarmLimit,
			DirectQueue: cfg.Worker.DirectQueue,
			Blocked:     cfg.Worker.BlockedUsers,
		},
	})

	logger.Info("mosaic server starting",
		"feed", cfg.Feed.URL,
		"cache", cfg.Cache.Backend,
		"memory", memory,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		n := registry.Len()
		registry.StopAll()
		logger.Info("workers stopped", "count", n)
		return nil
	})
	return g.Wait()
}

// openStore connects to MongoDB unless memory is set.
func openStore(ctx context.Context, cfg config.Config, memory bool) (store.Store, error) {
	if memory {
		return store.NewMemory(), nil
	}
	s, err := store.NewMongo(ctx, store.MongoConfig{
		URI:        cfg.Mongo.ConnectionURI(),
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
		Timeout:    cfg.Mongo.Timeout.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	return s, nil
}

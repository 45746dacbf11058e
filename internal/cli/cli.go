// Package cli implements the mosaic command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mosaic/pkg/api"
	"github.com/matzehuels/mosaic/pkg/buildinfo"
	"github.com/matzehuels/mosaic/pkg/cache"
	"github.com/matzehuels/mosaic/pkg/config"
	"github.com/matzehuels/mosaic/pkg/httputil"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "mosaic"

	// defaultServer is used when neither --server nor MOSAIC_SERVER is set.
	defaultServer = "http://localhost:8000"

	// clientTimeout bounds a single API call. Origins are uploaded inline,
	// so this is generous.
	clientTimeout = 60 * time.Second
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// server is the base URL of the mosaic server for client commands.
	server string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Mosaic builds live photomosaics from hashtag feeds",
		Long: `Mosaic recreates an image out of pictures posted under a set of hashtags.
Each mosaic is a worker on a mosaic server that keeps improving its tiles as
new posts arrive. Use "mosaic serve" to run a server and the other commands
to drive it.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	server := defaultServer
	if v := os.Getenv("MOSAIC_SERVER"); v != "" {
		server = v
	}
	root.PersistentFlags().StringVar(&c.server, "server", server, "mosaic server URL (env MOSAIC_SERVER)")

	// Register all subcommands
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.startCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.artCommand())
	root.AddCommand(c.stopCommand())
	root.AddCommand(c.submitCommand())
	root.AddCommand(c.blockCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// client returns an API client for the configured server.
func (c *CLI) client() *api.Client {
	return api.NewClient(c.server, httputil.NewClient(clientTimeout))
}

// =============================================================================
// Cache Factory
// =============================================================================

// newCache opens the cache backend selected in cfg. The file backend falls
// back to no caching when no cache directory can be determined.
func newCache(ctx context.Context, cfg config.Config, logger *log.Logger) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			logger.Warn("no cache directory, caching disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/mosaic/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

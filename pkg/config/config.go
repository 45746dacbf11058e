// Package config loads the mosaic server configuration.
//
// Values are resolved in order: built-in defaults, an optional TOML file,
// then environment variables. Command-line flags override the result in
// the CLI.
//
//	[server]
//	addr = ":8000"
//
//	[mongo]
//	host = "localhost"
//	port = 27017
//
//	[cache]
//	backend = "redis"
//
//	[feed]
//	url = "http://feed.internal"
//	poll_interval = "3s"
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mosaic/pkg/errors"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Duration is a time.Duration written as "3s" or "1h30m" in TOML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the complete server configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Mongo  MongoConfig  `toml:"mongo"`
	Redis  RedisConfig  `toml:"redis"`
	Cache  CacheConfig  `toml:"cache"`
	Feed   FeedConfig   `toml:"feed"`
	Worker WorkerConfig `toml:"worker"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Addr      string `toml:"addr"`
	MaxBodyMB int    `toml:"max_body_mb"`
}

// MongoConfig locates the post store. URI wins over Host and Port.
type MongoConfig struct {
	URI        string   `toml:"uri"`
	Host       string   `toml:"host"`
	Port       int      `toml:"port"`
	Database   string   `toml:"database"`
	Collection string   `toml:"collection"`
	Timeout    Duration `toml:"timeout"`
}

// ConnectionURI returns URI or builds one from Host and Port.
func (m MongoConfig) ConnectionURI() string {
	if m.URI != "" {
		return m.URI
	}
	return fmt.Sprintf("mongodb://%s:%d", m.Host, m.Port)
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	// Prefix scopes every key so deployments can share a database.
	Prefix string `toml:"prefix"`
}

type CacheConfig struct {
	Backend  string   `toml:"backend"`
	Dir      string   `toml:"dir"` // empty uses the user cache directory
	ImageTTL Duration `toml:"image_ttl"`
	PostTTL  Duration `toml:"post_ttl"`
	SeenTTL  Duration `toml:"seen_ttl"`
}

type FeedConfig struct {
	URL          string   `toml:"url"`
	Token        string   `toml:"token"`
	PollInterval Duration `toml:"poll_interval"`
	Timeout      Duration `toml:"timeout"`
}

type WorkerConfig struct {
	FillBoost    int      `toml:"fill_boost"`
	WarmLimit    int      `toml:"warm_limit"`
	DirectQueue  int      `toml:"direct_queue"`
	BlockedUsers []string `toml:"blocked_users"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8000", MaxBodyMB: 64},
		Mongo: MongoConfig{
			Host:       "localhost",
			Port:       27017,
			Database:   "mosaic",
			Collection: "posts",
			Timeout:    Duration{10 * time.Second},
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Cache: CacheConfig{
			Backend:  CacheFile,
			ImageTTL: Duration{24 * time.Hour},
			PostTTL:  Duration{24 * time.Hour},
			SeenTTL:  Duration{24 * time.Hour},
		},
		Feed: FeedConfig{
			URL:          "http://localhost:8080",
			PollInterval: Duration{3 * time.Second},
			Timeout:      Duration{10 * time.Second},
		},
		Worker: WorkerConfig{FillBoost: 3, WarmLimit: 1000, DirectQueue: 64},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults (path may be empty), applies the
// environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown key %s", path, undecoded[0])
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables:
// MOSAIC_ADDR, MONGODB_URI, MONGODB_HOST, MONGODB_PORT, MONGODB_DB,
// REDIS_ADDR, FEED_URL, FEED_TOKEN and MOSAIC_LOG_LEVEL.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"MOSAIC_ADDR":      &c.Server.Addr,
		"MONGODB_URI":      &c.Mongo.URI,
		"MONGODB_HOST":     &c.Mongo.Host,
		"MONGODB_DB":       &c.Mongo.Database,
		"REDIS_ADDR":       &c.Redis.Addr,
		"FEED_URL":         &c.Feed.URL,
		"FEED_TOKEN":       &c.Feed.Token,
		"MOSAIC_LOG_LEVEL": &c.Log.Level,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("MONGODB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "MONGODB_PORT")
		}
		c.Mongo.Port = port
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case c.Server.Addr == "":
		return errors.New(errors.ErrCodeInvalidConfig, "server.addr is required")
	case c.Server.MaxBodyMB <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "server.max_body_mb must be positive")
	case c.Mongo.URI == "" && (c.Mongo.Host == "" || c.Mongo.Port <= 0 || c.Mongo.Port > 65535):
		return errors.New(errors.ErrCodeInvalidConfig, "mongo needs uri or host and a valid port")
	case c.Feed.PollInterval.Duration <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "feed.poll_interval must be positive")
	case c.Worker.WarmLimit < -1:
		return errors.New(errors.ErrCodeInvalidConfig, "worker.warm_limit must be >= -1")
	}
	if err := errors.ValidateURL(c.Feed.URL); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "feed.url")
	}
	switch c.Cache.Backend {
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Redis.Addr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "redis.addr is required for the redis cache")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown log level %q", c.Log.Level)
	}
	return nil
}

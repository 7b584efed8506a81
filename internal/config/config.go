package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig               `yaml:"store" mapstructure:"store"`
	Server     ServerConfig              `yaml:"server" mapstructure:"server"`
	Feed       FeedConfig                `yaml:"feed" mapstructure:"feed"`
	Reconcile  ReconcileConfig           `yaml:"reconcile" mapstructure:"reconcile"`
	Scoring    ScoringConfig             `yaml:"scoring" mapstructure:"scoring"`
	Priorities map[string]PriorityConfig `yaml:"priorities" mapstructure:"priorities"`
	Log        LogConfig                 `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the snapshot source.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath    string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	FixturePath   string `yaml:"fixture_path" mapstructure:"fixture_path"`
	MaxConns      int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns      int32  `yaml:"min_conns" mapstructure:"min_conns"`
	RetryAttempts int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// FeedConfig configures feed assembly.
type FeedConfig struct {
	Concurrency  int `yaml:"concurrency" mapstructure:"concurrency"`
	CacheSize    int `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTLSecs int `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// ReconcileConfig selects how stale votes are tallied.
type ReconcileConfig struct {
	StalePolicy string `yaml:"stale_policy" mapstructure:"stale_policy"`
}

// ScoringConfig holds the per-facet base values of the capability scorer.
type ScoringConfig struct {
	RoleBase  int `yaml:"role_base" mapstructure:"role_base"`
	SkillBase int `yaml:"skill_base" mapstructure:"skill_base"`
}

// PriorityConfig is the sort priority of one proposal kind. VotedOffset is
// added once the viewer has voted on the current revision.
type PriorityConfig struct {
	Base        int `yaml:"base" mapstructure:"base"`
	VotedOffset int `yaml:"voted_offset" mapstructure:"voted_offset"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StalePolicy values.
const (
	StaleAsAgainst = "against"
	StaleExcluded  = "excluded"
)

// DefaultPriorities returns the built-in per-kind priorities. Lower sorts
// first.
func DefaultPriorities() map[string]PriorityConfig {
	return map[string]PriorityConfig{
		"decision":     {Base: 5, VotedOffset: 100},
		"mission":      {Base: 10, VotedOffset: 100},
		"resource":     {Base: 20, VotedOffset: 100},
		"distribution": {Base: 30, VotedOffset: 50},
		"suggestion":   {Base: 40, VotedOffset: 0},
	}
}

// Load reads configuration from file and environment. An empty path looks
// for an optional config.yaml in the working directory; a non-empty path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("CONSENSUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "consensus.db")
	v.SetDefault("store.fixture_path", "fixtures.yaml")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("feed.concurrency", 8)
	v.SetDefault("feed.cache_size", 1024)
	v.SetDefault("feed.cache_ttl_secs", 60)
	v.SetDefault("reconcile.stale_policy", StaleAsAgainst)
	v.SetDefault("scoring.role_base", 1)
	v.SetDefault("scoring.skill_base", 2)
	for kind, p := range DefaultPriorities() {
		v.SetDefault("priorities."+kind+".base", p.Base)
		v.SetDefault("priorities."+kind+".voted_offset", p.VotedOffset)
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode
// ("cli" or "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "cli":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server.rate_limit must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	case "fixture":
		if c.Store.FixturePath == "" {
			errs = append(errs, "store.fixture_path is required for the fixture driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres, sqlite or fixture (got %q)", c.Store.Driver))
	}

	if c.Feed.Concurrency < 1 || c.Feed.Concurrency > 64 {
		errs = append(errs, "feed.concurrency must be between 1 and 64")
	}
	if c.Feed.CacheTTLSecs < 0 {
		errs = append(errs, "feed.cache_ttl_secs must be >= 0")
	}

	switch c.Reconcile.StalePolicy {
	case StaleAsAgainst, StaleExcluded:
	default:
		errs = append(errs, fmt.Sprintf("reconcile.stale_policy must be %q or %q", StaleAsAgainst, StaleExcluded))
	}

	if c.Scoring.RoleBase < 0 || c.Scoring.SkillBase < 0 {
		errs = append(errs, "scoring bases must be >= 0")
	}

	for name, p := range c.Priorities {
		if p.VotedOffset < 0 {
			errs = append(errs, fmt.Sprintf("priorities.%s.voted_offset must be >= 0", name))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

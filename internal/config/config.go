// Package config loads and validates castcrawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/castcrawler/internal/logging"
	"github.com/JakeFAU/castcrawler/internal/telemetry"
)

// EnvPrefix is prepended to every environment override, e.g. CASTCRAWLER_CRAWLER_SEED_URL.
const EnvPrefix = "CASTCRAWLER"

// Config captures all knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig    `mapstructure:"crawler"`
	Selectors SelectorConfig   `mapstructure:"selectors"`
	Headless  HeadlessConfig   `mapstructure:"headless"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Artifacts ArtifactConfig   `mapstructure:"artifacts"`
	PubSub    PubSubConfig     `mapstructure:"pubsub"`
	Recommend RecommendConfig  `mapstructure:"recommend"`
	Plot      PlotConfig       `mapstructure:"plot"`
	Server    ServerConfig     `mapstructure:"server"`
	Logging   logging.Config   `mapstructure:"logging"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
}

// CrawlerConfig governs the colly collectors.
type CrawlerConfig struct {
	SeedURL        string        `mapstructure:"seed_url"`
	CreditsSuffix  string        `mapstructure:"credits_suffix"`
	AllowedDomains []string      `mapstructure:"allowed_domains"`
	UserAgent      string        `mapstructure:"user_agent"`
	RespectRobots  bool          `mapstructure:"respect_robots"`
	Parallelism    int           `mapstructure:"parallelism"`
	Delay          time.Duration `mapstructure:"delay"`
	RandomDelay    time.Duration `mapstructure:"random_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxActors      int           `mapstructure:"max_actors"`
}

// SelectorConfig holds the CSS selectors for the three page types.
type SelectorConfig struct {
	SeedTitle      string `mapstructure:"seed_title"`
	ActorLink      string `mapstructure:"actor_link"`
	ActorName      string `mapstructure:"actor_name"`
	FilmographyRow string `mapstructure:"filmography_row"`
	CreditTitle    string `mapstructure:"credit_title"`
}

// HeadlessConfig configures chromedp rendering of crawled pages.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
}

// StorageConfig selects where credits are persisted.
type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	CSVPath       string `mapstructure:"csv_path"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
}

// ArtifactConfig selects where rendered plots are written.
type ArtifactConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether notifications go to Google Cloud Pub/Sub.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Topic != ""
}

// RecommendConfig tunes the shared-actor ranking.
type RecommendConfig struct {
	Top           int      `mapstructure:"top"`
	ExcludeTitles []string `mapstructure:"exclude_titles"`
}

// PlotConfig controls the scatter plot artifact.
type PlotConfig struct {
	File  string `mapstructure:"file"`
	Title string `mapstructure:"title"`
}

// ServerConfig controls the HTTP server behind `castcrawler serve`.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.seed_url", "https://www.imdb.com/title/tt4154796/")
	v.SetDefault("crawler.credits_suffix", "fullcredits")
	v.SetDefault("crawler.allowed_domains", []string{"www.imdb.com"})
	v.SetDefault("crawler.user_agent", "castcrawler/0.1 (+https://github.com/JakeFAU/castcrawler)")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.parallelism", 4)
	v.SetDefault("crawler.delay", "500ms")
	v.SetDefault("crawler.random_delay", "250ms")
	v.SetDefault("crawler.request_timeout", "15s")
	v.SetDefault("crawler.max_actors", 0)
	v.SetDefault("selectors.seed_title", "h1")
	v.SetDefault("selectors.actor_link", "td.primary_photo a")
	v.SetDefault("selectors.actor_name", "span.itemprop")
	v.SetDefault("selectors.filmography_row", "div.filmo-row")
	v.SetDefault("selectors.credit_title", "a")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout", "30s")
	v.SetDefault("storage.driver", "csv")
	v.SetDefault("storage.csv_path", "movies.csv")
	v.SetDefault("storage.sqlite_path", "castcrawler.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.postgres_table", "credits")
	v.SetDefault("artifacts.backend", "local")
	v.SetDefault("artifacts.local_dir", ".")
	v.SetDefault("artifacts.gcs_bucket", "")
	v.SetDefault("artifacts.prefix", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("recommend.top", 10)
	v.SetDefault("recommend.exclude_titles", []string{})
	v.SetDefault("plot.file", "movie_scatter.html")
	v.SetDefault("plot.title", "Scatterplot visualizing movies with shared actors")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.exporter", telemetry.ExporterNone)
	v.SetDefault("telemetry.service_name", "castcrawler")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	seed, err := url.Parse(c.Crawler.SeedURL)
	if err != nil || (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		return fmt.Errorf("crawler.seed_url must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.Crawler.CreditsSuffix) == "" {
		return fmt.Errorf("crawler.credits_suffix must be set")
	}
	if c.Crawler.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	if c.Crawler.Parallelism <= 0 {
		return fmt.Errorf("crawler.parallelism must be > 0")
	}
	if c.Crawler.Delay < 0 || c.Crawler.RandomDelay < 0 {
		return fmt.Errorf("crawler.delay and crawler.random_delay must be >= 0")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.MaxActors < 0 {
		return fmt.Errorf("crawler.max_actors must be >= 0")
	}
	if c.Selectors.ActorLink == "" || c.Selectors.ActorName == "" ||
		c.Selectors.FilmographyRow == "" || c.Selectors.CreditTitle == "" {
		return fmt.Errorf("selectors.actor_link, actor_name, filmography_row and credit_title must be set")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Artifacts.validate(); err != nil {
		return err
	}
	if c.Recommend.Top < 0 {
		return fmt.Errorf("recommend.top must be >= 0")
	}
	if c.Plot.File == "" {
		return fmt.Errorf("plot.file must be set")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Telemetry.Exporter {
	case "", telemetry.ExporterNone, telemetry.ExporterStdout:
	default:
		return fmt.Errorf("telemetry.exporter %q is not one of none, stdout", c.Telemetry.Exporter)
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Driver {
	case "csv":
		if s.CSVPath == "" {
			return fmt.Errorf("storage.csv_path must be set for the csv driver")
		}
	case "sqlite":
		if s.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path must be set for the sqlite driver")
		}
	case "postgres":
		if s.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn must be set for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver %q is not one of csv, sqlite, postgres, memory", s.Driver)
	}
	return nil
}

func (a ArtifactConfig) validate() error {
	switch a.Backend {
	case "local":
		if a.LocalDir == "" {
			return fmt.Errorf("artifacts.local_dir must be set for the local backend")
		}
	case "gcs":
		if a.GCSBucket == "" {
			return fmt.Errorf("artifacts.gcs_bucket must be set for the gcs backend")
		}
	case "memory":
	default:
		return fmt.Errorf("artifacts.backend %q is not one of local, gcs, memory", a.Backend)
	}
	return nil
}

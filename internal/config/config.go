// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Input   InputConfig   `mapstructure:"input"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	DB      DBConfig      `mapstructure:"db"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Server  ServerConfig  `mapstructure:"server"`
}

// CrawlerConfig governs pacing and pagination of the harvest.
type CrawlerConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	Delay                time.Duration `mapstructure:"delay"`
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"`
	MaxEmptyPages        int           `mapstructure:"max_empty_pages"`
	UserAgent            string        `mapstructure:"user_agent"`
	RespectRobots        bool          `mapstructure:"respect_robots"`
}

// HTTPConfig configures the page transport.
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
}

// InputConfig locates the movie list.
type InputConfig struct {
	MoviesFile string `mapstructure:"movies_file"`
}

// OutputConfig names the local artifacts of a run.
type OutputConfig struct {
	Dir               string `mapstructure:"dir"`
	CriticsFile       string `mapstructure:"critics_file"`
	FailedCriticsFile string `mapstructure:"failed_critics_file"`
	ReviewsFile       string `mapstructure:"reviews_file"`
	RetryReviewsFile  string `mapstructure:"retry_reviews_file"`
}

// FailedCriticsPath returns the failure log location inside Dir.
func (o OutputConfig) FailedCriticsPath() string {
	return filepath.Join(o.Dir, o.FailedCriticsFile)
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DBConfig controls the optional Postgres dataset sink.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// SQLiteConfig controls the optional SQLite dataset sink.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig sets the optional GCS upload target.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ServerConfig controls the status server. An empty Addr disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRITICS")
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

// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", "https://www.rottentomatoes.com")
	v.SetDefault("crawler.delay", time.Second)
	v.SetDefault("crawler.max_requests_per_minute", 0)
	v.SetDefault("crawler.max_empty_pages", 3)
	v.SetDefault("crawler.user_agent", "critic-review-crawler/0.1")
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("input.movies_file", "movies.json")
	v.SetDefault("output.dir", "tmp")
	v.SetDefault("output.critics_file", "critics_list.txt")
	v.SetDefault("output.failed_critics_file", "failed_critics.txt")
	v.SetDefault("output.reviews_file", "reviews.tsv")
	v.SetDefault("output.retry_reviews_file", "retry_reviews.tsv")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "critic_reviews")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("sqlite.path", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "critics")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("server.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Crawler.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("crawler.base_url must be an absolute URL")
	}
	if c.Crawler.Delay < 0 {
		return fmt.Errorf("crawler.delay must be >= 0")
	}
	if c.Crawler.MaxRequestsPerMinute < 0 {
		return fmt.Errorf("crawler.max_requests_per_minute must be >= 0")
	}
	if c.Crawler.MaxEmptyPages <= 0 {
		return fmt.Errorf("crawler.max_empty_pages must be > 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxRedirects <= 0 {
		return fmt.Errorf("http.max_redirects must be > 0")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.CriticsFile == "" || c.Output.FailedCriticsFile == "" || c.Output.ReviewsFile == "" {
		return fmt.Errorf("output file names must not be empty")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

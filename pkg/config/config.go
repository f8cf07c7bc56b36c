package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ideaflow-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`

	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Batch      BatchConfig      `yaml:"batch"`
	Confidence ConfidenceConfig `yaml:"confidence"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ideaflow"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ideaflow_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"2"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	StatementTimeout time.Duration `yaml:"statement_timeout" env:"PGSTATEMENT_TIMEOUT" env-default:"60s"`
}

// RedisConfig holds Redis configuration. Redis is optional; when Host is empty
// the batch scheduler runs without a cross-replica lock.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// EmbeddingConfig configures the OpenAI-compatible embedding provider.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url" env:"EMBEDDING_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model   string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey  string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML

	// RequestsPerSecond paces provider calls across all workspaces.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"EMBEDDING_REQUESTS_PER_SECOND" env-default:"5"`
	// MaxPerWorkspace caps how many ideas are (re-)embedded per workspace per batch run.
	MaxPerWorkspace int `yaml:"max_per_workspace" env:"EMBEDDING_MAX_PER_WORKSPACE" env-default:"200"`
	// Workers bounds concurrent fire-and-forget embedding updates.
	Workers int `yaml:"workers" env:"EMBEDDING_WORKERS" env-default:"4"`
}

// DedupConfig configures the similarity matcher.
type DedupConfig struct {
	// Strategy is "sql" (pgvector self-join) or "memory" (in-process pairwise scan).
	Strategy            string  `yaml:"strategy" env:"DEDUP_STRATEGY" env-default:"sql"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"DEDUP_SIMILARITY_THRESHOLD" env-default:"0.55"`
	MinIdeas            int     `yaml:"min_ideas" env:"DEDUP_MIN_IDEAS" env-default:"5"`
	TitleWeight         float64 `yaml:"title_weight" env:"DEDUP_TITLE_WEIGHT" env-default:"0.7"`
	ProblemWeight       float64 `yaml:"problem_weight" env:"DEDUP_PROBLEM_WEIGHT" env-default:"0.3"`
}

// BatchConfig configures the periodic duplicate-detection pass.
type BatchConfig struct {
	Enabled     bool          `yaml:"enabled" env:"BATCH_ENABLED" env-default:"true"`
	Interval    time.Duration `yaml:"interval" env:"BATCH_INTERVAL" env-default:"1h"`
	Size        int           `yaml:"size" env:"BATCH_SIZE" env-default:"10"`
	Cooldown    time.Duration `yaml:"cooldown" env:"BATCH_COOLDOWN" env-default:"5s"`
	Concurrency int           `yaml:"concurrency" env:"BATCH_CONCURRENCY" env-default:"1"`
	// LockTTL bounds how long a crashed replica can hold the run lock.
	LockTTL time.Duration `yaml:"lock_ttl" env:"BATCH_LOCK_TTL" env-default:"30m"`
}

// ConfidenceConfig holds the weights of the confidence blend. Weights are
// relative; they are normalized to sum to 100 when scoring.
type ConfidenceConfig struct {
	OrganicVotes       float64 `yaml:"organic_votes" env:"CONFIDENCE_W_ORGANIC_VOTES" env-default:"25"`
	InheritedVotes     float64 `yaml:"inherited_votes" env:"CONFIDENCE_W_INHERITED_VOTES" env-default:"5"`
	UniqueContributors float64 `yaml:"unique_contributors" env:"CONFIDENCE_W_UNIQUE_CONTRIBUTORS" env-default:"20"`
	Recency            float64 `yaml:"recency" env:"CONFIDENCE_W_RECENCY" env-default:"10"`
	Velocity           float64 `yaml:"velocity" env:"CONFIDENCE_W_VELOCITY" env-default:"10"`
	DuplicateCluster   float64 `yaml:"duplicate_cluster" env:"CONFIDENCE_W_DUPLICATE_CLUSTER" env-default:"10"`
	Richness           float64 `yaml:"richness" env:"CONFIDENCE_W_RICHNESS" env-default:"5"`
	Frequency          float64 `yaml:"frequency" env:"CONFIDENCE_W_FREQUENCY" env-default:"7.5"`
	Impact             float64 `yaml:"impact" env:"CONFIDENCE_W_IMPACT" env-default:"7.5"`
	// VoteCap is the vote count treated as "maximum" by log normalization.
	VoteCap int `yaml:"vote_cap" env:"CONFIDENCE_VOTE_CAP" env-default:"100"`
	// RecentWindowDays defines the window used for the recency ratio.
	RecentWindowDays int `yaml:"recent_window_days" env:"CONFIDENCE_RECENT_WINDOW_DAYS" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// A missing config.yaml is not an error; defaults and env vars are used instead.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects values that would make the engine misbehave silently.
func (c *Config) Validate() error {
	switch c.Dedup.Strategy {
	case "sql", "memory":
	default:
		return fmt.Errorf("dedup.strategy must be \"sql\" or \"memory\", got %q", c.Dedup.Strategy)
	}
	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold >= 1 {
		return fmt.Errorf("dedup.similarity_threshold must be in (0,1), got %v", c.Dedup.SimilarityThreshold)
	}
	if c.Dedup.MinIdeas < 2 {
		return fmt.Errorf("dedup.min_ideas must be at least 2, got %d", c.Dedup.MinIdeas)
	}
	if c.Dedup.TitleWeight < 0 || c.Dedup.ProblemWeight < 0 || c.Dedup.TitleWeight+c.Dedup.ProblemWeight == 0 {
		return fmt.Errorf("dedup weights must be non-negative and not both zero")
	}
	if c.Batch.Size < 1 {
		return fmt.Errorf("batch.size must be at least 1, got %d", c.Batch.Size)
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("batch.concurrency must be at least 1, got %d", c.Batch.Concurrency)
	}
	if c.Batch.Cooldown < 0 {
		return fmt.Errorf("batch.cooldown must not be negative")
	}
	if c.Embedding.RequestsPerSecond <= 0 {
		return fmt.Errorf("embedding.requests_per_second must be positive")
	}
	return c.Confidence.validate()
}

func (c *ConfidenceConfig) validate() error {
	weights := []float64{
		c.OrganicVotes, c.InheritedVotes, c.UniqueContributors, c.Recency,
		c.Velocity, c.DuplicateCluster, c.Richness, c.Frequency, c.Impact,
	}
	var total float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("confidence weights must be non-negative")
		}
		total += w
	}
	if total == 0 {
		return fmt.Errorf("confidence weights must not all be zero")
	}
	if c.VoteCap < 1 {
		return fmt.Errorf("confidence.vote_cap must be at least 1")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection URL. Credentials and the
// database name are escaped, so passwords may contain any character.
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBolt     = "bolt"

	// MaxUpsertAttempts bounds push.max_attempts
	MaxUpsertAttempts = 3
)

// DefaultAllowedRoutes are the in-app routes a notification may open.
// Entries with a ":param" segment match any value in that position.
var DefaultAllowedRoutes = []string{
	"/",
	"/home",
	"/profile",
	"/edit-profile",
	"/ask-karma",
	"/skin-analysis",
	"/hair-analysis",
	"/analysis-history",
	"/analysis/:id",
	"/questionnaire",
	"/blogs",
	"/blogs/:id",
	"/community",
	"/notifications",
	"/settings",
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	BoltPath string `mapstructure:"bolt_path"`
}

type PushConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	ReceiptTimeout    time.Duration `mapstructure:"receipt_timeout"`
	StaleTokenAfter   time.Duration `mapstructure:"stale_token_after"`
	PruneInterval     time.Duration `mapstructure:"prune_interval"`
	DispatchWorkers   int           `mapstructure:"dispatch_workers"`
	DispatchQueueSize int           `mapstructure:"dispatch_queue_size"`
	HomeRoute         string        `mapstructure:"home_route"`
	AllowedRoutes     []string      `mapstructure:"allowed_routes"`
}

// AgentConfig drives the headless device agent in cmd/pushclient
type AgentConfig struct {
	APIBaseURL  string `mapstructure:"api_base_url"`
	UserID      string `mapstructure:"user_id"`
	AccessToken string `mapstructure:"access_token"`
	Platform    string `mapstructure:"platform"`
	Permission  string `mapstructure:"permission"`
}

type Config struct {
	Port                string         `mapstructure:"port"`
	JWTSecret           string         `mapstructure:"jwt_secret"`
	JWTAccessExpiry     time.Duration  `mapstructure:"jwt_access_expiry"`
	AdminKeyHash        string         `mapstructure:"admin_key_hash"`
	Database            DatabaseConfig `mapstructure:"database"`
	FirebaseCredentials string         `mapstructure:"firebase_credentials"`
	GoogleProjectID     string         `mapstructure:"google_project_id"`
	GooglePubSubTopic   string         `mapstructure:"google_pubsub_topic"`
	GoogleCredentials   string         `mapstructure:"google_credentials"`
	Push                PushConfig     `mapstructure:"push"`
	Agent               AgentConfig    `mapstructure:"agent"`
}

// Load reads .env, an optional config file and the environment.
// Environment variables win; nested keys use underscores (PUSH_MAX_ATTEMPTS).
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("jwt_secret", "your-secret-key-change-in-production")
	v.SetDefault("jwt_access_expiry", "15m")
	v.SetDefault("admin_key_hash", "")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=karmaterra port=5432 sslmode=disable")
	v.SetDefault("database.bolt_path", "./data/push.db")

	v.SetDefault("firebase_credentials", "")
	v.SetDefault("google_project_id", "")
	v.SetDefault("google_pubsub_topic", "push-requests")
	v.SetDefault("google_credentials", "")

	v.SetDefault("push.max_attempts", 3)
	v.SetDefault("push.retry_backoff", "1s")
	v.SetDefault("push.receipt_timeout", "5s")
	v.SetDefault("push.stale_token_after", "1440h") // 60 days
	v.SetDefault("push.prune_interval", "24h")
	v.SetDefault("push.dispatch_workers", 3)
	v.SetDefault("push.dispatch_queue_size", 500)
	v.SetDefault("push.home_route", "/")
	v.SetDefault("push.allowed_routes", DefaultAllowedRoutes)

	v.SetDefault("agent.api_base_url", "http://localhost:8080")
	v.SetDefault("agent.user_id", "")
	v.SetDefault("agent.access_token", "")
	v.SetDefault("agent.platform", "android")
	v.SetDefault("agent.permission", "granted")
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverBolt:
	default:
		return fmt.Errorf("invalid database.driver %q: must be %s, %s or %s", c.Database.Driver, DriverPostgres, DriverSQLite, DriverBolt)
	}
	if c.Push.MaxAttempts < 1 || c.Push.MaxAttempts > MaxUpsertAttempts {
		return fmt.Errorf("invalid push.max_attempts %d: must be between 1 and %d", c.Push.MaxAttempts, MaxUpsertAttempts)
	}
	if c.Push.RetryBackoff < 0 {
		return fmt.Errorf("invalid push.retry_backoff: must not be negative")
	}
	if c.Push.DispatchWorkers < 1 {
		return fmt.Errorf("invalid push.dispatch_workers: must be >= 1")
	}
	if !strings.HasPrefix(c.Push.HomeRoute, "/") {
		return fmt.Errorf("invalid push.home_route %q: must start with /", c.Push.HomeRoute)
	}
	switch c.Agent.Platform {
	case "android", "ios", "web":
	default:
		return fmt.Errorf("invalid agent.platform %q", c.Agent.Platform)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverRemote   = "remote"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is read once at process start and never mutated afterwards.
type Config struct {
	Backend   BackendConfig
	Documents DocumentsConfig
	HTTP      HTTPConfig
	Realtime  RealtimeConfig
	Log       LogConfig
}

// BackendConfig identifies the remote backend and the resources this
// application uses on it. Driver "memory" runs against an in-process
// backend instead and needs none of the other fields.
type BackendConfig struct {
	Driver       string
	Endpoint     string
	ProjectID    string `mapstructure:"project_id"`
	DatabaseID   string `mapstructure:"database_id"`
	CollectionID string `mapstructure:"collection_id"`
	BucketID     string `mapstructure:"bucket_id"`
	Timeout      time.Duration
}

// DocumentsConfig selects where post documents live: "remote" keeps them on
// the backend, "postgres" moves them to a local database.
type DocumentsConfig struct {
	Driver   string
	DSN      string
	PageSize int `mapstructure:"page_size"`
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RealtimeConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level string
}

// Load reads .env (if present), an optional config file named by BLOG_CONFIG
// and BLOG_* environment variables, in increasing order of precedence.
func Load() (Config, error) {
	// A missing .env is fine; the OS environment is used instead.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("backend.driver", DriverRemote)
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("documents.driver", DriverRemote)
	v.SetDefault("documents.page_size", 25)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("realtime.enabled", true)
	v.SetDefault("log.level", "info")

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"backend.endpoint", "backend.project_id", "backend.database_id",
		"backend.collection_id", "backend.bucket_id", "documents.dsn",
	} {
		v.SetDefault(key, "")
	}

	if path := os.Getenv("BLOG_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("BLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Backend.Endpoint = strings.TrimRight(strings.TrimSpace(c.Backend.Endpoint), "/")

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend.Driver {
	case DriverMemory:
	case DriverRemote:
		errs = append(errs, c.Backend.validateRemote()...)
	default:
		errs = append(errs, fmt.Errorf("backend.driver %q must be %q or %q", c.Backend.Driver, DriverRemote, DriverMemory))
	}

	switch c.Documents.Driver {
	case DriverRemote:
	case DriverPostgres:
		if c.Documents.DSN == "" {
			errs = append(errs, errors.New("documents.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("documents.driver %q must be %q or %q", c.Documents.Driver, DriverRemote, DriverPostgres))
	}
	if c.Documents.PageSize <= 0 {
		errs = append(errs, errors.New("documents.page_size must be positive"))
	}

	return errors.Join(errs...)
}

func (b BackendConfig) validateRemote() []error {
	var errs []error
	if b.Endpoint == "" {
		errs = append(errs, errors.New("backend.endpoint is required"))
	} else if u, err := url.Parse(b.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.endpoint %q is not an absolute URL", b.Endpoint))
	}
	if b.ProjectID == "" {
		errs = append(errs, errors.New("backend.project_id is required"))
	}
	if b.DatabaseID == "" {
		errs = append(errs, errors.New("backend.database_id is required"))
	}
	if b.CollectionID == "" {
		errs = append(errs, errors.New("backend.collection_id is required"))
	}
	if b.BucketID == "" {
		errs = append(errs, errors.New("backend.bucket_id is required"))
	}
	return errs
}

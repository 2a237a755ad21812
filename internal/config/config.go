package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel   string            `yaml:"log_level" validate:"oneof=debug info warn error"`
	Server     ServerConfig      `yaml:"server"`
	Database   DatabaseConfig    `yaml:"database"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	Reporting  ReportingConfig   `yaml:"reporting"`
	Traits     map[string]string `yaml:"traits" validate:"required"`
	Training   TrainingConfig    `yaml:"training"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `yaml:"dsn"`
	QueryTimeout    time.Duration `yaml:"query_timeout" validate:"gt=0"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"gte=0"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

type ClassifierConfig struct {
	Kind               string        `yaml:"kind" validate:"oneof=forest remote"`
	ModelDir           string        `yaml:"model_dir" validate:"required_if=Kind forest"`
	Endpoint           string        `yaml:"endpoint" validate:"omitempty,url"`
	Timeout            time.Duration `yaml:"timeout" validate:"gt=0"`
	IncludeIdentifiers bool          `yaml:"include_identifiers"`
}

// ReportingConfig configures the classification results endpoint. An empty
// URL disables reporting.
type ReportingConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type TrainingConfig struct {
	OutputPath    string `yaml:"output_path" validate:"required"`
	Seed          uint64 `yaml:"seed"`
	RecordToStore bool   `yaml:"record_to_store"`
	SeedStore     bool   `yaml:"seed_store"`
	Questions     int    `yaml:"questions" validate:"gte=1"`
}

var validate = validator.New()

// Default returns the configuration used when neither file nor env set a value.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{
			Driver:          "postgres",
			QueryTimeout:    5 * time.Second,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Classifier: ClassifierConfig{
			Kind:     "forest",
			ModelDir: "./model",
			Timeout:  10 * time.Second,
		},
		Reporting: ReportingConfig{
			Timeout: 5 * time.Second,
		},
		Traits: map[string]string{
			"years_of_experience": "How many years of dermatology experience do you have?",
			"title":               "Select your position:",
		},
		Training: TrainingConfig{
			OutputPath: "./training_data.csv",
			Seed:       42,
			Questions:  1,
		},
	}
}

// LoadConfig reads the file named by CONFIG_PATH (default config.yaml).
func LoadConfig() (Config, error) {
	path := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		path = envPath
	}
	return Load(path)
}

// Load builds the configuration from defaults, the YAML file at path if it
// exists, and environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing %s: %w", path, err)
		}
		slog.Info("loaded config", "path", path)
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("error reading %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Classifier.Kind == "remote" && c.Classifier.Endpoint == "" {
		return errors.New("invalid config: classifier.endpoint is required when classifier.kind=remote")
	}
	return nil
}

// RequireDatabase reports an error when no store is configured.
func (c Config) RequireDatabase() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is not set (via config file, POSTGRES_URL or DATABASE_DSN)")
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Env vars override YAML values.
func applyEnv(cfg *Config) error {
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.Server.Addr, "SERVER_ADDR")
	envOverride(&cfg.Database.Driver, "DATABASE_DRIVER")
	envOverride(&cfg.Database.DSN, "POSTGRES_URL")
	envOverride(&cfg.Database.DSN, "DATABASE_DSN")
	envOverride(&cfg.Classifier.Kind, "CLASSIFIER_KIND")
	envOverride(&cfg.Classifier.ModelDir, "MODEL_DIR")
	envOverride(&cfg.Classifier.Endpoint, "ML_SERVICE_URL")
	envOverride(&cfg.Reporting.URL, "REPORTING_URL")
	envOverride(&cfg.Training.OutputPath, "TRAINING_OUTPUT")

	for _, o := range []struct {
		field *time.Duration
		key   string
	}{
		{&cfg.Database.QueryTimeout, "QUERY_TIMEOUT"},
		{&cfg.Classifier.Timeout, "CLASSIFIER_TIMEOUT"},
		{&cfg.Reporting.Timeout, "REPORTING_TIMEOUT"},
	} {
		if err := envOverrideDuration(o.field, o.key); err != nil {
			return err
		}
	}
	if err := envOverrideBool(&cfg.Classifier.IncludeIdentifiers, "INCLUDE_IDENTIFIERS"); err != nil {
		return err
	}
	if err := envOverrideBool(&cfg.Training.RecordToStore, "SAVE_TRAINING_DATA"); err != nil {
		return err
	}
	if val := os.Getenv("TRAINING_SEED"); val != "" {
		seed, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TRAINING_SEED %q: %w", val, err)
		}
		cfg.Training.Seed = seed
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideDuration(field *time.Duration, envKey string) error {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", envKey, val, err)
	}
	*field = d
	return nil
}

func envOverrideBool(field *bool, envKey string) error {
	val := strings.TrimSpace(os.Getenv(envKey))
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", envKey, val, err)
	}
	*field = b
	return nil
}

// Package config loads astmorph settings from defaults, an optional YAML
// file, a .env file and ASTMORPH_ environment variables, in increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = "astmorph"
	configType = "yaml"
	envPrefix  = "ASTMORPH"
)

// Defaults.
const (
	DefaultDSN            = ".astmorph/stages.db"
	DefaultStagingTTL     = 24 * time.Hour
	DefaultWorkers        = 8
	DefaultTransactionDir = ".astmorph/transactions"
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "text"
)

// Config is the full astmorph configuration.
type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	Staging StagingConfig `mapstructure:"staging"`
	Log     LogConfig     `mapstructure:"log"`
	Files   FilesConfig   `mapstructure:"files"`
}

// DBConfig locates the staging store.
type DBConfig struct {
	DSN       string `mapstructure:"dsn"`
	AuthToken string `mapstructure:"auth_token"`
	Debug     bool   `mapstructure:"debug"`
}

// StagingConfig controls staged rewrites.
type StagingConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// FilesConfig controls file processing.
type FilesConfig struct {
	Workers        int      `mapstructure:"workers"`
	Safe           bool     `mapstructure:"safe"` // transactions with rollback
	TransactionDir string   `mapstructure:"transaction_dir"`
	Exclude        []string `mapstructure:"exclude"`
}

// Load reads the configuration. An empty path searches astmorph.yaml in
// the working directory and $HOME; a missing file is not an error. The
// .env file in the working directory is loaded into the environment first
// and never overrides variables that are already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DB:      DBConfig{DSN: DefaultDSN},
		Staging: StagingConfig{TTL: DefaultStagingTTL},
		Log:     LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Files: FilesConfig{
			Workers:        DefaultWorkers,
			Safe:           true,
			TransactionDir: DefaultTransactionDir,
		},
	}
}

func applyDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("db.dsn", d.DB.DSN)
	v.SetDefault("db.auth_token", "")
	v.SetDefault("db.debug", false)
	v.SetDefault("staging.ttl", d.Staging.TTL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("files.workers", d.Files.Workers)
	v.SetDefault("files.safe", d.Files.Safe)
	v.SetDefault("files.transaction_dir", d.Files.TransactionDir)
	v.SetDefault("files.exclude", []string{})
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.Staging.TTL <= 0 {
		errs = append(errs, fmt.Errorf("staging.ttl must be positive, got %s", c.Staging.TTL))
	}
	if c.Files.Workers <= 0 {
		errs = append(errs, fmt.Errorf("files.workers must be positive, got %d", c.Files.Workers))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

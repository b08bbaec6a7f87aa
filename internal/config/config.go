package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Storage drivers accepted by database.driver.
const (
	DriverSQLite = "sqlite"
	DriverPebble = "pebble"
	DriverMemory = "memory"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Driver string
		Path   string
		// Sync fsyncs every committed batch (pebble only).
		Sync bool
	}
	Log struct {
		Level  string
		Format string
	}
	Auth struct {
		JWTSecret         string
		AdminUser         string
		AdminPasswordHash string
		TokenTTLMinutes   int
	}
	Archive struct {
		Bucket          string
		KeyPrefix       string
		Region          string
		Endpoint        string
		IntervalMinutes int
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	loadDotEnv()

	v.SetEnvPrefix("USERADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/useradmin.db")
	v.SetDefault("database.sync", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.adminuser", "admin")
	v.SetDefault("auth.adminpasswordhash", "")
	v.SetDefault("auth.tokenttlminutes", 60)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.keyprefix", "user-admin")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.intervalminutes", 0)
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverSQLite, DriverPebble:
		if strings.TrimSpace(c.Database.Path) == "" {
			errs = append(errs, fmt.Errorf("database.path is required for driver %q", c.Database.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", f))
	}

	if c.AuthEnabled() {
		if strings.TrimSpace(c.Auth.AdminUser) == "" {
			errs = append(errs, errors.New("auth.adminuser is required when auth.jwtsecret is set"))
		}
		if strings.TrimSpace(c.Auth.AdminPasswordHash) == "" {
			errs = append(errs, errors.New("auth.adminpasswordhash is required when auth.jwtsecret is set"))
		}
		if c.Auth.TokenTTLMinutes <= 0 {
			errs = append(errs, errors.New("auth.tokenttlminutes must be positive"))
		}
	}

	if c.Archive.IntervalMinutes < 0 {
		errs = append(errs, errors.New("archive.intervalminutes must not be negative"))
	}

	return errors.Join(errs...)
}

// AuthEnabled reports whether the API requires bearer tokens.
func (c Config) AuthEnabled() bool {
	return strings.TrimSpace(c.Auth.JWTSecret) != ""
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

func (c Config) ArchiveInterval() time.Duration {
	return time.Duration(c.Archive.IntervalMinutes) * time.Minute
}

// NewLogger builds the process logger from the log section.
func (c Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)
	return logger, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := parseEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}

// parseEnvLine splits a KEY=value line, skipping blanks and comments.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	idx := strings.Index(line, "=")
	if idx <= 0 {
		return "", "", false
	}

	key := strings.TrimSpace(line[:idx])
	value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "data/useradmin.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Auth.TokenTTLMinutes != 60 || cfg.Auth.AdminUser != "admin" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if cfg.AuthEnabled() {
		t.Error("auth should be disabled without a secret")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("USERADMIN_DATABASE_DRIVER", " Pebble ")
	t.Setenv("USERADMIN_DATABASE_PATH", "/var/lib/useradmin")
	t.Setenv("USERADMIN_ARCHIVE_INTERVALMINUTES", "15")
	t.Setenv("USERADMIN_LOG_FORMAT", "json")

	cfg, err := load(viper.New())
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if cfg.Database.Driver != DriverPebble {
		t.Errorf("Driver = %q, want %q", cfg.Database.Driver, DriverPebble)
	}
	if cfg.Database.Path != "/var/lib/useradmin" {
		t.Errorf("Path = %q", cfg.Database.Path)
	}
	if got := cfg.ArchiveInterval().Minutes(); got != 15 {
		t.Errorf("ArchiveInterval = %v minutes, want 15", got)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger error = %v", err)
	}
	if logger.Level.String() != "info" {
		t.Errorf("logger level = %s", logger.Level)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var c Config
		c.Database.Driver = DriverMemory
		c.Log.Level = "info"
		c.Log.Format = "text"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "memory", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.Database.Driver = DriverSQLite }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
		{name: "auth without hash", mutate: func(c *Config) {
			c.Auth.JWTSecret = "s3cret"
			c.Auth.AdminUser = "admin"
			c.Auth.TokenTTLMinutes = 60
		}, wantErr: true},
		{name: "auth complete", mutate: func(c *Config) {
			c.Auth.JWTSecret = "s3cret"
			c.Auth.AdminUser = "admin"
			c.Auth.AdminPasswordHash = "$2a$10$abc"
			c.Auth.TokenTTLMinutes = 60
		}},
		{name: "negative interval", mutate: func(c *Config) { c.Archive.IntervalMinutes = -1 }, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line     string
		key, val string
		ok       bool
	}{
		{line: "USERADMIN_LOG_LEVEL=debug", key: "USERADMIN_LOG_LEVEL", val: "debug", ok: true},
		{line: `  export A = "quoted value" `, key: "A", val: "quoted value", ok: true},
		{line: "# comment"},
		{line: ""},
		{line: "=novalue"},
		{line: "NOEQUALS"},
	}
	for _, tc := range tests {
		key, val, ok := parseEnvLine(tc.line)
		if key != tc.key || val != tc.val || ok != tc.ok {
			t.Errorf("parseEnvLine(%q) = %q, %q, %v", tc.line, key, val, ok)
		}
	}
}

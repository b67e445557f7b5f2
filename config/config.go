/*
Package config loads server configuration.

PURPOSE:
  One Config value built from defaults, an optional TOML file, an optional
  .env file and LEAVE_* environment variables, in that order of priority
  (later wins). Command-line flags in cmd/server override all of them.

KEY CONCEPTS:
  - Leave kinds: which kinds decrement the balance and which carry a
    certificate are configuration, turned into a leave.KindPolicy here.
  - Holiday window: how many years around a request the calendar loads.

SEE ALSO:
  - logging.go: logrus logger from LoggingConfig
  - cmd/server/main.go: wiring
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/warp/leave-engine/leave"
)

// Config holds all configuration for the leave server.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
	Leave   LeaveConfig   `toml:"leave"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	DatabasePath    string `toml:"database_path"`
	CertificatesDir string `toml:"certificates_dir"`
	// CertificatesInbox is where clients drop scans before submitting;
	// certificate paths outside it are rejected.
	CertificatesInbox string `toml:"certificates_inbox"`
	SeedHolidays      bool   `toml:"seed_holidays"` // insert the fixed public holidays on startup
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// LeaveConfig holds the engine's kind table and calendar window.
type LeaveConfig struct {
	BalanceKinds       []string `toml:"balance_kinds"`
	CertificateKinds   []string `toml:"certificate_kinds"`
	HolidayYearsBefore int      `toml:"holiday_years_before"`
	HolidayYearsAfter  int      `toml:"holiday_years_after"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			DatabasePath:    "./data/leave.db",
			CertificatesDir:   "./data/certificates",
			CertificatesInbox: "./data/inbox",
			SeedHolidays:      true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Leave: LeaveConfig{
			BalanceKinds:       []string{string(leave.KindAnnual)},
			CertificateKinds:   []string{string(leave.KindSick)},
			HolidayYearsBefore: 1,
			HolidayYearsAfter:  2,
		},
	}
}

// Load reads configuration. Missing files are skipped; a malformed file is
// an error. envFile may be empty.
func Load(configPath, envFile string) (*Config, error) {
	cfg := NewDefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if envFile != "" {
		// godotenv.Load never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies LEAVE_* environment variables. A value that
// does not parse is an error, not a silent fallback to the default.
func applyEnvOverrides(cfg *Config) error {
	if host := os.Getenv("LEAVE_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("LEAVE_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid LEAVE_PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if path := os.Getenv("LEAVE_DB_PATH"); path != "" {
		cfg.Storage.DatabasePath = path
	}
	if dir := os.Getenv("LEAVE_CERTIFICATES_DIR"); dir != "" {
		cfg.Storage.CertificatesDir = dir
	}
	if dir := os.Getenv("LEAVE_CERTIFICATES_INBOX"); dir != "" {
		cfg.Storage.CertificatesInbox = dir
	}
	if v := os.Getenv("LEAVE_SEED_HOLIDAYS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LEAVE_SEED_HOLIDAYS %q: %w", v, err)
		}
		cfg.Storage.SeedHolidays = b
	}
	if level := os.Getenv("LEAVE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LEAVE_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if v, ok := os.LookupEnv("LEAVE_BALANCE_KINDS"); ok {
		cfg.Leave.BalanceKinds = splitList(v)
	}
	if v, ok := os.LookupEnv("LEAVE_CERTIFICATE_KINDS"); ok {
		cfg.Leave.CertificateKinds = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Storage.DatabasePath) == "" {
		return errors.New("storage.database_path is required")
	}
	if c.Leave.HolidayYearsBefore < 0 || c.Leave.HolidayYearsAfter < 0 {
		return errors.New("holiday window must not be negative")
	}
	for _, k := range append(append([]string{}, c.Leave.BalanceKinds...), c.Leave.CertificateKinds...) {
		if leave.ParseKind(k) == "" {
			return errors.New("leave kinds must not be blank")
		}
	}
	return nil
}

// KindPolicy builds the engine's kind table.
func (c *Config) KindPolicy() leave.KindPolicy {
	return leave.NewKindPolicy(parseKinds(c.Leave.BalanceKinds), parseKinds(c.Leave.CertificateKinds))
}

func parseKinds(names []string) []leave.Kind {
	kinds := make([]leave.Kind, 0, len(names))
	for _, n := range names {
		kinds = append(kinds, leave.ParseKind(n))
	}
	return kinds
}

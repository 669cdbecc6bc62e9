// Package config handles configuration for the server component,
// including defaults, environment variables, and command-line flags.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the tallysync server.
//
// Fields:
//   - Addr: bind address for the HTTP/WebSocket endpoint.
//   - DatabasePath: path to the SQLite database file.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use the default in prod.
//   - TokenTTL: access token lifetime.
//   - TrialPeriod: subscription window granted to new accounts.
//   - LogLevel: slog level name (debug, info, warn, error).
type Config struct {
	Addr         string
	DatabasePath string
	SecretKey    string
	TokenTTL     time.Duration
	TrialPeriod  time.Duration
	LogLevel     string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey is insecure for production and must be overridden.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.DatabasePath = "tallysync.db"
	c.SecretKey = "dev-secret-key"
	c.TokenTTL = 24 * time.Hour
	c.TrialPeriod = 14 * 24 * time.Hour
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from environment variables and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseFlags(cfg, os.Args[1:])
	return cfg
}

// parseEnv overlays values from TALLYSYNC_* environment variables
func parseEnv(cfg *Config) {
	if v, ok := os.LookupEnv("TALLYSYNC_ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := os.LookupEnv("TALLYSYNC_DATABASE"); ok {
		cfg.DatabasePath = v
	}
	if v, ok := os.LookupEnv("TALLYSYNC_SECRET_KEY"); ok {
		cfg.SecretKey = v
	}
	if v, ok := os.LookupEnv("TALLYSYNC_TOKEN_TTL_HOURS"); ok {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			cfg.TokenTTL = time.Duration(hours) * time.Hour
		}
	}
	if v, ok := os.LookupEnv("TALLYSYNC_TRIAL_DAYS"); ok {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.TrialPeriod = time.Duration(days) * 24 * time.Hour
		}
	}
	if v, ok := os.LookupEnv("TALLYSYNC_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}

// parseFlags overlays values from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   SQLite database path
//	-s string   JWT HMAC secret key
//	-t int      token validity, hours
//	-l string   log level (debug, info, warn, error)
func parseFlags(cfg *Config, args []string) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "address and port to run server")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "SQLite database path")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "JWT secret key")
	tokenTTLHours := fs.Int("t", int(cfg.TokenTTL.Hours()), "token validity (in hours)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.TokenTTL = time.Duration(*tokenTTLHours) * time.Hour
}

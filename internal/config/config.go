package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// tokenFileName holds the raw app token produced by pairing.
	tokenFileName = "token.key"

	// stateFileName holds the pending pairing journal.
	stateFileName = "state.db"
)

// Config holds all environment-based configuration for fbx-gateway.
type Config struct {
	// Address the inbound HTTP server listens on.
	ListenAddr string `env:"GATEWAY_LISTEN_ADDR" envDefault:":3333"`

	// Root of the box API. Downstream paths are joined onto it.
	APIURL string `env:"FREEBOX_API_URL" envDefault:"http://mafreebox.freebox.fr/api"`

	// Version segment used for the login and pairing endpoints.
	APIVersion string `env:"FREEBOX_API_VERSION" envDefault:"v8"`

	// Identity presented to the box when pairing and opening sessions.
	AppID      string `env:"FREEBOX_APP_ID" envDefault:"fr.freebox_gateway"`
	AppName    string `env:"FREEBOX_APP_NAME" envDefault:"Freebox Gateway"`
	AppVersion string `env:"FREEBOX_APP_VERSION" envDefault:"1.0.0"`
	DeviceName string `env:"FREEBOX_DEVICE_NAME" envDefault:"Freebox Gateway"`

	// Directory holding token.key and state.db.
	ConfigDir string `env:"GATEWAY_CONFIG_DIR" envDefault:"config"`

	// Upper bound on how long a pairing request waits for the user to
	// answer on the box.
	PairingTimeout time.Duration `env:"PAIRING_TIMEOUT" envDefault:"10m"`

	// Inbound rate limit in requests per second. Zero disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing settings to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
// Positional args follow the historical command line: [port] [apiURL].
func Load(args ...string) (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyArgs(args)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	absDir, err := filepath.Abs(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir to absolute path: %w", err)
	}

	cfg.ConfigDir = absDir
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	return cfg, nil
}

// applyArgs overrides the listen port and API URL from positional
// arguments. A non-numeric port is ignored, as is an empty URL.
func (c *Config) applyArgs(args []string) {
	if len(args) > 0 {
		if port, err := strconv.Atoi(args[0]); err == nil && port > 0 {
			c.ListenAddr = fmt.Sprintf(":%d", port)
		}
	}

	if len(args) > 1 && args[1] != "" {
		c.APIURL = args[1]
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("FREEBOX_API_URL is not a valid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("FREEBOX_API_URL must use http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("FREEBOX_API_URL must include a host")
	}

	if c.APIVersion == "" {
		return fmt.Errorf("FREEBOX_API_VERSION is required")
	}

	if c.AppID == "" {
		return fmt.Errorf("FREEBOX_APP_ID is required")
	}

	if c.ConfigDir == "" {
		return fmt.Errorf("GATEWAY_CONFIG_DIR is required")
	}

	if c.PairingTimeout <= 0 {
		return fmt.Errorf("PAIRING_TIMEOUT must be positive")
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}

	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}

	return nil
}

// TokenPath returns the app token file path.
func (c *Config) TokenPath() string {
	return filepath.Join(c.ConfigDir, tokenFileName)
}

// StatePath returns the state database path.
func (c *Config) StatePath() string {
	return filepath.Join(c.ConfigDir, stateFileName)
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

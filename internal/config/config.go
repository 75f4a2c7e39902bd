// Package config assembles a single immutable Config value from the
// environment at process start. No package-level mutable configuration
// exists after Load returns — handlers receive Config by value/reference
// through the dependency chain instead of reading the environment directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the engine recognizes
// (spec.md §6.7).
type Config struct {
	// DataDir is the base directory for persisted state. Required in
	// production; defaults to ~/.portfolio-prism/dev in development.
	DataDir string

	// EchoToken is the shared secret for the dev-only HTTP/SSE transport.
	// Empty means the HTTP transport must refuse to start.
	EchoToken string

	// Headless suppresses any interactive prompts in adapters.
	Headless bool

	// DebugPipeline enables atomic per-phase debug snapshots.
	DebugPipeline bool

	// Env is the resolved deployment environment, derived informationally
	// from PRISM_ENV (defaults to "production"); only used to pick safe
	// defaults for DataDir, never to gate behavior elsewhere.
	Env string

	// ProxyBaseURL points at the credential-injecting proxy fronting every
	// external metadata provider (spec.md §6.5). Empty disables external
	// lookups; the cascade degrades to an ordinary miss, never a crash.
	ProxyBaseURL string

	// HiveBaseURL and HiveAnonKey configure the community Hive RPC client
	// (spec.md §6.4). Empty disables Hive entirely — every lookup misses,
	// every contribution queues and is dropped on restart.
	HiveBaseURL string
	HiveAnonKey string

	// BrokerBinary is the Trade Republic bridge child executable path
	// (spec.md §4.6). Required before any tr_* command is used.
	BrokerBinary string
}

// Load reads environment variables (optionally seeded from a .env file in
// non-production environments, mirroring the pack's recurring godotenv
// convention) and returns a fully-resolved, immutable Config.
func Load() (Config, error) {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("PRISM_ENV")))
	if env == "" {
		env = "production"
	}
	if env != "production" {
		// Best-effort: a missing .env file in dev is not an error.
		_ = godotenv.Load()
	}

	cfg := Config{
		EchoToken:     os.Getenv("PRISM_ECHO_TOKEN"),
		Headless:      os.Getenv("PRISM_HEADLESS") != "",
		DebugPipeline: os.Getenv("DEBUG_PIPELINE") != "",
		Env:           env,
		ProxyBaseURL:  os.Getenv("PRISM_PROXY_BASE_URL"),
		HiveBaseURL:   os.Getenv("PRISM_HIVE_BASE_URL"),
		HiveAnonKey:   os.Getenv("PRISM_HIVE_ANON_KEY"),
		BrokerBinary:  os.Getenv("PRISM_BROKER_BIN"),
	}

	dataDir := os.Getenv("PRISM_DATA_DIR")
	if dataDir == "" {
		if env == "production" {
			return Config{}, fmt.Errorf("config: PRISM_DATA_DIR is required in production")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve home directory for dev default: %w", err)
		}
		dataDir = filepath.Join(home, ".portfolio-prism", "dev")
	}

	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return Config{}, fmt.Errorf("config: resolve PRISM_DATA_DIR: %w", err)
	}
	cfg.DataDir = abs

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return Config{}, fmt.Errorf("config: create data dir %s: %w", cfg.DataDir, err)
	}

	return cfg, nil
}

// ResolveUnderDataDir canonicalizes path and verifies it stays under
// cfg.DataDir, preventing directory traversal from any caller-influenced
// filename (spec.md §4.7, §8 "uploaded-holdings filename" boundary case).
func (c Config) ResolveUnderDataDir(path string) (string, error) {
	joined := filepath.Join(c.DataDir, path)
	clean, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("config: resolve path: %w", err)
	}
	root, err := filepath.Abs(c.DataDir)
	if err != nil {
		return "", fmt.Errorf("config: resolve data dir: %w", err)
	}
	if clean != root && !strings.HasPrefix(clean, root+string(filepath.Separator)) {
		return "", fmt.Errorf("config: path %q escapes data directory", path)
	}
	return clean, nil
}

// StorePath is the single relational-file state database (spec.md §6.6).
func (c Config) StorePath() string { return filepath.Join(c.DataDir, "prism.db") }

// SessionCookiePath is the Trade Republic session cookie file.
func (c Config) SessionCookiePath() string { return filepath.Join(c.DataDir, "tr_cookies.txt") }

// HealthReportPath is the per-run pipeline health report.
func (c Config) HealthReportPath() string {
	return filepath.Join(c.DataDir, "outputs", "pipeline_health.json")
}

// BreakdownReportPath is the per-run holdings breakdown report.
func (c Config) BreakdownReportPath() string {
	return filepath.Join(c.DataDir, "outputs", "holdings_breakdown.csv")
}

// AdaptersConfigPath is the optional YAML file overriding or extending each
// ETF issuer adapter's seed ISIN list (spec.md §4.4). Its absence is not an
// error: the engine falls back to a small built-in starter table.
func (c Config) AdaptersConfigPath() string {
	return filepath.Join(c.DataDir, "adapters.yaml")
}

// UploadedHoldingsPath resolves a user-supplied filename for the
// upload_holdings command to a path under DataDir/uploads, rejecting any
// attempt to escape it (spec.md §8: a path like "../../../etc/passwd" must
// be rejected before any file access). The caller must treat a non-nil
// error as INVALID_COMMAND, not a file-access failure.
func (c Config) UploadedHoldingsPath(filename string) (string, error) {
	return c.ResolveUnderDataDir(filepath.Join("uploads", filename))
}

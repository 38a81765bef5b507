package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds service credentials and tuning for a run.
type Config struct {
	// TMDB search settings
	TMDBAPIKey     string `json:"tmdb_api_key"`
	TMDBLanguage   string `json:"tmdb_language"`
	TMDBCacheHours int    `json:"tmdb_cache_hours"`

	// OMDb verification
	OMDBAPIKey string `json:"omdb_api_key"`

	// Real-Debrid
	RealDebridAPIURL   string `json:"real_debrid_api_url"`
	RealDebridAPIKey   string `json:"real_debrid_api_key"`
	DebridPollSeconds  int    `json:"debrid_poll_seconds"`
	DebridPollAttempts int    `json:"debrid_poll_attempts"`
	EnableLedger       bool   `json:"enable_ledger"`

	// Jellyfin
	JellyfinServer    string `json:"jellyfin_server"`
	JellyfinAPIKey    string `json:"jellyfin_api_key"`
	SyncWaitSeconds   int    `json:"sync_wait_seconds"`
	ScanSettleSeconds int    `json:"scan_settle_seconds"`

	// Tunarr
	TunarrServer            string `json:"tunarr_server"`
	TunarrTranscodeConfigID string `json:"tunarr_transcode_config_id"`

	// Torrent resolution
	Quality       string `json:"quality"`
	MinSeeders    int    `json:"min_seeders"`
	PerSiteLimit  int    `json:"per_site_limit"`
	EnableProxies bool   `json:"enable_proxies"`
	ProxyListURL  string `json:"proxy_list_url"`

	// Run shape
	MovieLimit  int `json:"movie_limit"`
	WorkerCount int `json:"worker_count"`

	// Logging
	EnableLogging    bool   `json:"enable_logging"`
	LogRetentionDays int    `json:"log_retention_days"`
	LogLevel         string `json:"log_level"`
	LogMaxSizeMB     int    `json:"log_max_size_mb"`
	LogMaxBackups    int    `json:"log_max_backups"`
}

// Stage names a part of the workflow that needs credentials.
type Stage string

const (
	StageSearch  Stage = "search"
	StageVerify  Stage = "verify"
	StageCache   Stage = "cache"
	StageCatalog Stage = "catalog"
	StageChannel Stage = "channel"
)

const defaultProxyListURL = "https://api.proxyscrape.com/v2/?request=displayproxies&protocol=http&timeout=5000&country=all&ssl=all&anonymity=all"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TMDBLanguage:       "en-US",
		TMDBCacheHours:     168,
		RealDebridAPIURL:   "https://api.real-debrid.com/rest/1.0",
		DebridPollSeconds:  5,
		DebridPollAttempts: 12,
		EnableLedger:       true,
		SyncWaitSeconds:    30,
		ScanSettleSeconds:  20,
		Quality:            "1080p",
		MinSeeders:         5,
		PerSiteLimit:       3,
		ProxyListURL:       defaultProxyListURL,
		MovieLimit:         40,
		WorkerCount:        10,
		EnableLogging:      true,
		LogRetentionDays:   30,
		LogLevel:           "info",
		LogMaxSizeMB:       10,
		LogMaxBackups:      3,
	}
}

// Dir returns the directory holding config, cache, ledger and logs.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".reelrunner"), nil
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DataPath joins name onto the config directory.
func DataPath(name ...string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, name...)...), nil
}

// Load reads the config file, then layers a .env file from the working
// directory and the process environment on top.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// LoadFile reads a config file, filling missing fields with defaults. A
// missing file yields DefaultConfig.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults replaces zero values that would make a run misbehave.
func (cfg *Config) fillDefaults() {
	defaults := DefaultConfig()
	if cfg.TMDBLanguage == "" {
		cfg.TMDBLanguage = defaults.TMDBLanguage
	}
	if cfg.TMDBCacheHours <= 0 {
		cfg.TMDBCacheHours = defaults.TMDBCacheHours
	}
	if cfg.RealDebridAPIURL == "" {
		cfg.RealDebridAPIURL = defaults.RealDebridAPIURL
	}
	if cfg.DebridPollSeconds <= 0 {
		cfg.DebridPollSeconds = defaults.DebridPollSeconds
	}
	if cfg.DebridPollAttempts <= 0 {
		cfg.DebridPollAttempts = defaults.DebridPollAttempts
	}
	if cfg.SyncWaitSeconds < 0 {
		cfg.SyncWaitSeconds = defaults.SyncWaitSeconds
	}
	if cfg.ScanSettleSeconds < 0 {
		cfg.ScanSettleSeconds = defaults.ScanSettleSeconds
	}
	if cfg.Quality == "" {
		cfg.Quality = defaults.Quality
	}
	if cfg.MinSeeders <= 0 {
		cfg.MinSeeders = defaults.MinSeeders
	}
	if cfg.PerSiteLimit <= 0 {
		cfg.PerSiteLimit = defaults.PerSiteLimit
	}
	if cfg.ProxyListURL == "" {
		cfg.ProxyListURL = defaults.ProxyListURL
	}
	if cfg.MovieLimit < 0 {
		cfg.MovieLimit = defaults.MovieLimit
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.LogRetentionDays <= 0 {
		cfg.LogRetentionDays = defaults.LogRetentionDays
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.LogMaxSizeMB <= 0 {
		cfg.LogMaxSizeMB = defaults.LogMaxSizeMB
	}
	if cfg.LogMaxBackups <= 0 {
		cfg.LogMaxBackups = defaults.LogMaxBackups
	}
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	str("TMDB_API_KEY", &cfg.TMDBAPIKey)
	str("OMDB_API_KEY", &cfg.OMDBAPIKey)
	str("REAL_DEBRID_API_URL", &cfg.RealDebridAPIURL)
	str("REAL_DEBRID_API_KEY", &cfg.RealDebridAPIKey)
	str("JELLYFIN_SERVER", &cfg.JellyfinServer)
	str("JELLYFIN_API_KEY", &cfg.JellyfinAPIKey)
	str("TUNARR_SERVER", &cfg.TunarrServer)
	str("TUNARR_TRANSCODE_CONFIG_ID", &cfg.TunarrTranscodeConfigID)
	str("DEFAULT_QUALITY", &cfg.Quality)
	num("MIN_SEEDERS", &cfg.MinSeeders)
}

// Save writes the configuration to disk
func (cfg *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return cfg.SaveFile(path)
}

// SaveFile writes the configuration to path.
func (cfg *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// credentials live in this file
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports every missing setting needed by the given stages.
func (cfg *Config) Validate(stages ...Stage) error {
	var missing []string
	need := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	for _, stage := range stages {
		switch stage {
		case StageSearch:
			need(cfg.TMDBAPIKey, "TMDB_API_KEY")
		case StageVerify:
			need(cfg.OMDBAPIKey, "OMDB_API_KEY")
		case StageCache:
			need(cfg.RealDebridAPIURL, "REAL_DEBRID_API_URL")
			need(cfg.RealDebridAPIKey, "REAL_DEBRID_API_KEY")
		case StageCatalog:
			need(cfg.JellyfinServer, "JELLYFIN_SERVER")
			need(cfg.JellyfinAPIKey, "JELLYFIN_API_KEY")
		case StageChannel:
			need(cfg.TunarrServer, "TUNARR_SERVER")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// HasTunarr reports whether channel provisioning is configured.
func (cfg *Config) HasTunarr() bool {
	return strings.TrimSpace(cfg.TunarrServer) != ""
}

// Masked returns a copy safe to print, with credentials obscured.
func (cfg *Config) Masked() *Config {
	clone := *cfg
	clone.TMDBAPIKey = mask(cfg.TMDBAPIKey)
	clone.OMDBAPIKey = mask(cfg.OMDBAPIKey)
	clone.RealDebridAPIKey = mask(cfg.RealDebridAPIKey)
	clone.JellyfinAPIKey = mask(cfg.JellyfinAPIKey)
	return &clone
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

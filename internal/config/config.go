package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the gavel configuration.
type Config struct {
	Provider         string        `json:"provider"`
	Model            string        `json:"model,omitempty"`
	Format           string        `json:"format"`
	FailOn           string        `json:"failOn"`
	MaxFilesToReview int           `json:"maxFilesToReview"`
	MaxDiffBytes     int           `json:"maxDiffBytes"`
	MaxIssuesPerFile int           `json:"maxIssuesPerFile"`
	MaxChunkBytes    int           `json:"maxChunkBytes"`
	WarnBudget       int           `json:"warnBudget"`
	Language         string        `json:"language,omitempty"`
	PolicyFile       string        `json:"policyFile,omitempty"`
	GitHub           GitHubConfig  `json:"github"`
	Cache            CacheConfig   `json:"cache"`
	Privacy          PrivacyConfig `json:"privacy"`
	Log              LogConfig     `json:"log"`
}

// GitHubConfig names the repository under review. Empty values fall back
// to detection from the git remote at run time.
type GitHubConfig struct {
	Owner string `json:"owner,omitempty"`
	Repo  string `json:"repo,omitempty"`
}

// CacheConfig controls the model-response cache.
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Dir        string `json:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// PrivacyConfig controls secret redaction before diffs leave the machine.
type PrivacyConfig struct {
	RedactSecrets bool     `json:"redactSecrets"`
	RedactPaths   []string `json:"redactPaths,omitempty"`
}

// LogConfig controls log verbosity and rendering.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:         "anthropic",
		Format:           "text",
		FailOn:           "verdict",
		MaxFilesToReview: 50,
		MaxDiffBytes:     500000,
		MaxIssuesPerFile: 10,
		MaxChunkBytes:    100000,
		WarnBudget:       3,
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for gavel.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gavel"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "gavel"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "gavel"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "gavel"), nil
	default:
		return filepath.Join(home, ".config", "gavel"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile loads config from the config file. Returns zero Config and nil
// error if the file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config file atomically with owner-only permissions.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Load builds the effective config by merging: defaults <- file <- env <-
// overrides. A .env file in the working directory is loaded first so that
// API keys and GAVEL_* variables can live alongside the repo; a missing
// .env is not an error. The overrides map comes from CLI flags (only
// non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	fileCfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fileCfg)
	mergeEnv(&cfg)
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func mergeFile(dst *Config, src Config) {
	if src.Provider != "" {
		dst.Provider = src.Provider
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.FailOn != "" {
		dst.FailOn = src.FailOn
	}
	if src.MaxFilesToReview > 0 {
		dst.MaxFilesToReview = src.MaxFilesToReview
	}
	if src.MaxDiffBytes > 0 {
		dst.MaxDiffBytes = src.MaxDiffBytes
	}
	if src.MaxIssuesPerFile > 0 {
		dst.MaxIssuesPerFile = src.MaxIssuesPerFile
	}
	if src.MaxChunkBytes > 0 {
		dst.MaxChunkBytes = src.MaxChunkBytes
	}
	if src.WarnBudget > 0 {
		dst.WarnBudget = src.WarnBudget
	}
	if src.Language != "" {
		dst.Language = src.Language
	}
	if src.PolicyFile != "" {
		dst.PolicyFile = src.PolicyFile
	}
	if src.GitHub.Owner != "" {
		dst.GitHub.Owner = src.GitHub.Owner
	}
	if src.GitHub.Repo != "" {
		dst.GitHub.Repo = src.GitHub.Repo
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
	if src.Cache.TTLSeconds > 0 {
		dst.Cache.TTLSeconds = src.Cache.TTLSeconds
	}
	// JSON cannot distinguish an unset bool from false, so a file can only
	// turn caching on, and redaction stays on unless env or a flag turns
	// it off.
	dst.Cache.Enabled = src.Cache.Enabled || dst.Cache.Enabled
	if len(src.Privacy.RedactPaths) > 0 {
		dst.Privacy.RedactPaths = src.Privacy.RedactPaths
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
}

func mergeEnv(cfg *Config) {
	setStr := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr("GAVEL_PROVIDER", &cfg.Provider)
	setStr("GAVEL_MODEL", &cfg.Model)
	setStr("GAVEL_FORMAT", &cfg.Format)
	setStr("GAVEL_FAIL_ON", &cfg.FailOn)
	setInt("GAVEL_MAX_FILES", &cfg.MaxFilesToReview)
	setInt("GAVEL_MAX_DIFF_BYTES", &cfg.MaxDiffBytes)
	setInt("GAVEL_MAX_ISSUES_PER_FILE", &cfg.MaxIssuesPerFile)
	setInt("GAVEL_MAX_CHUNK_BYTES", &cfg.MaxChunkBytes)
	setInt("GAVEL_WARN_BUDGET", &cfg.WarnBudget)
	setStr("GAVEL_LANGUAGE", &cfg.Language)
	setStr("GAVEL_POLICY_FILE", &cfg.PolicyFile)
	setStr("GAVEL_GITHUB_OWNER", &cfg.GitHub.Owner)
	setStr("GAVEL_GITHUB_REPO", &cfg.GitHub.Repo)
	setStr("GAVEL_CACHE_DIR", &cfg.Cache.Dir)
	setInt("GAVEL_CACHE_TTL_SECONDS", &cfg.Cache.TTLSeconds)
	setStr("GAVEL_LOG_LEVEL", &cfg.Log.Level)
	setStr("GAVEL_LOG_FORMAT", &cfg.Log.Format)
	if v := os.Getenv("GAVEL_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("GAVEL_REDACT_SECRETS"); v != "" {
		cfg.Privacy.RedactSecrets = v == "true" || v == "1"
	}
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := SetField(cfg, key, value); err != nil {
			return err
		}
	}
	return nil
}

// SetField sets a single config field by key name. Returns an error if the
// key is unknown or the value does not parse.
func SetField(cfg *Config, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return n, nil
	}

	var err error
	switch key {
	case "provider":
		cfg.Provider = value
	case "model":
		cfg.Model = value
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = value
	case "maxFilesToReview":
		cfg.MaxFilesToReview, err = atoi()
	case "maxDiffBytes":
		cfg.MaxDiffBytes, err = atoi()
	case "maxIssuesPerFile":
		cfg.MaxIssuesPerFile, err = atoi()
	case "maxChunkBytes":
		cfg.MaxChunkBytes, err = atoi()
	case "warnBudget":
		cfg.WarnBudget, err = atoi()
	case "language":
		cfg.Language = value
	case "policyFile":
		cfg.PolicyFile = value
	case "github.owner":
		cfg.GitHub.Owner = value
	case "github.repo":
		cfg.GitHub.Repo = value
	case "cache.enabled":
		cfg.Cache.Enabled = value == "true" || value == "1"
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		cfg.Cache.TTLSeconds, err = atoi()
	case "privacy.redactSecrets":
		cfg.Privacy.RedactSecrets = value == "true" || value == "1"
	case "log.level":
		cfg.Log.Level = value
	case "log.format":
		cfg.Log.Format = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return err
}

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all flowedit configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	APIURL         string `json:"api_url"`
	DBPath         string `json:"db_path"`
	LogLevel       string `json:"log_level"`
	CatalogPath    string `json:"catalog"`
	ListenAddr     string `json:"listen_addr"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func defaultConfig() Config {
	return Config{
		DBPath:         filepath.Join(floweditDir(), "flowedit.db"),
		LogLevel:       "info",
		CatalogPath:    filepath.Join(floweditDir(), "catalog.json"),
		ListenAddr:     ":4200",
		TimeoutSeconds: 30,
	}
}

func floweditDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowedit"
	}
	return filepath.Join(home, ".flowedit")
}

func settingsPath() string {
	return filepath.Join(floweditDir(), "settings.json")
}

func loadConfig() Config {
	return loadConfigFrom(settingsPath(), os.Getenv)
}

func loadConfigFrom(path string, getenv func(string) string) Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := getenv("FLOWEDIT_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := getenv("FLOWEDIT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("FLOWEDIT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("FLOWEDIT_CATALOG"); v != "" {
		cfg.CatalogPath = v
	}
	if v := getenv("FLOWEDIT_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := getenv("FLOWEDIT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeoutSeconds = n
		}
	}

	return cfg
}

// Timeout returns the request timeout of the remote API client.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// writeConfig stores cfg as the settings file at path.
func writeConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

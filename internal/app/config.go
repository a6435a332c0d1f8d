package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/edaccess/coursecheck/internal/fetcher"
	"github.com/edaccess/coursecheck/internal/webclient"
)

// Config contains the runtime configuration shared by the server and CLI.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// StorageRoot is the base path for the sqlite database and exported
	// reports.
	StorageRoot string

	// Canvas configures the content fetcher (instance URL, token, paging,
	// per-item timeout, retries).
	Canvas fetcher.Config

	// WebClient configures the default (non-rendered) HTTP backend.
	WebClient webclient.Config

	// ScanConcurrency bounds concurrent normalize+evaluate work per scan.
	ScanConcurrency int
}

// DefaultConfig returns a Config populated with sensible development
// defaults. Canvas.BaseURL and Canvas.Token still need to be set.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:  ":8080",
		StorageRoot: "~/.config/coursecheck",
		Canvas:      fetcher.DefaultConfig(),
		WebClient: webclient.Config{
			Backend: webclient.BackendNetHTTP,
			Timeout: 30 * time.Second,
		},
		ScanConcurrency: 4,
	}
}

// DownloadDir is where exported reports are written and served from.
func (c *Config) DownloadDir() string {
	return filepath.Join(c.StorageRoot, "downloads")
}

// LoadConfig reads configuration from an optional yaml file plus
// COURSECHECK_* environment overrides and returns the merged Config.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("storage_root", def.StorageRoot)
	v.SetDefault("canvas.base_url", "")
	v.SetDefault("canvas.token", "")
	v.SetDefault("canvas.per_page", def.Canvas.PerPage)
	v.SetDefault("canvas.item_timeout", def.Canvas.ItemTimeout)
	v.SetDefault("canvas.max_retries", def.Canvas.MaxRetries)
	v.SetDefault("webclient.timeout", def.WebClient.Timeout)
	v.SetDefault("scan_concurrency", def.ScanConcurrency)

	v.SetEnvPrefix("COURSECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("coursecheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/coursecheck")
		if err := v.ReadInConfig(); err != nil {
			// Config file is optional; defaults + env are enough.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		ListenAddr:  v.GetString("listen_addr"),
		StorageRoot: v.GetString("storage_root"),
		Canvas: fetcher.Config{
			BaseURL:     v.GetString("canvas.base_url"),
			Token:       v.GetString("canvas.token"),
			PerPage:     v.GetInt("canvas.per_page"),
			ItemTimeout: v.GetDuration("canvas.item_timeout"),
			MaxRetries:  v.GetInt("canvas.max_retries"),
		},
		WebClient: webclient.Config{
			Backend: webclient.BackendNetHTTP,
			Timeout: v.GetDuration("webclient.timeout"),
		},
		ScanConcurrency: v.GetInt("scan_concurrency"),
	}
	return cfg, nil
}

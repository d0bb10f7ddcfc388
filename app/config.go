package app

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/toolbot/core/config"
	coredatabase "github.com/m3rciful/toolbot/core/database"
)

// DownloadsConfig controls the yt-dlp integration.
type DownloadsConfig struct {
	// Dir receives downloaded audio files; empty means the OS temp dir.
	Dir string `yaml:"dir" envconfig:"DOWNLOADS_DIR"`
	// YTDLPPath overrides the yt-dlp binary location.
	YTDLPPath string `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	// SearchResults caps how many search hits are offered for selection.
	SearchResults int `yaml:"search_results" envconfig:"DOWNLOADS_SEARCH_RESULTS"`
}

// Config aggregates core settings with the bot's own sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Downloads DownloadsConfig     `yaml:"downloads"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads the YAML file, overlays environment variables, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if cfg.Downloads.SearchResults < 0 {
		return nil, fmt.Errorf("downloads.search_results must be >= 0")
	}
	if cfg.Downloads.SearchResults == 0 {
		cfg.Downloads.SearchResults = 3
	}
	return &cfg, nil
}

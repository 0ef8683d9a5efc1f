// Package config resolves the crawler's configuration from CLI flags with
// an optional YAML overlay and XDG-based defaults. The field list mirrors
// original_source/src/crawler/main.cpp's getopt_long_only table; the
// layering (flags > YAML file > XDG defaults) follows
// nao1215-onionscan/internal/config's loader shape.
package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Crawler holds the tunables exposed on the CLI.
type Crawler struct {
	SeedFile             string `yaml:"seed_file"`
	NumThreads           int    `yaml:"num_threads"`
	LogPath              string `yaml:"log_path"`
	DataDir              string `yaml:"data_dir"`
	CheckpointPath       string `yaml:"checkpoint_path"`
	StatsRefreshInterval int    `yaml:"stats_refresh_interval"`
	ExpectedNumUrls      int    `yaml:"expected_num_urls"`
	CheckpointInterval   int    `yaml:"checkpoint_interval"`
	ServerID             int    `yaml:"server_id"`
	HostnamePath         string `yaml:"hostname_path"`
	AssumeYes            bool   `yaml:"assume_yes"`
	ScheduledSetBackend  string `yaml:"scheduled_set_backend"` // "bloom" (default) or "redis"
	RedisAddr            string `yaml:"redis_addr"`
}

// Defaults returns sensible tunable values, with paths resolved under
// the XDG state/data/cache directories instead of bare relative paths.
func Defaults() Crawler {
	return Crawler{
		NumThreads:           1,
		LogPath:              filepath.Join(xdg.StateHome, "crawler", "crawler.log"),
		DataDir:              filepath.Join(xdg.DataHome, "crawler", "artifacts"),
		CheckpointPath:       filepath.Join(xdg.CacheHome, "crawler", "checkpoint"),
		StatsRefreshInterval: 5,
		ExpectedNumUrls:      1_000_000,
		CheckpointInterval:   600,
		ScheduledSetBackend:  "bloom",
	}
}

// LoadYAML overlays cfg with fields present in the YAML file at path.
// A missing file is not an error; a malformed one is.
func LoadYAML(path string, cfg *Crawler) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

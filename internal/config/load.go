package config

import (
	"fmt"

	"github.com/tokshard/clustermap-go/internal/confloader"
)

// Load reads configuration from an optional YAML file and environment
// variables (CLUSTERMAP_ prefix), applying Default() first, and
// validates the result.
func Load(filePath string) (Config, error) {
	cfg := Default()

	loader := confloader.NewLoader(confloader.WithConfigFile(filePath))
	if err := loader.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch re-runs Load(filePath) whenever filePath changes on disk and
// passes the new Config to onReload. A reload that fails validation or
// parsing is reported through onReload's error rather than applied,
// leaving the caller on its last-known-good configuration.
//
// It returns the underlying confloader.Watcher so the caller can Stop
// it during shutdown; Watch does not start the watch loop itself.
func Watch(filePath string, onReload func(Config, error)) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watch: %w", err)
	}
	if err := w.Watch(filePath); err != nil {
		return nil, fmt.Errorf("config: watch: %w", err)
	}

	w.OnChange(func(string) {
		cfg, err := Load(filePath)
		onReload(cfg, err)
	})

	return w, nil
}

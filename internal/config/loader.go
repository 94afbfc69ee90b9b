package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	serviceConfigFile   = "atlas.yaml"
	providersConfigFile = "providers.yaml"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars substitutes ${VAR} and ${VAR:default} in raw YAML text.
// Unset variables without a default expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if val, ok := os.LookupEnv(groups[1]); ok {
			return val
		}
		if len(groups) >= 3 {
			return groups[2]
		}
		return ""
	})
}

// LoadFile reads a YAML file, expands env var placeholders, and
// unmarshals the result into dest.
func LoadFile(path string, dest interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Loader owns the live service and provider configuration. Watch keeps
// both fresh as files change on disk; readers always see a complete,
// consistent snapshot.
type Loader struct {
	configDir string
	logger    *slog.Logger

	mu        sync.RWMutex
	cfg       *Config
	providers *ProvidersConfig
	onReload  []func()
}

func NewLoader(configDir string, logger *slog.Logger) *Loader {
	return &Loader{configDir: configDir, logger: logger}
}

// Load parses both config files. Defaults fill anything atlas.yaml
// leaves unset. The swap to the new snapshot is atomic.
func (l *Loader) Load() error {
	cfg := DefaultConfig()
	if err := LoadFile(filepath.Join(l.configDir, serviceConfigFile), cfg); err != nil {
		return fmt.Errorf("load service config: %w", err)
	}

	providers := &ProvidersConfig{}
	if err := LoadFile(filepath.Join(l.configDir, providersConfigFile), providers); err != nil {
		return fmt.Errorf("load providers config: %w", err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.providers = providers
	l.mu.Unlock()

	l.logger.Info("configuration loaded", "dir", l.configDir)
	return nil
}

// Config returns the current service configuration snapshot.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Providers returns the current provider catalog snapshot.
func (l *Loader) Providers() *ProvidersConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.providers
}

// OnReload registers a callback invoked after every successful reload.
// Register callbacks before calling Watch.
func (l *Loader) OnReload(fn func()) {
	l.onReload = append(l.onReload, fn)
}

// Watch reloads configuration whenever a file in the config directory is
// written or created. A reload that fails to parse keeps the previous
// snapshot in place.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(l.configDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", l.configDir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				l.logger.Info("config file changed, reloading", "file", event.Name)
				if err := l.Load(); err != nil {
					l.logger.Error("config reload failed, keeping previous", "error", err)
					continue
				}
				for _, fn := range l.onReload {
					fn()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("fsnotify error", "error", err)
			}
		}
	}()

	return nil
}

package domainplugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/c360studio/clausereview/model"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// descriptor is the on-disk YAML shape of one domain plugin. Skills are
// registered separately in code
// (they bind to Go handlers or remote workflow ids); the descriptor only
// carries what's naturally data: checklist and baselines.
type descriptor struct {
	DomainID  string                      `yaml:"domain_id"`
	Checklist []model.ReviewChecklistItem `yaml:"checklist"`
	Baselines map[string]string           `yaml:"baselines"`
}

// LoadDescriptor reads one domain plugin descriptor file and returns the
// model.DomainPlugin it describes, with Skills left empty for the caller
// to populate before Register.
func LoadDescriptor(path string) (model.DomainPlugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.DomainPlugin{}, fmt.Errorf("read domain descriptor %s: %w", path, err)
	}

	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return model.DomainPlugin{}, fmt.Errorf("parse domain descriptor %s: %w", path, err)
	}
	if d.DomainID == "" {
		return model.DomainPlugin{}, fmt.Errorf("domain descriptor %s: domain_id is required", path)
	}

	return model.DomainPlugin{
		DomainID:  d.DomainID,
		Checklist: d.Checklist,
		Baselines: d.Baselines,
	}, nil
}

// LoadDir reads one descriptor per immediate subdirectory of dir, each
// named "<domain_id>/checklist.yaml" (config.DomainPluginsConfig.Dir).
// A dir that doesn't exist yet yields no plugins and no error — a fresh
// deployment with no domain plugins configured is the whole-document
// fallback mode, not a startup failure.
func LoadDir(dir string) ([]model.DomainPlugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read domain plugins dir %s: %w", dir, err)
	}

	var plugins []model.DomainPlugin
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name(), "checklist.yaml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		plugin, err := LoadDescriptor(path)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, plugin)
	}
	return plugins, nil
}

// WatchForChanges logs a restart-required warning whenever a descriptor
// file under dir changes, rather than hot-reloading the registry — domain
// plugins register once at startup and the registry rejects re-registering
// a domain id. The
// returned watcher's Close stops the watch; callers typically defer it
// for the process lifetime.
func WatchForChanges(dir string, logger *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create domain plugin watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch domain plugins dir %s: %w", dir, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				logger.Warn("domain plugin descriptor changed on disk, restart to reload",
					"path", event.Name, "op", event.Op.String())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("domain plugin watch error", "error", err)
			}
		}
	}()

	return watcher, nil
}

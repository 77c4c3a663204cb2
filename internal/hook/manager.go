package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/mudra/internal/session"
)

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrUnsupportedAction is returned when a binding names an action the
	// plugin's manifest does not list.
	ErrUnsupportedAction = errors.New("action not supported by plugin")

	// ErrNotExecutable is returned by Check when a bound plugin's executable
	// is missing or lacks the execute bit.
	ErrNotExecutable = errors.New("plugin executable not runnable")
)

// ManifestFile is the name of the manifest inside each plugin directory.
const ManifestFile = "plugin.json"

// Manager holds the plugins installed under one directory, one level deep:
// <dir>/<plugin>/plugin.json.
type Manager struct {
	pluginDir string
	plugins   map[string]*Plugin
	mu        sync.RWMutex
}

// NewManager creates a Manager for pluginDir.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
	}
}

// Discover replaces the known plugins with the manifests found under the
// plugin directory. A missing directory yields no plugins. Unreadable or
// incomplete manifests are logged and skipped; when two manifests share a
// name the one in the lexically first directory wins.
func (m *Manager) Discover() error {
	manifests, err := filepath.Glob(filepath.Join(m.pluginDir, "*", ManifestFile))
	if err != nil {
		return fmt.Errorf("scan %s: %w", m.pluginDir, err)
	}
	sort.Strings(manifests)

	found := make(map[string]*Plugin, len(manifests))
	for _, path := range manifests {
		p, err := loadPlugin(path)
		if err != nil {
			slog.Warn("skipping plugin", "manifest", path, "error", err)
			continue
		}
		if prev, ok := found[p.Manifest.Name]; ok {
			slog.Warn("duplicate plugin name", "name", p.Manifest.Name, "kept", prev.Path, "skipped", p.Path)
			continue
		}
		found[p.Manifest.Name] = p
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	slog.Debug("plugins discovered", "dir", m.pluginDir, "count", len(found))
	return nil
}

func loadPlugin(manifestPath string) (*Plugin, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, errors.New("manifest needs a name and an executable")
	}

	dir := filepath.Dir(manifestPath)
	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Get returns a plugin by name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return plugin, nil
}

// resolve returns the plugin that serves b.
func (m *Manager) resolve(b Binding) (*Plugin, error) {
	plugin, err := m.Get(b.Plugin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Plugin, err)
	}
	if !plugin.Supports(b.Action) {
		return nil, fmt.Errorf("%s %q: %w", b.Plugin, b.Action, ErrUnsupportedAction)
	}
	return plugin, nil
}

// Check verifies that every binding names an installed plugin, an action its
// manifest lists, and an executable that can be run. All problems are
// reported together.
func (m *Manager) Check(bindings map[session.EventKind]Binding) error {
	kinds := make([]string, 0, len(bindings))
	for kind := range bindings {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	var errs []error
	for _, kind := range kinds {
		plugin, err := m.resolve(bindings[session.EventKind(kind)])
		if err != nil {
			errs = append(errs, fmt.Errorf("hook for %s: %w", kind, err))
			continue
		}
		info, err := os.Stat(plugin.Executable)
		if err != nil || info.IsDir() || info.Mode().Perm()&0111 == 0 {
			errs = append(errs, fmt.Errorf("hook for %s: %s: %w", kind, plugin.Executable, ErrNotExecutable))
		}
	}
	return errors.Join(errs...)
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, plugin := range m.plugins {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}

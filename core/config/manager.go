package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce is the quiet period after a file event before reloading.
const DefaultDebounce = 100 * time.Millisecond

type Manager struct {
	config      atomic.Pointer[Config]
	dirs        *Dirs
	projectRoot string
	logger      *slog.Logger

	watchers  []func(*Config)
	watcherMu sync.RWMutex

	stopWatch chan struct{}
	watchOnce sync.Once
	watchWG   sync.WaitGroup
	debounce  time.Duration
}

// NewManager creates a manager holding the default configuration. Files
// are read from dirs and from the .saturn directory under projectRoot.
func NewManager(dirs *Dirs, projectRoot string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		dirs:        dirs,
		projectRoot: projectRoot,
		logger:      logger,
		stopWatch:   make(chan struct{}),
		debounce:    DefaultDebounce,
	}
	m.config.Store(DefaultConfig())
	return m
}

func (m *Manager) Get() *Config {
	return m.config.Load()
}

// Files returns the configuration files in load order.
func (m *Manager) Files() []string {
	return []string{m.dirs.ConfigFile(), ProjectConfigFile(m.projectRoot)}
}

// Load reads the defaults, the user file, the project file and the
// environment, in that order. The stored configuration is replaced only if
// the result validates.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	for _, path := range m.Files() {
		if err := loadYAMLFile(path, cfg); err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := applyEnvironment(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.config.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvironment(cfg *Config) error {
	if v := os.Getenv("SATURN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SATURN_WORKERS: %w", err)
		}
		cfg.Reasoner.Workers = n
	}
	if v := os.Getenv("SATURN_INCREMENTAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SATURN_INCREMENTAL: %w", err)
		}
		cfg.Reasoner.Incremental = b
	}
	if v := os.Getenv("SATURN_SCAN_RATIO"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SATURN_SCAN_RATIO: %w", err)
		}
		cfg.Reasoner.ScanRatio = n
	}
	if v := os.Getenv("SATURN_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SATURN_TRACE"); v != "" {
		cfg.Reasoner.TracePatterns = strings.Split(v, ",")
	}
	return nil
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

// =============================================================================
// Watching
// =============================================================================

// Watch reloads the configuration whenever one of its files is written,
// created, renamed or removed, until ctx is done or Close is called.
// Directories that do not exist are not watched.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	files := make(map[string]struct{})
	for _, path := range m.Files() {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	m.watchWG.Add(1)
	go m.watchLoop(ctx, watcher, files)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, files map[string]struct{}) {
	defer m.watchWG.Done()
	defer watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopWatch:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if _, watched := files[filepath.Clean(ev.Name)]; !watched {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(m.debounce)
			} else {
				timer.Reset(m.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := m.Load(); err != nil {
				m.logger.Warn("config reload failed", "error", err)
				continue
			}
			m.logger.Info("config reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (m *Manager) Close() error {
	m.watchOnce.Do(func() {
		close(m.stopWatch)
	})
	m.watchWG.Wait()
	return nil
}

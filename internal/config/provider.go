package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Provider exposes the current settings snapshot and change notifications.
// Snapshots are immutable; a reload swaps in a new *Config.
type Provider interface {
	Current() *Config
	Subscribe() <-chan struct{}
}

type broadcaster struct {
	mu   sync.Mutex
	subs []chan struct{}
}

// Subscribe returns a channel that receives a value after each settings change.
// Notifications coalesce: a slow reader sees at most one pending signal.
func (b *broadcaster) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) notify() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// StaticProvider holds an in-memory snapshot. Set replaces it and notifies
// subscribers, which makes it suitable for tests and one-shot CLI commands.
type StaticProvider struct {
	broadcaster
	current atomic.Pointer[Config]
}

// NewStatic wraps cfg in a provider.
func NewStatic(cfg *Config) *StaticProvider {
	p := &StaticProvider{}
	p.current.Store(cfg)
	return p
}

// Current returns the active snapshot.
func (p *StaticProvider) Current() *Config {
	return p.current.Load()
}

// Set swaps the active snapshot.
func (p *StaticProvider) Set(cfg *Config) {
	p.current.Store(cfg)
	p.notify()
}

const reloadDebounce = 250 * time.Millisecond

// FileProvider serves the configuration loaded from a file and reloads it
// when the file changes on disk.
type FileProvider struct {
	broadcaster
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Config]
}

// NewFileProvider wraps an already loaded configuration.
func NewFileProvider(path string, initial *Config, logger *slog.Logger) *FileProvider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &FileProvider{path: path, logger: logger}
	p.current.Store(initial)
	return p
}

// Current returns the active snapshot.
func (p *FileProvider) Current() *Config {
	return p.current.Load()
}

// Path returns the watched configuration file.
func (p *FileProvider) Path() string {
	return p.path
}

// Reload re-reads the configuration file. An invalid file leaves the current
// snapshot in place and returns the parse or validation error.
func (p *FileProvider) Reload() error {
	_, err := os.Stat(p.path)
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	cfg, err := loadFile(p.path, exists)
	if err != nil {
		return err
	}
	p.current.Store(cfg)
	p.notify()
	return nil
}

// Watch follows the configuration file until ctx is cancelled. The parent
// directory is watched so editors that replace the file by rename are seen.
func (p *FileProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}

	go p.watchLoop(ctx, watcher)
	return nil
}

func (p *FileProvider) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	target := filepath.Clean(p.path)
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("config watcher error",
				slog.Any("error", err),
				slog.String("event_type", "config_watch_error"),
				slog.String("error_hint", "settings changes may require a daemon restart"),
			)
		case <-pending:
			pending = nil
			if err := p.Reload(); err != nil {
				p.logger.Warn("config reload failed; keeping previous settings",
					slog.Any("error", err),
					slog.String("path", p.path),
					slog.String("event_type", "config_reload_failed"),
					slog.String("error_hint", "fix the configuration file and save it again"),
				)
				continue
			}
			p.logger.Info("configuration reloaded",
				slog.String("path", p.path),
				slog.String("event_type", "config_reloaded"),
			)
		}
	}
}

package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/jmylchreest/overlay/internal/config"
	"github.com/jmylchreest/overlay/internal/model"
)

// Manager plays the configured sound for each notification type.
type Manager struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	player  *Player
	watcher *Watcher

	enabled bool
	sounds  map[model.Type]string
}

// NewManager creates a manager for cfg. A nil player plays through the
// system speaker.
func NewManager(cfg *config.Config, player *Player, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if player == nil {
		player = NewPlayer(logger)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	m := &Manager{
		logger:  logger,
		player:  player,
		watcher: NewWatcher(player, logger),
	}
	m.load(cfg)
	return m
}

// load resolves per-type sound paths, skipping files that do not exist.
func (m *Manager) load(cfg *config.Config) {
	sounds := make(map[model.Type]string)
	for _, t := range model.Types() {
		path := cfg.SoundFor(t)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			m.logger.Warn("sound file not found", "type", t, "path", path)
			continue
		}
		sounds[t] = path
	}

	m.player.SetVolume(float64(cfg.Audio.Volume) / 100.0)

	m.mu.Lock()
	m.enabled = cfg.Audio.Enabled
	m.sounds = sounds
	m.mu.Unlock()
}

// Start preloads the configured sounds and watches them for changes.
func (m *Manager) Start(ctx context.Context) error {
	m.preloadAndWatch()
	if err := m.watcher.Start(ctx); err != nil {
		return err
	}
	m.logger.Info("audio manager started", "enabled", m.Enabled(), "sounds", len(m.Sounds()))
	return nil
}

// Stop stops the watcher and releases the output device.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// Enabled reports whether sounds are played.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Sounds returns a copy of the resolved per-type sound paths.
func (m *Manager) Sounds() map[model.Type]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.Type]string, len(m.sounds))
	for t, p := range m.sounds {
		out[t] = p
	}
	return out
}

// PlayForType plays the sound configured for t. Types without a sound are
// silent.
func (m *Manager) PlayForType(t model.Type) error {
	m.mu.RLock()
	enabled := m.enabled
	path, ok := m.sounds[t]
	m.mu.RUnlock()

	if !enabled {
		return nil
	}
	if !ok {
		m.logger.Debug("no sound configured for type", "type", t)
		return nil
	}
	return m.player.Play(path)
}

// PlayFile plays a specific file, such as a sound-file hint.
func (m *Manager) PlayFile(path string) error {
	if !m.Enabled() {
		return nil
	}
	return m.player.Play(path)
}

// UpdateConfig applies a hot-reloaded config: sounds are resolved again and
// the cache is rebuilt.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.watcher.UnwatchAll()
	m.player.ClearCache()
	m.load(cfg)
	m.preloadAndWatch()
	m.logger.Debug("audio manager config updated", "enabled", cfg.Audio.Enabled)
}

func (m *Manager) preloadAndWatch() {
	if !m.Enabled() {
		return
	}
	for t, path := range m.Sounds() {
		if err := m.player.Preload(path); err != nil {
			m.logger.Warn("failed to preload sound", "type", t, "path", path, "error", err)
		}
		if err := m.watcher.Watch(path); err != nil {
			m.logger.Warn("failed to watch sound", "path", path, "error", err)
		}
	}
}

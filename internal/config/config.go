// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/overlay/internal/model"
	"github.com/jmylchreest/overlay/internal/queue"
)

// Default configuration values.
const (
	DefaultExitDelay = 300 * time.Millisecond
	DefaultWidth     = 44
	DefaultGap       = 1
	DefaultVolume    = 80
	DefaultKeep      = 500

	DefaultPopupWidth  = 360
	DefaultPopupHeight = 96
	DefaultPopupGap    = 8
	DefaultPopupOffset = 12
)

// Config is the overlay configuration shared by overlayd and the overlay CLI.
// Loaded from ~/.config/overlay/overlay.toml
type Config struct {
	Queue    QueueConfig    `toml:"queue"`
	Timeouts TimeoutConfig  `toml:"timeouts"`
	Behavior BehaviorConfig `toml:"behavior"`
	Display  DisplayConfig  `toml:"display"`
	Popup    PopupConfig    `toml:"popup"`
	Layout   LayoutConfig   `toml:"layout"`
	Audio    AudioConfig    `toml:"audio"`
	History  HistoryConfig  `toml:"history"`
}

// QueueConfig contains notification queue settings.
type QueueConfig struct {
	MaxNotifications int `toml:"max_notifications"` // Oldest entries are evicted beyond this
}

// TimeoutConfig contains the default lifetime per notification type.
// A value of "0" means never expire.
type TimeoutConfig struct {
	Default Duration `toml:"default"`
	Success Duration `toml:"success"`
	Error   Duration `toml:"error"`
	Info    Duration `toml:"info"`
	Warning Duration `toml:"warning"`
	Loading Duration `toml:"loading"`
}

// BehaviorConfig contains behavior settings.
type BehaviorConfig struct {
	PauseOnHover bool     `toml:"pause_on_hover"` // Pause the countdown while focused
	ExitDelay    Duration `toml:"exit_delay"`     // Time spent leaving before removal
	Dismissible  bool     `toml:"dismissible"`    // Default for notifications received over D-Bus
}

// DisplayConfig contains toast stack settings for the terminal renderer.
type DisplayConfig struct {
	Position string `toml:"position"` // "top-right", "bottom-left", etc.
	Width    int    `toml:"width"`    // Toast width in columns
	Gap      int    `toml:"gap"`      // Blank lines between toasts
}

// PopupConfig contains layer-shell popup settings for overlayd. The popup
// stack is anchored to Display.Position.
type PopupConfig struct {
	Enabled     bool   `toml:"enabled"`
	Width       int    `toml:"width"`        // Pixels
	Height      int    `toml:"height"`       // Pixels reserved per stack slot
	Gap         int    `toml:"gap"`          // Pixels between popups
	OffsetX     int    `toml:"offset_x"`     // Pixels from the anchored side edge
	OffsetY     int    `toml:"offset_y"`     // Pixels from the anchored top or bottom edge
	Monitor     int    `toml:"monitor"`      // 0 = compositor default, 1+ = monitor number
	ColorScheme string `toml:"color_scheme"` // "system", "light" or "dark"
}

// ColorScheme selects the popup color scheme.
type ColorScheme string

const (
	ColorSchemeSystem ColorScheme = "system"
	ColorSchemeLight  ColorScheme = "light"
	ColorSchemeDark   ColorScheme = "dark"
)

// LayoutConfig selects the layout definition file.
type LayoutConfig struct {
	File string `toml:"file"` // Empty uses the embedded default layout
}

// AudioConfig contains audio settings.
type AudioConfig struct {
	Enabled bool        `toml:"enabled"`
	Volume  int         `toml:"volume"` // 0-100
	Sounds  SoundConfig `toml:"sounds"`
}

// SoundConfig contains per-type sound file paths.
type SoundConfig struct {
	Default string `toml:"default"`
	Success string `toml:"success"`
	Error   string `toml:"error"`
	Info    string `toml:"info"`
	Warning string `toml:"warning"`
	Loading string `toml:"loading"`
}

// HistoryConfig contains dismissed-notification history settings.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Empty uses $XDG_DATA_HOME/overlay/history.jsonl
	Keep    int    `toml:"keep"` // Max entries kept by prune (0 = unlimited)
}

// Position represents the corner the toast stack is anchored to.
type Position string

const (
	PositionTopLeft      Position = "top-left"
	PositionTopRight     Position = "top-right"
	PositionTopCenter    Position = "top-center"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomRight  Position = "bottom-right"
	PositionBottomCenter Position = "bottom-center"
)

// ValidPositions returns all valid position values.
func ValidPositions() []Position {
	return []Position{
		PositionTopLeft,
		PositionTopRight,
		PositionTopCenter,
		PositionBottomLeft,
		PositionBottomRight,
		PositionBottomCenter,
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			MaxNotifications: queue.DefaultMaxNotifications,
		},
		Timeouts: TimeoutConfig{
			Default: Duration(4 * time.Second),
			Success: Duration(2 * time.Second),
			Error:   Duration(4 * time.Second),
			Info:    Duration(4 * time.Second),
			Warning: Duration(4 * time.Second),
			Loading: Duration(0), // Never expires
		},
		Behavior: BehaviorConfig{
			PauseOnHover: true,
			ExitDelay:    Duration(DefaultExitDelay),
			Dismissible:  true,
		},
		Display: DisplayConfig{
			Position: string(PositionTopRight),
			Width:    DefaultWidth,
			Gap:      DefaultGap,
		},
		Popup: PopupConfig{
			Enabled:     true,
			Width:       DefaultPopupWidth,
			Height:      DefaultPopupHeight,
			Gap:         DefaultPopupGap,
			OffsetX:     DefaultPopupOffset,
			OffsetY:     DefaultPopupOffset,
			ColorScheme: string(ColorSchemeSystem),
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  DefaultVolume,
		},
		History: HistoryConfig{
			Enabled: true,
			Keep:    DefaultKeep,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "overlay", "overlay.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "overlay")
}

// HistoryPath returns the configured history file, or the default
// history.jsonl under DataPath.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return expandPath(c.History.Path)
	}
	return filepath.Join(DataPath(), "history.jsonl")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Queue.MaxNotifications < 1 || c.Queue.MaxNotifications > 100 {
		return fmt.Errorf("max_notifications must be between 1 and 100, got %d", c.Queue.MaxNotifications)
	}

	for name, d := range map[string]Duration{
		"default": c.Timeouts.Default,
		"success": c.Timeouts.Success,
		"error":   c.Timeouts.Error,
		"info":    c.Timeouts.Info,
		"warning": c.Timeouts.Warning,
		"loading": c.Timeouts.Loading,
	} {
		if d < 0 {
			return fmt.Errorf("timeout %q cannot be negative", name)
		}
	}
	if c.Behavior.ExitDelay < 0 {
		return errors.New("exit_delay cannot be negative")
	}

	validPos := false
	for _, p := range ValidPositions() {
		if c.Display.Position == string(p) {
			validPos = true
			break
		}
	}
	if !validPos {
		return fmt.Errorf("invalid position %q, must be one of: %v", c.Display.Position, ValidPositions())
	}
	if c.Display.Width < 20 || c.Display.Width > 200 {
		return fmt.Errorf("width must be between 20 and 200, got %d", c.Display.Width)
	}
	if c.Display.Gap < 0 || c.Display.Gap > 5 {
		return fmt.Errorf("gap must be between 0 and 5, got %d", c.Display.Gap)
	}

	if c.Popup.Width < 100 || c.Popup.Width > 2000 {
		return fmt.Errorf("popup width must be between 100 and 2000, got %d", c.Popup.Width)
	}
	if c.Popup.Height < 32 || c.Popup.Height > 1000 {
		return fmt.Errorf("popup height must be between 32 and 1000, got %d", c.Popup.Height)
	}
	if c.Popup.Gap < 0 || c.Popup.OffsetX < 0 || c.Popup.OffsetY < 0 || c.Popup.Monitor < 0 {
		return errors.New("popup gap, offsets and monitor cannot be negative")
	}
	switch ColorScheme(c.Popup.ColorScheme) {
	case ColorSchemeSystem, ColorSchemeLight, ColorSchemeDark:
	default:
		return fmt.Errorf("invalid color_scheme %q, must be system, light or dark", c.Popup.ColorScheme)
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}

	if c.History.Keep < 0 {
		return fmt.Errorf("keep cannot be negative, got %d", c.History.Keep)
	}

	return nil
}

// Durations returns the per-type default lifetimes for the queue.
// A zero timeout maps to model.Infinite.
func (c *Config) Durations() queue.Durations {
	convert := func(d Duration) time.Duration {
		if d <= 0 {
			return model.Infinite
		}
		return d.Duration()
	}
	return queue.Durations{
		model.TypeDefault: convert(c.Timeouts.Default),
		model.TypeSuccess: convert(c.Timeouts.Success),
		model.TypeError:   convert(c.Timeouts.Error),
		model.TypeInfo:    convert(c.Timeouts.Info),
		model.TypeWarning: convert(c.Timeouts.Warning),
		model.TypeLoading: convert(c.Timeouts.Loading),
	}
}

// SoundFor returns the sound file path for the given type, falling back to
// the default sound. Expands ~ to home directory.
func (c *Config) SoundFor(t model.Type) string {
	var path string
	switch t {
	case model.TypeSuccess:
		path = c.Audio.Sounds.Success
	case model.TypeError:
		path = c.Audio.Sounds.Error
	case model.TypeInfo:
		path = c.Audio.Sounds.Info
	case model.TypeWarning:
		path = c.Audio.Sounds.Warning
	case model.TypeLoading:
		path = c.Audio.Sounds.Loading
	}
	if path == "" {
		path = c.Audio.Sounds.Default
	}
	return expandPath(path)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Package config loads the mudra YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/gesture"
)

// DataDirName is the per-user directory holding the database, plugins and scripts.
const DataDirName = ".mudra"

// Config represents the complete mudra configuration.
type Config struct {
	Camera     CameraConfig     `yaml:"camera"`
	Detector   DetectorConfig   `yaml:"detector"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Session    SessionConfig    `yaml:"session"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Hooks      HooksConfig      `yaml:"hooks"`
}

// CameraConfig contains capture device settings.
type CameraConfig struct {
	DeviceID int `yaml:"device_id"`
	Width    int `yaml:"width"`  // 0 keeps the device default
	Height   int `yaml:"height"` // 0 keeps the device default
}

// DetectorConfig is handed to the landmark detector.
type DetectorConfig struct {
	MaxHands               int     `yaml:"max_hands"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence"`
	FrameTimeoutMs         int     `yaml:"frame_timeout_ms"` // 0 disables the per-frame timeout
}

// ClassifierConfig selects the thumb rule.
type ClassifierConfig struct {
	ThumbRule string `yaml:"thumb_rule"` // distance, lateral
}

// SessionConfig sizes the session aggregate.
type SessionConfig struct {
	HistorySize int `yaml:"history_size"`
}

// PipelineConfig controls frame pacing.
type PipelineConfig struct {
	IdleFPS         int     `yaml:"idle_fps"`
	ActiveFPS       int     `yaml:"active_fps"`
	IdleTimeoutMs   int     `yaml:"idle_timeout_ms"`
	MotionThreshold float64 `yaml:"motion_threshold"` // percent of changed pixels
	MaxReadFailures int     `yaml:"max_read_failures"`
}

// ServerConfig contains HTTP settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MQTTConfig contains broker settings. An empty broker disables publishing.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// HooksConfig binds plugin actions to transition events.
type HooksConfig struct {
	PluginDir string      `yaml:"plugin_dir"`
	TimeoutMs int         `yaml:"timeout_ms"`
	OnOpen    *HookAction `yaml:"on_open,omitempty"`
	OnClose   *HookAction `yaml:"on_close,omitempty"`
}

// HookAction names a plugin and one of its actions. Params is passed to the
// plugin as JSON.
type HookAction struct {
	Plugin string         `yaml:"plugin"`
	Action string         `yaml:"action"`
	Params map[string]any `yaml:"params,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	dataDir := DataDir()
	return &Config{
		Detector: DetectorConfig{
			MaxHands:               1,
			MinDetectionConfidence: 0.7,
			MinTrackingConfidence:  0.7,
			FrameTimeoutMs:         1000,
		},
		Classifier: ClassifierConfig{ThumbRule: string(gesture.DefaultThumbRule)},
		Session:    SessionConfig{HistorySize: 100},
		Pipeline: PipelineConfig{
			IdleFPS:         5,
			ActiveFPS:       15,
			IdleTimeoutMs:   2000,
			MotionThreshold: 1.0,
			MaxReadFailures: 30,
		},
		Server: ServerConfig{Addr: ":8080"},
		Store:  StoreConfig{Path: filepath.Join(dataDir, "mudra.db")},
		MQTT: MQTTConfig{
			ClientID: "mudra",
			Topic:    "mudra/events",
		},
		Hooks: HooksConfig{
			PluginDir: filepath.Join(dataDir, "plugins"),
			TimeoutMs: 5000,
		},
	}
}

// DataDir returns ~/.mudra, or a relative .mudra if the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDirName
	}
	return filepath.Join(home, DataDirName)
}

// Load reads a YAML file over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, Validate(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOptional is Load, except a missing file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		return cfg, Validate(cfg)
	}
	return cfg, err
}

// FrameTimeout returns the per-frame detection timeout.
func (c DetectorConfig) FrameTimeout() time.Duration {
	return time.Duration(c.FrameTimeoutMs) * time.Millisecond
}

// IdleTimeout returns how long without motion before dropping to idle FPS.
func (c PipelineConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// Timeout returns the plugin execution timeout.
func (c HooksConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

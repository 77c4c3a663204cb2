package config

import (
	"fmt"

	"github.com/ayusman/mudra/internal/gesture"
)

// Validate checks the configuration and fills in defaults that may be left
// zero in a file.
func Validate(cfg *Config) error {
	if cfg.Camera.DeviceID < 0 {
		return fmt.Errorf("camera.device_id must be >= 0")
	}
	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		return fmt.Errorf("camera.width and camera.height must be >= 0")
	}

	if cfg.Detector.MaxHands <= 0 {
		return fmt.Errorf("detector.max_hands must be > 0")
	}
	if err := checkConfidence("detector.min_detection_confidence", cfg.Detector.MinDetectionConfidence); err != nil {
		return err
	}
	if err := checkConfidence("detector.min_tracking_confidence", cfg.Detector.MinTrackingConfidence); err != nil {
		return err
	}
	if cfg.Detector.FrameTimeoutMs < 0 {
		return fmt.Errorf("detector.frame_timeout_ms must be >= 0")
	}

	rule, err := gesture.ParseThumbRule(cfg.Classifier.ThumbRule)
	if err != nil {
		return fmt.Errorf("classifier.thumb_rule: %w", err)
	}
	cfg.Classifier.ThumbRule = string(rule)

	if cfg.Session.HistorySize <= 0 {
		return fmt.Errorf("session.history_size must be > 0")
	}

	if cfg.Pipeline.IdleFPS <= 0 || cfg.Pipeline.ActiveFPS <= 0 {
		return fmt.Errorf("pipeline.idle_fps and pipeline.active_fps must be > 0")
	}
	if cfg.Pipeline.ActiveFPS < cfg.Pipeline.IdleFPS {
		return fmt.Errorf("pipeline.active_fps (%d) must be >= pipeline.idle_fps (%d)",
			cfg.Pipeline.ActiveFPS, cfg.Pipeline.IdleFPS)
	}
	if cfg.Pipeline.IdleTimeoutMs < 0 {
		return fmt.Errorf("pipeline.idle_timeout_ms must be >= 0")
	}
	if cfg.Pipeline.MotionThreshold <= 0 {
		cfg.Pipeline.MotionThreshold = 1.0
	}
	if cfg.Pipeline.MaxReadFailures <= 0 {
		cfg.Pipeline.MaxReadFailures = 30
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = "mudra/events"
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "mudra"
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
		}
	}

	if cfg.Hooks.TimeoutMs <= 0 {
		cfg.Hooks.TimeoutMs = 5000
	}
	for name, hook := range map[string]*HookAction{"on_open": cfg.Hooks.OnOpen, "on_close": cfg.Hooks.OnClose} {
		if hook == nil {
			continue
		}
		if hook.Plugin == "" || hook.Action == "" {
			return fmt.Errorf("hooks.%s requires plugin and action", name)
		}
	}

	return nil
}

func checkConfidence(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0, 1], got %g", name, v)
	}
	return nil
}

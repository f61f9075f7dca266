// Package config loads and persists the chassis SDK's YAML
// configuration: chassis dimensions, serial settings, motion limits,
// and the telemetry server.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds all SDK configuration.
type Config struct {
	mu sync.RWMutex

	Chassis   ChassisConfig   `yaml:"chassis" json:"chassis"`
	Serial    SerialConfig    `yaml:"serial" json:"serial"`
	Motion    MotionConfig    `yaml:"motion" json:"motion"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`

	path string
}

// ChassisConfig is the chassis's physical dimensions in metres.
type ChassisConfig struct {
	Width       float64 `yaml:"width" json:"width"`
	Length      float64 `yaml:"length" json:"length"`
	LeftRadius  float64 `yaml:"left_radius" json:"leftRadius"`
	RightRadius float64 `yaml:"right_radius" json:"rightRadius"`
}

// SerialConfig controls port autodiscovery.
type SerialConfig struct {
	Port string `yaml:"port" json:"port"` // empty = autodiscover
}

// MotionConfig holds the motion limits. Acceleration and ControlHz set
// the per-tick speed slew limit and RudderToleranceDeg the rudder-lock
// band; MaxSpeed is loaded but not read by the motion primitives, which
// each take their own maximum speed.
type MotionConfig struct {
	Acceleration    float64 `yaml:"acceleration" json:"acceleration"`       // m/s^2
	MaxSpeed        float64 `yaml:"max_speed" json:"maxSpeed"`              // m/s
	ControlHz       float64 `yaml:"control_hz" json:"controlHz"`            // control loop frequency
	RudderToleranceDeg float64 `yaml:"rudder_tolerance_deg" json:"rudderToleranceDeg"`
}

// LoggingConfig controls the CSV telemetry logger.
type LoggingConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Path     string `yaml:"path" json:"path"`
	Interval int    `yaml:"interval_ms" json:"intervalMs"`
}

// TelemetryConfig controls the websocket broadcast server.
type TelemetryConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// DefaultConfig returns the PM1 chassis's nominal dimensions and
// conservative motion limits.
func DefaultConfig() *Config {
	return &Config{
		Chassis: ChassisConfig{
			Width:       0.4,
			Length:      0.3,
			LeftRadius:  0.0625,
			RightRadius: 0.0625,
		},
		Serial: SerialConfig{
			Port: "",
		},
		Motion: MotionConfig{
			Acceleration:       0.5,
			MaxSpeed:           1.0,
			ControlHz:          50,
			RudderToleranceDeg: 5,
		},
		Logging: LoggingConfig{
			Enabled:  false,
			Path:     "/var/log/pm1sdk",
			Interval: 100,
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			ListenAddr: ":8090",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. Falls back to defaults if the file
// is missing.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	if path == "" {
		cfg.applyEnvOverrides()
		return cfg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	envPaths := []string{filepath.Join(filepath.Dir(path), ".env"), ".env"}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads PM1_* environment variables and overrides
// config values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PM1_SERIAL_PORT"); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv("PM1_MAX_SPEED"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Motion.MaxSpeed = n
		}
	}
	if v := os.Getenv("PM1_ACCELERATION"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Motion.Acceleration = n
		}
	}
	if v := os.Getenv("PM1_TELEMETRY_ADDR"); v != "" {
		c.Telemetry.ListenAddr = v
	}
	if v := os.Getenv("PM1_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("PM1_LOG_ENABLED"); v != "" {
		c.Logging.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("PM1_LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "/etc/pm1sdk/config.yaml"
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the telemetry API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config.
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, c)
}

func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// config mirrors the peripheral's board binding: which UART, which trigger
// line, buffer sizes and the initial string.
type config struct {
	Port struct {
		Device      string        `yaml:"device"`
		Baud        int           `yaml:"baud"`
		Driver      string        `yaml:"driver"`
		ReadTimeout time.Duration `yaml:"read_timeout"`
	} `yaml:"port"`

	Trigger struct {
		GPIO      *int          `yaml:"gpio"` // nil: SIGUSR1 triggers
		ActiveLow bool          `yaml:"active_low"`
		Debounce  time.Duration `yaml:"debounce"`
	} `yaml:"trigger"`

	MaxStringLen  int    `yaml:"max_string_len"`
	RxBufSize     int    `yaml:"rx_buf_size"`
	InitialString string `yaml:"initial_string"`
	LogLevel      string `yaml:"log_level"`
}

// loadConfig reads a YAML config file. An empty path yields defaults.
func loadConfig(path string) (*config, error) {
	var cfg config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *config) {
	if cfg.Port.Device == "" {
		cfg.Port.Device = "/dev/ttyUSB0"
	}
	if cfg.Port.Baud == 0 {
		cfg.Port.Baud = 115200
	}
	if cfg.Trigger.Debounce == 0 {
		cfg.Trigger.Debounce = 50 * time.Millisecond
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

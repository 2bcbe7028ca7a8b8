// Package config loads tegramon settings from a TOML file. A missing file
// yields DefaultConfig; only keys present in the file override defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Monitor MonitorConfig
	GPU     GPUConfig
	Log     LogConfig
	Proc    ProcConfig
	Metrics MetricsConfig
}

type MonitorConfig struct {
	IntervalMS     int    `toml:"interval_ms"`
	HostIntervalMS int    `toml:"host_interval_ms"`
	HostCPUMode    string `toml:"host_cpu_mode"`
}

type GPUConfig struct {
	Command      string `toml:"command"`
	IntervalMS   int    `toml:"interval_ms"`
	CarryForward bool   `toml:"carry_forward"`
}

type LogConfig struct {
	Dir      string `toml:"dir"`
	BaseName string `toml:"base_name"`
	Level    string `toml:"level"`
}

type ProcConfig struct {
	Root string `toml:"root"`
}

type MetricsConfig struct {
	Exporter string `toml:"exporter"`
	Endpoint string `toml:"endpoint"`
	Insecure bool   `toml:"insecure"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

func DefaultConfig() Config {
	return Config{
		Monitor: MonitorConfig{
			IntervalMS:     1000,
			HostIntervalMS: 5000,
			HostCPUMode:    "boot",
		},
		GPU: GPUConfig{
			Command:    "tegrastats",
			IntervalMS: 1000,
		},
		Log: LogConfig{
			Dir:      "logs",
			BaseName: "system_stats",
			Level:    "info",
		},
		Proc: ProcConfig{
			Root: "/proc",
		},
		Metrics: MetricsConfig{
			Exporter: "none",
		},
	}
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tegramon", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(DefaultConfigPath())
}

func LoadFrom(path string) (*LoadResult, error) {
	if path == "" {
		return LoadFromString("")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadFromString("")
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromString(string(data))
}

var knownKeys = map[string]map[string]bool{
	"monitor": {"interval_ms": true, "host_interval_ms": true, "host_cpu_mode": true},
	"gpu":     {"command": true, "interval_ms": true, "carry_forward": true},
	"log":     {"dir": true, "base_name": true, "level": true},
	"proc":    {"root": true},
	"metrics": {"exporter": true, "endpoint": true, "insecure": true},
}

func LoadFromString(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}
	if data == "" {
		return result, nil
	}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	for key, val := range raw {
		fields, ok := knownKeys[key]
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key))
			continue
		}
		section, ok := val.(map[string]any)
		if !ok {
			continue
		}
		for field := range section {
			if !fields[field] {
				result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key+"."+field))
			}
		}
	}

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	mergeFromRaw(&result.Config, &tf, raw)

	if err := Validate(&result.Config); err != nil {
		return nil, err
	}
	return result, nil
}

type tomlFile struct {
	Monitor *MonitorConfig `toml:"monitor"`
	GPU     *GPUConfig     `toml:"gpu"`
	Log     *LogConfig     `toml:"log"`
	Proc    *ProcConfig    `toml:"proc"`
	Metrics *MetricsConfig `toml:"metrics"`
}

func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if section, ok := rawSection(raw, "monitor"); ok && tf.Monitor != nil {
		if has(section, "interval_ms") {
			cfg.Monitor.IntervalMS = tf.Monitor.IntervalMS
		}
		if has(section, "host_interval_ms") {
			cfg.Monitor.HostIntervalMS = tf.Monitor.HostIntervalMS
		}
		if has(section, "host_cpu_mode") {
			cfg.Monitor.HostCPUMode = tf.Monitor.HostCPUMode
		}
	}
	if section, ok := rawSection(raw, "gpu"); ok && tf.GPU != nil {
		if has(section, "command") {
			cfg.GPU.Command = tf.GPU.Command
		}
		if has(section, "interval_ms") {
			cfg.GPU.IntervalMS = tf.GPU.IntervalMS
		}
		if has(section, "carry_forward") {
			cfg.GPU.CarryForward = tf.GPU.CarryForward
		}
	}
	if section, ok := rawSection(raw, "log"); ok && tf.Log != nil {
		if has(section, "dir") {
			cfg.Log.Dir = tf.Log.Dir
		}
		if has(section, "base_name") {
			cfg.Log.BaseName = tf.Log.BaseName
		}
		if has(section, "level") {
			cfg.Log.Level = tf.Log.Level
		}
	}
	if section, ok := rawSection(raw, "proc"); ok && tf.Proc != nil {
		if has(section, "root") {
			cfg.Proc.Root = tf.Proc.Root
		}
	}
	if section, ok := rawSection(raw, "metrics"); ok && tf.Metrics != nil {
		if has(section, "exporter") {
			cfg.Metrics.Exporter = tf.Metrics.Exporter
		}
		if has(section, "endpoint") {
			cfg.Metrics.Endpoint = tf.Metrics.Endpoint
		}
		if has(section, "insecure") {
			cfg.Metrics.Insecure = tf.Metrics.Insecure
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func has(section map[string]any, key string) bool {
	_, ok := section[key]
	return ok
}

// Validate reports every out-of-range setting at once.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Monitor.IntervalMS < 1 {
		errs = append(errs, fmt.Sprintf("monitor interval_ms must be positive, got %d", cfg.Monitor.IntervalMS))
	}
	if cfg.Monitor.HostIntervalMS < 1 {
		errs = append(errs, fmt.Sprintf("monitor host_interval_ms must be positive, got %d", cfg.Monitor.HostIntervalMS))
	}
	switch cfg.Monitor.HostCPUMode {
	case "boot", "window":
	default:
		errs = append(errs, fmt.Sprintf("monitor host_cpu_mode must be boot or window, got %q", cfg.Monitor.HostCPUMode))
	}

	if strings.TrimSpace(cfg.GPU.Command) == "" {
		errs = append(errs, "gpu command must not be empty")
	}
	if cfg.GPU.IntervalMS < 1 {
		errs = append(errs, fmt.Sprintf("gpu interval_ms must be positive, got %d", cfg.GPU.IntervalMS))
	}

	if cfg.Log.Dir == "" {
		errs = append(errs, "log dir must not be empty")
	}
	if cfg.Log.BaseName == "" || strings.ContainsRune(cfg.Log.BaseName, filepath.Separator) {
		errs = append(errs, fmt.Sprintf("log base_name must be a plain file name, got %q", cfg.Log.BaseName))
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log level must be debug, info, warn or error, got %q", cfg.Log.Level))
	}

	if cfg.Proc.Root == "" {
		errs = append(errs, "proc root must not be empty")
	}

	switch cfg.Metrics.Exporter {
	case "none", "stdout", "otlp-grpc", "otlp-http":
	default:
		errs = append(errs, fmt.Sprintf("metrics exporter must be none, stdout, otlp-grpc or otlp-http, got %q", cfg.Metrics.Exporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Package config loads segment settings from built-in defaults, an optional
// YAML file and NPUSEG_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"go.uber.org/zap/zapcore"

	"github.com/emergingrobotics/npu-segment/pkg/device/rknn"
	"github.com/emergingrobotics/npu-segment/pkg/imagesrc"
	"github.com/emergingrobotics/npu-segment/pkg/mask"
)

// EnvPrefix prefixes environment overrides. NPUSEG_OUTPUT_PATH sets
// output.path.
const EnvPrefix = "NPUSEG_"

// Backend names
const (
	BackendRKNN = "rknn"
	BackendSim  = "sim"
)

// OutputConfig defines where the mask is written
type OutputConfig struct {
	Path string `koanf:"path"`
}

// InferenceConfig defines forward pass limits
type InferenceConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// RKNNConfig defines vendor runtime settings
type RKNNConfig struct {
	CoreMask string `koanf:"coremask"`
}

// LogConfig defines logger settings
type LogConfig struct {
	Level string `koanf:"level"`
}

// Config holds all settings
type Config struct {
	Backend       string          `koanf:"backend"`
	Resizer       string          `koanf:"resizer"`
	Interpolation string          `koanf:"interpolation"`
	Palette       []string        `koanf:"palette"`
	Output        OutputConfig    `koanf:"output"`
	Inference     InferenceConfig `koanf:"inference"`
	RKNN          RKNNConfig      `koanf:"rknn"`
	Log           LogConfig       `koanf:"log"`
}

func defaults() map[string]any {
	return map[string]any{
		"backend":           BackendRKNN,
		"resizer":           "native",
		"interpolation":     "bilinear",
		"palette":           []string{"#ff00ff", "#000000"},
		"output.path":       "seg_mask.png",
		"inference.timeout": "0s",
		"rknn.coremask":     "auto",
		"log.level":         "info",
	}
}

// Default returns the built-in configuration, ignoring files and the
// environment
func Default() *Config {
	k := koanf.New(".")
	var cfg Config
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// Load reads the configuration. An empty filePath skips the file layer.
func Load(filePath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", filePath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		if strings.Contains(v, ",") {
			parts := strings.Split(strings.TrimSpace(v), ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return key, parts
		}
		return key, v
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every setting
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendRKNN, BackendSim:
	default:
		errs = append(errs, fmt.Errorf("backend: unknown %q", c.Backend))
	}
	if _, err := imagesrc.New(c.Resizer, c.Interpolation); err != nil {
		errs = append(errs, fmt.Errorf("resizer: %w", err))
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		errs = append(errs, errors.New("output.path: empty"))
	}
	if _, err := mask.ParsePalette(c.Palette); err != nil {
		errs = append(errs, fmt.Errorf("palette: %w", err))
	}
	if c.Inference.Timeout < 0 {
		errs = append(errs, fmt.Errorf("inference.timeout: negative (%s)", c.Inference.Timeout))
	}
	if _, err := rknn.ParseCoreMask(c.RKNN.CoreMask); err != nil {
		errs = append(errs, fmt.Errorf("rknn.coremask: %w", err))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ColorPalette returns the parsed class colors
func (c *Config) ColorPalette() (mask.Palette, error) {
	return mask.ParsePalette(c.Palette)
}

// Supplier returns the configured image supplier
func (c *Config) Supplier() (imagesrc.Supplier, error) {
	return imagesrc.New(c.Resizer, c.Interpolation)
}

// CoreMask returns the parsed NPU core selection
func (c *Config) CoreMask() (rknn.CoreMask, error) {
	return rknn.ParseCoreMask(c.RKNN.CoreMask)
}

// LogLevel returns the parsed logger level
func (c *Config) LogLevel() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.Log.Level)
}

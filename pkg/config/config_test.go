//go:build unit

package config

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/emergingrobotics/npu-segment/pkg/device/rknn"
	"github.com/emergingrobotics/npu-segment/pkg/mask"
	"github.com/emergingrobotics/npu-segment/testutil"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	testutil.AssertNoError(t, err, "Load defaults")

	testutil.AssertEqual(t, cfg.Backend, BackendRKNN, "backend")
	testutil.AssertEqual(t, cfg.Resizer, "native", "resizer")
	testutil.AssertEqual(t, cfg.Output.Path, "seg_mask.png", "output path")
	testutil.AssertEqual(t, cfg.Inference.Timeout, time.Duration(0), "timeout")

	p, err := cfg.ColorPalette()
	testutil.AssertNoError(t, err, "palette")
	if len(p) != 2 || p[0] != mask.Magenta || p[1] != mask.Black {
		t.Errorf("default palette = %v", p)
	}

	m, err := cfg.CoreMask()
	testutil.AssertNoError(t, err, "core mask")
	testutil.AssertEqual(t, m, rknn.CoreAuto, "core mask")

	lvl, err := cfg.LogLevel()
	testutil.AssertNoError(t, err, "log level")
	testutil.AssertEqual(t, lvl, zapcore.InfoLevel, "log level")
}

func TestLoadFile(t *testing.T) {
	path := testutil.TempFile(t, "segment.yaml", []byte(`
backend: sim
resizer: draw
interpolation: catmullrom
palette: ["#00ff00", "#0000ff", "#ff0000"]
output:
  path: /tmp/out.png
inference:
  timeout: 250ms
rknn:
  coremask: core0_1
log:
  level: debug
`))

	cfg, err := Load(path)
	testutil.AssertNoError(t, err, "Load file")

	testutil.AssertEqual(t, cfg.Backend, BackendSim, "backend")
	testutil.AssertEqual(t, cfg.Resizer, "draw", "resizer")
	testutil.AssertEqual(t, cfg.Interpolation, "catmullrom", "interpolation")
	testutil.AssertEqual(t, len(cfg.Palette), 3, "palette size")
	testutil.AssertEqual(t, cfg.Output.Path, "/tmp/out.png", "output path")
	testutil.AssertEqual(t, cfg.Inference.Timeout, 250*time.Millisecond, "timeout")
	testutil.AssertEqual(t, cfg.RKNN.CoreMask, "core0_1", "core mask")
	m, err := cfg.CoreMask()
	testutil.AssertNoError(t, err, "core mask")
	testutil.AssertEqual(t, m, rknn.Core0_1, "parsed core mask")
	testutil.AssertEqual(t, cfg.Log.Level, "debug", "log level")
}

func TestEnvOverridesFile(t *testing.T) {
	path := testutil.TempFile(t, "segment.yaml", []byte("backend: rknn\noutput:\n  path: file.png\n"))

	t.Setenv("NPUSEG_BACKEND", "sim")
	t.Setenv("NPUSEG_OUTPUT_PATH", "env.png")
	t.Setenv("NPUSEG_PALETTE", "#111111, #222222")
	t.Setenv("NPUSEG_INFERENCE_TIMEOUT", "2s")

	cfg, err := Load(path)
	testutil.AssertNoError(t, err, "Load")

	testutil.AssertEqual(t, cfg.Backend, BackendSim, "backend")
	testutil.AssertEqual(t, cfg.Output.Path, "env.png", "output path")
	testutil.AssertEqual(t, cfg.Inference.Timeout, 2*time.Second, "timeout")
	if len(cfg.Palette) != 2 || cfg.Palette[1] != "#222222" {
		t.Errorf("palette = %v", cfg.Palette)
	}
}

func TestLoadFileCoreMaskNames(t *testing.T) {
	tests := []struct {
		value string
		want  rknn.CoreMask
	}{
		{"auto", rknn.CoreAuto},
		{"core0", rknn.Core0},
		{"core2", rknn.Core2},
		{"core0_1", rknn.Core0_1},
		{"core0_1_2", rknn.Core0_1_2},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			path := testutil.TempFile(t, "segment.yaml", []byte("rknn:\n  coremask: "+tt.value+"\n"))
			cfg, err := Load(path)
			testutil.AssertNoError(t, err, "Load")
			m, err := cfg.CoreMask()
			testutil.AssertNoError(t, err, "CoreMask")
			testutil.AssertEqual(t, m, tt.want, "core mask")
		})
	}
}

func TestLoadFileNumericCoreMask(t *testing.T) {
	// YAML reads 0_1 as the integer 1.
	path := testutil.TempFile(t, "segment.yaml", []byte("rknn:\n  coremask: 0_1\n"))
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "rknn.coremask") {
		t.Errorf("Load() error = %v, expected rknn.coremask rejection", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/segment.yaml")
	testutil.AssertError(t, err, "missing file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"backend", func(c *Config) { c.Backend = "cuda" }, "backend"},
		{"resizer", func(c *Config) { c.Resizer = "opencv" }, "resizer"},
		{"interpolation", func(c *Config) { c.Resizer, c.Interpolation = "draw", "lanczos" }, "resizer"},
		{"output", func(c *Config) { c.Output.Path = " " }, "output.path"},
		{"empty palette", func(c *Config) { c.Palette = nil }, "palette"},
		{"bad color", func(c *Config) { c.Palette = []string{"#ff00ff", "purple"} }, "palette"},
		{"timeout", func(c *Config) { c.Inference.Timeout = -time.Second }, "inference.timeout"},
		{"core mask", func(c *Config) { c.RKNN.CoreMask = "7" }, "rknn.coremask"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() succeeded, expected error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Validate() error = %v, expected mention of %s", err, tt.field)
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	testutil.AssertNoError(t, Default().Validate(), "defaults")
}

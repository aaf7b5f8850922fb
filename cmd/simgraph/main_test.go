//go:build unit

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/device/sim"
	"github.com/emergingrobotics/npu-segment/testutil"
)

func TestParseShape(t *testing.T) {
	tests := []struct {
		in      string
		want    device.Shape
		wantErr bool
	}{
		{"256x320x3", device.Shape{Height: 256, Width: 320, Channels: 3}, false},
		{"8X8X1", device.Shape{Height: 8, Width: 8, Channels: 1}, false},
		{"8x8", device.Shape{}, true},
		{"8x0x3", device.Shape{}, true},
		{"axbxc", device.Shape{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseShape(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseShape(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseShape(%q) = %v, expected %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseClass(t *testing.T) {
	c, err := parseClass("road=#808080")
	testutil.AssertNoError(t, err, "parseClass")
	testutil.AssertEqual(t, c, sim.Class{Name: "road", R: 0x80, G: 0x80, B: 0x80}, "class")

	for _, bad := range []string{"road", "=#ffffff", "road=#zzzzzz"} {
		if _, err := parseClass(bad); err == nil {
			t.Errorf("parseClass(%q) succeeded, expected error", bad)
		}
	}
}

func TestWriteAndDescribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.npug")

	var out bytes.Buffer
	err := run([]string{
		"-o", path,
		"-input", "32x32x3",
		"-output", "16x16",
		"-layout", "nchw",
		"-class", "sky=#0000ff",
		"-class", "grass=#00ff00",
		"-class", "road=#808080",
	}, &out)
	testutil.AssertNoError(t, err, "write")

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err, "read graph")
	g, err := sim.ParseGraph(data)
	testutil.AssertNoError(t, err, "parse graph")
	testutil.AssertEqual(t, g.Output.Shape, device.Shape{Height: 16, Width: 16, Channels: 3}, "output shape")
	testutil.AssertEqual(t, g.OutputLayout, device.LayoutNCHW, "layout")
	testutil.AssertEqual(t, len(g.Classes), 3, "classes")

	out.Reset()
	testutil.AssertNoError(t, run([]string{"-describe", path}, &out), "describe")
	for _, want := range []string{"32 x 32 x 3", "16 x 16 x 3", "NCHW", "grass", "#00ff00"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("describe output missing %q:\n%s", want, out.String())
		}
	}
}

func TestDefaultsProduceValidGraph(t *testing.T) {
	g, err := buildGraph("64x64x3", "", "nhwc", nil)
	testutil.AssertNoError(t, err, "buildGraph")
	testutil.AssertEqual(t, g.Output.Shape, device.Shape{Height: 64, Width: 64, Channels: 2}, "output shape")
}

func TestBuildGraphRejectsChannelMismatch(t *testing.T) {
	if _, err := buildGraph("8x8x3", "4x4x5", "nhwc", nil); err == nil {
		t.Error("buildGraph() succeeded with 5 output channels and 2 classes")
	}
}

func TestDescribeGarbage(t *testing.T) {
	path := testutil.TempFile(t, "junk.npug", []byte("junk"))
	var out bytes.Buffer
	if err := run([]string{"-describe", path}, &out); err == nil {
		t.Error("describe of junk succeeded")
	}
}

func TestRunHelpIsUsage(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-h"}, &out)
	if !errors.Is(err, errUsage) {
		t.Fatalf("run(-h) error = %v, expected errUsage", err)
	}
	if !strings.Contains(out.String(), "Usage: simgraph") {
		t.Errorf("help output = %q, expected usage text", out.String())
	}
}

func TestRunRejectsExtraArguments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.npug")

	var out bytes.Buffer
	err := run([]string{"-o", path, "-input", "8x8x3", "other.npug"}, &out)
	if !errors.Is(err, errUsage) {
		t.Fatalf("run() error = %v, expected errUsage", err)
	}
	if !strings.Contains(out.String(), `"other.npug"`) {
		t.Errorf("output = %q, expected the stray argument to be named", out.String())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("run() wrote %d files, expected none", len(entries))
	}
}

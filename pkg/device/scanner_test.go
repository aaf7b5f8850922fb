//go:build unit

package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// mockTree builds a fake sysfs/dev layout under a temp dir
func mockTree(t *testing.T) (*DeviceScanner, string) {
	t.Helper()

	tmpDir := t.TempDir()
	scanner := &DeviceScanner{
		sysfsPath: filepath.Join(tmpDir, "sys", "class", "drm"),
		devPath:   filepath.Join(tmpDir, "dev", "dri"),
		miscPath:  filepath.Join(tmpDir, "dev"),
	}
	for _, dir := range []string{scanner.sysfsPath, scanner.devPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	return scanner, tmpDir
}

func addRenderNode(t *testing.T, s *DeviceScanner, tmpDir, name, driverName string) {
	t.Helper()

	driverDir := filepath.Join(tmpDir, "sys", "bus", "platform", "drivers", driverName)
	if err := os.MkdirAll(driverDir, 0755); err != nil {
		t.Fatalf("failed to create driver dir: %v", err)
	}
	devDir := filepath.Join(s.sysfsPath, name, "device")
	if err := os.MkdirAll(devDir, 0755); err != nil {
		t.Fatalf("failed to create device dir: %v", err)
	}
	if err := os.Symlink(driverDir, filepath.Join(devDir, "driver")); err != nil {
		t.Fatalf("failed to create driver link: %v", err)
	}
	touch(t, filepath.Join(s.devPath, name))
}

func touch(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	f.Close()
}

func TestScanFindsRenderNodesBoundToNPUDriver(t *testing.T) {
	scanner, tmpDir := mockTree(t)
	addRenderNode(t, scanner, tmpDir, "renderD128", "panfrost")
	addRenderNode(t, scanner, tmpDir, "renderD129", "rknpu")

	devices, err := scanner.Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if len(devices) != 1 {
		t.Fatalf("expected 1 device, found %d", len(devices))
	}
	if devices[0].DeviceID != "renderD129" {
		t.Errorf("DeviceID = %s, expected renderD129", devices[0].DeviceID)
	}
	if !devices[0].Accessible {
		t.Error("temp file node should be accessible")
	}
}

func TestScanFindsMiscNodes(t *testing.T) {
	scanner, _ := mockTree(t)
	touch(t, filepath.Join(scanner.miscPath, "rknpu"))

	devices, err := scanner.Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if len(devices) != 1 || devices[0].DeviceID != "rknpu" {
		t.Errorf("expected rknpu misc node, got %+v", devices)
	}
}

func TestScanEmptyWhenNoDevices(t *testing.T) {
	scanner, _ := mockTree(t)

	devices, err := scanner.Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("expected 0 devices, found %d", len(devices))
	}

	if _, err := scanner.First(); !errors.Is(err, ErrNoDevices) {
		t.Errorf("First() error = %v, expected ErrNoDevices", err)
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.sysfsPath != "/sys/class/drm" {
		t.Errorf("unexpected sysfs path: %s", scanner.sysfsPath)
	}
	if scanner.devPath != "/dev/dri" {
		t.Errorf("unexpected dev path: %s", scanner.devPath)
	}
}

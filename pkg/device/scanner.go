package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// npuDriverName is the kernel driver that owns Rockchip NPU nodes
const npuDriverName = "rknpu"

// DeviceInfo contains discovered device information
type DeviceInfo struct {
	Path     string
	DeviceID string
	// Accessible reports whether the current process may open the node
	// for reading and writing
	Accessible bool
}

// DeviceScanner scans for NPU device nodes
type DeviceScanner struct {
	sysfsPath string
	devPath   string
	miscPath  string
}

// NewScanner creates a new device scanner
func NewScanner() *DeviceScanner {
	return &DeviceScanner{
		sysfsPath: "/sys/class/drm",
		devPath:   "/dev/dri",
		miscPath:  "/dev",
	}
}

// Scan finds all NPU devices. DRM render nodes bound to the NPU driver are
// reported first, followed by legacy misc device nodes.
func (s *DeviceScanner) Scan() ([]DeviceInfo, error) {
	if s.sysfsPath == "" {
		s.sysfsPath = "/sys/class/drm"
	}
	if s.devPath == "" {
		s.devPath = "/dev/dri"
	}
	if s.miscPath == "" {
		s.miscPath = "/dev"
	}

	var devices []DeviceInfo

	entries, err := os.ReadDir(s.sysfsPath)
	if err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, "renderD") {
				continue
			}

			driverLink, err := os.Readlink(filepath.Join(s.sysfsPath, name, "device", "driver"))
			if err != nil || filepath.Base(driverLink) != npuDriverName {
				continue
			}

			devPath := filepath.Join(s.devPath, name)
			if _, err := os.Stat(devPath); err == nil {
				devices = append(devices, DeviceInfo{
					Path:       devPath,
					DeviceID:   name,
					Accessible: accessible(devPath),
				})
			}
		}
	}

	for i := -1; i < 4; i++ {
		name := npuDriverName
		if i >= 0 {
			name = fmt.Sprintf("%s%d", npuDriverName, i)
		}
		devPath := filepath.Join(s.miscPath, name)
		if _, err := os.Stat(devPath); err == nil {
			devices = append(devices, DeviceInfo{
				Path:       devPath,
				DeviceID:   name,
				Accessible: accessible(devPath),
			})
		}
	}

	return devices, nil
}

// First returns the first discovered device
func (s *DeviceScanner) First() (DeviceInfo, error) {
	devices, err := s.Scan()
	if err != nil {
		return DeviceInfo{}, err
	}
	if len(devices) == 0 {
		return DeviceInfo{}, ErrNoDevices
	}
	return devices[0], nil
}

// Scan uses the default scanner to find all NPU devices
func Scan() ([]DeviceInfo, error) {
	return NewScanner().Scan()
}

func accessible(path string) bool {
	return unix.Access(path, unix.R_OK|unix.W_OK) == nil
}

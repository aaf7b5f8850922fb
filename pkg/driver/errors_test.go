//go:build unit

package driver

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

func TestAllStatusCodesHaveMessages(t *testing.T) {
	for status := StatusSuccess; status >= StatusTargetPlatformUnmatch; status-- {
		msg := status.String()
		if msg == "" {
			t.Errorf("status %d has empty message", status)
		}
		if len(msg) >= 8 && msg[:8] == "unknown " {
			t.Errorf("status %d has no defined message: %s", status, msg)
		}
	}
}

func TestStatusStringReturnsUnknownForUndefinedStatus(t *testing.T) {
	msg := Status(-99).String()
	if msg != "unknown status (-99)" {
		t.Errorf("expected 'unknown status (-99)', got '%s'", msg)
	}
}

func TestNPUErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *NPUError
		expected string
	}{
		{
			name:     "status only",
			err:      &NPUError{Status: StatusParamInvalid},
			expected: "invalid parameter",
		},
		{
			name:     "with context",
			err:      &NPUError{Status: StatusModelInvalid, Context: "init"},
			expected: "init: invalid model",
		},
		{
			name:     "with cause",
			err:      &NPUError{Status: StatusDeviceUnavailable, Cause: unix.ENOENT},
			expected: "device unavailable: no such file or directory",
		},
		{
			name: "with context and cause",
			err: &NPUError{
				Status:  StatusDeviceUnavailable,
				Context: "opening device",
				Cause:   unix.ENOENT,
			},
			expected: "opening device: device unavailable: no such file or directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.expected {
				t.Errorf("expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestNPUErrorUnwrap(t *testing.T) {
	err := &NPUError{Status: StatusDeviceUnavailable, Cause: unix.ENOENT}
	if !errors.Is(err, unix.ENOENT) {
		t.Error("errors.Is should find the errno cause")
	}

	bare := &NPUError{Status: StatusFail}
	if bare.Unwrap() != nil {
		t.Errorf("Unwrap() returned %v, expected nil", bare.Unwrap())
	}
}

func TestNPUErrorIs(t *testing.T) {
	err1 := &NPUError{Status: StatusTimeout}
	err2 := &NPUError{Status: StatusTimeout, Context: "run"}
	err3 := &NPUError{Status: StatusFail}

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same status")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different status")
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Status
	}{
		{"nil", nil, StatusSuccess},
		{"npu error", NewError(StatusOutputInvalid, "bind"), StatusOutputInvalid},
		{"wrapped npu error", fmt.Errorf("run: %w", NewError(StatusTimeout, "")), StatusTimeout},
		{"errno", unix.ENOMEM, StatusMallocFail},
		{"plain", errors.New("boom"), StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.expected {
				t.Errorf("StatusOf() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestErrnoToStatus(t *testing.T) {
	tests := []struct {
		errno    unix.Errno
		expected Status
	}{
		{unix.ENOMEM, StatusMallocFail},
		{unix.ENOBUFS, StatusMallocFail},
		{unix.ETIMEDOUT, StatusTimeout},
		{unix.ENODEV, StatusDeviceUnavailable},
		{unix.ENOENT, StatusDeviceUnavailable},
		{unix.EBUSY, StatusDeviceUnavailable},
		{unix.EINVAL, StatusParamInvalid},
		{unix.EBADF, StatusContextInvalid},
		{unix.EPERM, StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.errno.Error(), func(t *testing.T) {
			got := ErrnoToStatus(tt.errno)
			if got != tt.expected {
				t.Errorf("ErrnoToStatus(%v) = %d, expected %d", tt.errno, got, tt.expected)
			}
		})
	}
}

func TestStatusFromErrno(t *testing.T) {
	err := StatusFromErrno(unix.ETIMEDOUT, "waiting for completion")

	if err.Status != StatusTimeout {
		t.Errorf("expected StatusTimeout, got %d", err.Status)
	}
	if err.Context != "waiting for completion" {
		t.Errorf("expected context 'waiting for completion', got '%s'", err.Context)
	}
	if err.Cause != unix.ETIMEDOUT {
		t.Errorf("expected cause ETIMEDOUT, got %v", err.Cause)
	}
}

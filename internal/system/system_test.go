package system

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name          string
		uptimeSeconds uint64
		want          string
	}{
		{name: "zero uptime", uptimeSeconds: 0, want: "0m"},
		{name: "seconds round down", uptimeSeconds: 59, want: "0m"},
		{name: "minutes only", uptimeSeconds: 42 * 60, want: "42m"},
		{name: "exact hour", uptimeSeconds: 3600, want: "1h 0m"},
		{name: "hours and minutes", uptimeSeconds: 2*3600 + 30*60, want: "2h 30m"},
		{name: "exact day", uptimeSeconds: 86400, want: "1d 0h 0m"},
		{name: "days hours minutes", uptimeSeconds: 3*86400 + 5*3600 + 42*60, want: "3d 5h 42m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatUptime(tt.uptimeSeconds)
			if got != tt.want {
				t.Errorf("FormatUptime(%d) = %q, want %q", tt.uptimeSeconds, got, tt.want)
			}
		})
	}
}

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"git version 2.39.3 (Apple Git-146)\n", "2.39.3"},
		{"1.15.2\n", "1.15.2"},
		{"pod 1.16\n", "1.16"},
		{"no version here", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVersion(tt.output))
		})
	}
}

func TestToolVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	tool := filepath.Join(t.TempDir(), "pod")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\necho 1.15.2\n"), 0755))

	d := New(newTestLogger(), tool)
	assert.Equal(t, "1.15.2", d.ToolVersion(context.Background(), tool, "--version"))
	assert.Empty(t, d.ToolVersion(context.Background(), filepath.Join(t.TempDir(), "missing")))
}

func TestGetHostInfo(t *testing.T) {
	d := New(newTestLogger(), filepath.Join(t.TempDir(), "no-pod"))
	info := d.GetHostInfo(context.Background())

	assert.NotEmpty(t, info.Hostname)
	assert.NotEmpty(t, info.KernelArch)
	assert.Empty(t, info.PodVersion)
}

func TestCheckNotRoot(t *testing.T) {
	err := CheckNotRoot()
	if os.Geteuid() == 0 {
		assert.ErrorIs(t, err, ErrRunningAsRoot)
	} else {
		assert.NoError(t, err)
	}
}

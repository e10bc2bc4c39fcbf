package system

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"podrepo-agent/internal/constants"
	"podrepo-agent/pkg/models"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/sirupsen/logrus"
)

const probeTimeout = 5 * time.Second

// versionPattern matches the first dotted version number in tool output
var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)*`)

// Detector handles host and toolchain detection
type Detector struct {
	logger    *logrus.Logger
	podBinary string
}

// New creates a new system detector
func New(logger *logrus.Logger, podBinary string) *Detector {
	if podBinary == "" {
		podBinary = "pod"
	}
	return &Detector{
		logger:    logger,
		podBinary: podBinary,
	}
}

// GetHostInfo collects platform details and the installed pod and git versions
func (d *Detector) GetHostInfo(ctx context.Context) models.HostInfo {
	d.logger.Debug("Beginning host information collection")

	hostCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info := models.HostInfo{
		Hostname:        constants.ErrUnknownValue,
		Platform:        constants.ErrUnknownValue,
		PlatformVersion: constants.ErrUnknownValue,
		KernelArch:      constants.ErrUnknownValue,
	}

	stat, err := host.InfoWithContext(hostCtx)
	if err != nil {
		d.logger.WithError(err).Warn("Failed to get host info via gopsutil")
		if hostname, err := os.Hostname(); err == nil {
			info.Hostname = hostname
		}
	} else {
		info.Hostname = stat.Hostname
		info.Platform = stat.Platform
		info.PlatformVersion = stat.PlatformVersion
		info.KernelArch = stat.KernelArch
		info.Uptime = stat.Uptime
	}

	info.PodVersion = d.ToolVersion(ctx, d.podBinary, "--version")
	info.GitVersion = d.ToolVersion(ctx, "git", "--version")

	d.logger.WithFields(logrus.Fields{
		"platform": info.Platform,
		"pod":      info.PodVersion,
		"git":      info.GitVersion,
	}).Debug("Collected host information")

	return info
}

// ToolVersion runs binary with args and returns the version it prints, or
// "" when the tool is missing or prints no version.
func (d *Detector) ToolVersion(ctx context.Context, binary string, args ...string) string {
	if _, err := exec.LookPath(binary); err != nil {
		d.logger.WithField("binary", binary).Debug("Tool not found")
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, binary, args...).Output()
	if err != nil {
		d.logger.WithError(err).WithField("binary", binary).Debug("Failed to read tool version")
		return ""
	}
	return ExtractVersion(string(output))
}

// ExtractVersion returns the first dotted version number in output.
//
//	"git version 2.39.3 (Apple Git-146)" → "2.39.3"
//	"1.15.2"                            → "1.15.2"
func ExtractVersion(output string) string {
	return versionPattern.FindString(strings.TrimSpace(output))
}

// FormatUptime converts an uptime in seconds to a short human-readable string
func FormatUptime(uptimeSeconds uint64) string {
	uptime := time.Duration(uptimeSeconds) * time.Second

	days := int(uptime.Hours() / 24)
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

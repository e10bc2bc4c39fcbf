//go:build unix

package system

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrRunningAsRoot is returned when the agent is started by root
var ErrRunningAsRoot = errors.New("podrepo-agent must not run as root: CocoaPods refuses to run as root and repos would end up owned by root")

// CheckNotRoot fails when the effective user is root
func CheckNotRoot() error {
	if unix.Geteuid() == 0 {
		return ErrRunningAsRoot
	}
	return nil
}

//go:build !unix

package system

import "errors"

// ErrRunningAsRoot is returned when the agent is started by root
var ErrRunningAsRoot = errors.New("podrepo-agent must not run as root")

// CheckNotRoot always succeeds on platforms without a root user
func CheckNotRoot() error {
	return nil
}

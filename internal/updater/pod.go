package updater

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// podWaitDelay bounds how long a killed pod process may hold its output open
const podWaitDelay = 2 * time.Second

// PodRunner runs "pod repo update" for a single repo
type PodRunner struct {
	logger *logrus.Logger
	binary string
}

// NewPodRunner creates a new PodRunner
func NewPodRunner(logger *logrus.Logger, binary string) *PodRunner {
	return &PodRunner{
		logger: logger,
		binary: binary,
	}
}

// Update runs "pod repo update <name>"
func (p *PodRunner) Update(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("repository name is required")
	}

	cmd := exec.CommandContext(ctx, p.binary, "repo", "update", name, "--no-ansi")
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = podWaitDelay

	p.logger.WithField("name", name).Debug("Running pod repo update")
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("pod repo update %s: %w", name, ctxErr)
		}
		if msg := parsePodError(output.String()); msg != "" {
			return fmt.Errorf("pod repo update %s: %s: %w", name, msg, err)
		}
		return fmt.Errorf("pod repo update %s: %w", name, err)
	}

	p.logger.WithFields(logrus.Fields{
		"name":   name,
		"output": strings.TrimSpace(output.String()),
	}).Debug("pod repo update finished")
	return nil
}

// parsePodError extracts the most useful line from failed pod output:
// the first "[!]" line if any, otherwise the last non-empty line.
func parsePodError(output string) string {
	last := ""
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[!]") {
			return strings.TrimSpace(strings.TrimPrefix(line, "[!]"))
		}
		last = line
	}
	return last
}

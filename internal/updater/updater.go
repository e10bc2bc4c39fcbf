package updater

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"podrepo-agent/internal/client"
	"podrepo-agent/pkg/models"

	"github.com/sirupsen/logrus"
)

// Manager updates source repositories. It prefers the pod command, which
// knows about every repo type, and falls back to updating git repos in
// process and refreshing CDN repos over HTTP when pod is not installed.
type Manager struct {
	logger    *logrus.Logger
	podBinary string
	timeout   time.Duration
	pod       *PodRunner
	git       *GitPuller
	cdn       *CDNRefresher
}

// New creates a new update manager
func New(logger *logrus.Logger, cfg *models.Config, httpClient *client.Client) *Manager {
	podBinary := cfg.PodBinary
	if podBinary == "" {
		podBinary = "pod"
	}
	return &Manager{
		logger:    logger,
		podBinary: podBinary,
		timeout:   time.Duration(cfg.UpdateTimeout) * time.Second,
		pod:       NewPodRunner(logger, podBinary),
		git:       NewGitPuller(logger),
		cdn:       NewCDNRefresher(logger, httpClient),
	}
}

// detectStrategy picks how a repo is updated
func (m *Manager) detectStrategy(repo models.SourceRepo) string {
	if _, err := exec.LookPath(m.podBinary); err == nil {
		return "pod"
	}
	m.logger.WithField("binary", m.podBinary).Debug("pod not found, using built-in updater")
	if repo.Kind == models.RepoKindCDN {
		return "cdn"
	}
	return "git"
}

// RunUpdate brings one repository up to date
func (m *Manager) RunUpdate(ctx context.Context, repo models.SourceRepo) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	strategy := m.detectStrategy(repo)
	m.logger.WithFields(logrus.Fields{
		"name":     repo.Name,
		"kind":     repo.Kind,
		"strategy": strategy,
	}).Debug("Running repository update")

	switch strategy {
	case "pod":
		return m.pod.Update(ctx, repo.Name)
	case "cdn":
		return m.cdn.Refresh(ctx, repo)
	case "git":
		return m.git.Pull(ctx, repo.Path)
	default:
		return fmt.Errorf("unknown update strategy %q", strategy)
	}
}

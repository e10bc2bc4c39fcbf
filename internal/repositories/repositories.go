package repositories

import (
	"context"
	"time"

	"podrepo-agent/pkg/models"

	"github.com/sirupsen/logrus"
)

// Manager handles source repository discovery
type Manager struct {
	logger           *logrus.Logger
	cocoapodsManager *CocoaPodsSourceManager
	timeout          time.Duration
}

// New creates a new repository manager for the given repos directory
func New(logger *logrus.Logger, reposDir string) *Manager {
	return &Manager{
		logger:           logger,
		cocoapodsManager: NewCocoaPodsSourceManager(logger, reposDir),
	}
}

// SetTimeout bounds each enumeration. Zero means no limit.
func (m *Manager) SetTimeout(d time.Duration) {
	m.timeout = d
}

// Enumerate lists the source repositories found in the repos directory.
// A missing repos directory yields an empty list; an unreadable one is an error.
func (m *Manager) Enumerate(ctx context.Context) ([]models.SourceRepo, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	repos, err := m.cocoapodsManager.GetSources(ctx)
	if err != nil {
		return nil, err
	}
	m.logger.WithField("count", len(repos)).Debug("Enumerated source repositories")
	return repos, nil
}

// GetRepositories is Enumerate without a deadline
func (m *Manager) GetRepositories() ([]models.SourceRepo, error) {
	return m.Enumerate(context.Background())
}

package updater

import (
	"context"
	"errors"
	"fmt"

	"podrepo-agent/internal/constants"

	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"
)

// GitPuller fast-forwards a git specs repo from its origin remote
type GitPuller struct {
	logger *logrus.Logger
}

// NewGitPuller creates a new GitPuller
func NewGitPuller(logger *logrus.Logger) *GitPuller {
	return &GitPuller{logger: logger}
}

// Pull updates the repo at path. Being already up to date is not an error.
func (g *GitPuller) Pull(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("repository path is required")
	}

	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("failed to open git repo %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree %s: %w", path, err)
	}

	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: constants.DefaultRemote})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		g.logger.WithField("path", path).Debug("Repository already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("git pull %s: %w", path, err)
	}

	if head, err := repo.Head(); err == nil {
		g.logger.WithFields(logrus.Fields{
			"path":   path,
			"commit": head.Hash().String(),
		}).Debug("Repository pulled")
	}
	return nil
}

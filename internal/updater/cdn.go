package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"podrepo-agent/internal/client"
	"podrepo-agent/internal/constants"
	"podrepo-agent/pkg/models"

	"github.com/sirupsen/logrus"
)

// CDNRefresher refreshes the version metadata of a CDN-backed repo. Pod
// specs in a CDN repo are fetched lazily, so the version file is the only
// state that needs refreshing.
type CDNRefresher struct {
	logger *logrus.Logger
	client *client.Client
}

// NewCDNRefresher creates a new CDNRefresher
func NewCDNRefresher(logger *logrus.Logger, httpClient *client.Client) *CDNRefresher {
	return &CDNRefresher{
		logger: logger,
		client: httpClient,
	}
}

// Refresh downloads CocoaPods-version.yml and stores it in the repo directory
func (c *CDNRefresher) Refresh(ctx context.Context, repo models.SourceRepo) error {
	if repo.Path == "" {
		return errors.New("repository path is required")
	}

	status, body, err := c.client.FetchVersion(ctx, repo.Address)
	if err != nil {
		return err
	}

	target := filepath.Join(repo.Path, constants.CDNVersionFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}

	c.logger.WithFields(logrus.Fields{
		"name": repo.Name,
		"min":  status.MinVersion,
		"last": status.LastVersion,
	}).Debug("CDN repository refreshed")
	return nil
}

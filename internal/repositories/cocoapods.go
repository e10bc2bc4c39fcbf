package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podrepo-agent/internal/constants"
	"podrepo-agent/pkg/models"

	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"
)

// CocoaPodsSourceManager reads the source repositories CocoaPods keeps in
// its repos directory (normally ~/.cocoapods/repos). Each subdirectory is
// either a git clone of a specs repo or a CDN-backed repo holding a .url file.
type CocoaPodsSourceManager struct {
	logger   *logrus.Logger
	reposDir string
}

// NewCocoaPodsSourceManager creates a new CocoaPodsSourceManager
func NewCocoaPodsSourceManager(logger *logrus.Logger, reposDir string) *CocoaPodsSourceManager {
	return &CocoaPodsSourceManager{logger: logger, reposDir: reposDir}
}

// GetSources returns the repositories in the repos directory, ordered by
// directory name. Entries that are neither CDN nor git repos are skipped.
func (c *CocoaPodsSourceManager) GetSources(ctx context.Context) ([]models.SourceRepo, error) {
	entries, err := os.ReadDir(c.reposDir)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.WithField("dir", c.reposDir).Debug("Repos directory does not exist")
		return []models.SourceRepo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read repos directory %s: %w", c.reposDir, err)
	}

	repos := []models.SourceRepo{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(c.reposDir, entry.Name())
		repo, err := c.readSource(entry.Name(), path)
		if err != nil {
			c.logger.WithError(err).WithField("path", path).Debug("Skipping directory")
			continue
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// readSource builds the SourceRepo for one repos subdirectory
func (c *CocoaPodsSourceManager) readSource(name, path string) (models.SourceRepo, error) {
	if address, ok := c.readCDNURL(path); ok {
		return newSourceRepo(name, address, models.RepoKindCDN, path, ""), nil
	}

	gitRepo, err := git.PlainOpen(path)
	if err != nil {
		return models.SourceRepo{}, fmt.Errorf("not a CDN or git repo: %w", err)
	}
	remote, err := gitRepo.Remote(constants.DefaultRemote)
	if err != nil {
		return models.SourceRepo{}, fmt.Errorf("no %s remote: %w", constants.DefaultRemote, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || strings.TrimSpace(urls[0]) == "" {
		return models.SourceRepo{}, fmt.Errorf("%s remote has no URL", constants.DefaultRemote)
	}

	commit := ""
	if head, err := gitRepo.Head(); err == nil {
		commit = head.Hash().String()
	} else {
		c.logger.WithError(err).WithField("path", path).Debug("Could not resolve HEAD")
	}

	return newSourceRepo(name, strings.TrimSpace(urls[0]), models.RepoKindGit, path, commit), nil
}

// readCDNURL returns the address stored in a CDN repo's .url file
func (c *CocoaPodsSourceManager) readCDNURL(path string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(path, constants.CDNURLFile))
	if err != nil {
		return "", false
	}
	address := strings.TrimSpace(string(data))
	return address, address != ""
}

func newSourceRepo(name, address string, kind models.RepoKind, path, commit string) models.SourceRepo {
	return models.SourceRepo{
		Address:        address,
		Name:           name,
		DisplayName:    name,
		DisplayAddress: DisplayAddress(address),
		IsDefault:      IsDefaultAddress(address),
		Kind:           kind,
		Path:           path,
		Commit:         commit,
	}
}

// IsDefaultAddress reports whether address is the implicit CocoaPods specs
// repository, either the trunk CDN or the legacy master git repo.
func IsDefaultAddress(address string) bool {
	key := strings.ToLower(DisplayAddress(address))
	return key == canonicalMaster || key == canonicalTrunk
}

var (
	canonicalMaster = strings.ToLower(DisplayAddress(constants.MasterSpecsAddress))
	canonicalTrunk  = strings.ToLower(DisplayAddress(constants.TrunkCDNAddress))
)

// DisplayAddress shortens an address for presentation:
//
//	"https://github.com/CocoaPods/Specs.git" → "github.com/CocoaPods/Specs"
//	"git@github.com:acme/specs.git"          → "github.com/acme/specs"
//	"https://cdn.cocoapods.org/"             → "cdn.cocoapods.org"
func DisplayAddress(address string) string {
	s := strings.TrimSpace(address)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else if at := strings.Index(s, "@"); at >= 0 && strings.Contains(s[at:], ":") {
		// scp-like git@host:path
		s = strings.Replace(s[at+1:], ":", "/", 1)
	}
	if at := strings.Index(s, "@"); at >= 0 && at < strings.Index(s+"/", "/") {
		s = s[at+1:]
	}
	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, ".git")
	return s
}

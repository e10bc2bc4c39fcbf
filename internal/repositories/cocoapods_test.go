package repositories

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"podrepo-agent/pkg/models"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// makeGitRepo initialises a git repo at dir with an origin remote and,
// when commit is true, a single commit.
func makeGitRepo(t *testing.T, dir, remoteURL string, commit bool) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{remoteURL}})
	require.NoError(t, err)
	if !commit {
		return ""
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("specs\n"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func makeCDNRepo(t *testing.T, dir, url string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".url"), []byte(url+"\n"), 0644))
}

func TestNew(t *testing.T) {
	logger := newTestLogger()
	mgr := New(logger, "/nonexistent")

	require.NotNil(t, mgr)
	assert.Equal(t, logger, mgr.logger)
	assert.NotNil(t, mgr.cocoapodsManager)
}

func TestEnumerate_MissingReposDir(t *testing.T) {
	mgr := New(newTestLogger(), filepath.Join(t.TempDir(), "repos"))

	repos, err := mgr.Enumerate(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, repos)
	assert.Empty(t, repos)
}

func TestEnumerate_ReposDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := New(newTestLogger(), path).Enumerate(context.Background())
	assert.Error(t, err)
}

func TestEnumerate_FindsGitAndCDNRepos(t *testing.T) {
	reposDir := t.TempDir()
	makeCDNRepo(t, filepath.Join(reposDir, "trunk"), "https://cdn.cocoapods.org/")
	head := makeGitRepo(t, filepath.Join(reposDir, "acme"), "https://github.com/acme/Specs.git", true)
	makeGitRepo(t, filepath.Join(reposDir, "empty"), "git@github.com:acme/private-specs.git", false)
	require.NoError(t, os.MkdirAll(filepath.Join(reposDir, "not-a-repo"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(reposDir, ".hidden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(reposDir, "stray-file"), nil, 0644))

	repos, err := New(newTestLogger(), reposDir).GetRepositories()
	require.NoError(t, err)
	require.Len(t, repos, 3)

	// ReadDir order is by name
	acme, empty, trunk := repos[0], repos[1], repos[2]

	assert.Equal(t, "https://github.com/acme/Specs.git", acme.Address)
	assert.Equal(t, "acme", acme.Name)
	assert.Equal(t, "github.com/acme/Specs", acme.DisplayAddress)
	assert.Equal(t, models.RepoKindGit, acme.Kind)
	assert.Equal(t, head, acme.Commit)
	assert.False(t, acme.IsDefault)

	assert.Equal(t, "git@github.com:acme/private-specs.git", empty.Address)
	assert.Empty(t, empty.Commit)

	assert.Equal(t, "https://cdn.cocoapods.org/", trunk.Address)
	assert.Equal(t, models.RepoKindCDN, trunk.Kind)
	assert.True(t, trunk.IsDefault)
	assert.Equal(t, filepath.Join(reposDir, "trunk"), trunk.Path)
}

func TestEnumerate_HonoursCancellation(t *testing.T) {
	reposDir := t.TempDir()
	makeCDNRepo(t, filepath.Join(reposDir, "trunk"), "https://cdn.cocoapods.org/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(newTestLogger(), reposDir).Enumerate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsDefaultAddress(t *testing.T) {
	tests := []struct {
		address string
		want    bool
	}{
		{"https://github.com/CocoaPods/Specs.git", true},
		{"https://github.com/CocoaPods/Specs", true},
		{"git@github.com:CocoaPods/Specs.git", true},
		{"https://cdn.cocoapods.org/", true},
		{"https://cdn.cocoapods.org", true},
		{"https://github.com/acme/Specs.git", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDefaultAddress(tt.address))
		})
	}
}

func TestDisplayAddress(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"https://github.com/CocoaPods/Specs.git", "github.com/CocoaPods/Specs"},
		{"git@github.com:acme/specs.git", "github.com/acme/specs"},
		{"https://cdn.cocoapods.org/", "cdn.cocoapods.org"},
		{"https://token@git.example.com/team/specs.git", "git.example.com/team/specs"},
		{"/Users/me/local-specs", "/Users/me/local-specs"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayAddress(tt.address))
		})
	}
}

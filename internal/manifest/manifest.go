package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"podrepo-agent/internal/constants"

	"gopkg.in/yaml.v3"
)

// ErrNoManifest is returned when a directory holds neither a Podfile nor a Podfile.lock
var ErrNoManifest = errors.New("no Podfile or Podfile.lock found")

// maxPodfileLine bounds a single Podfile line
const maxPodfileLine = 1 << 20

// sourceLine matches `source 'https://...'` declarations in a Podfile
var sourceLine = regexp.MustCompile(`^\s*source\s+['"]([^'"]+)['"]`)

// Manifest is the source declarations of one CocoaPods project
type Manifest struct {
	Dir             string
	HasPodfile      bool
	HasLockfile     bool
	PodfileSources  []string
	LockfileSources []string
}

// Read loads the Podfile and Podfile.lock found in dir. Either file may be
// missing, but not both.
func Read(dir string) (*Manifest, error) {
	m := &Manifest{Dir: dir}

	podfile, err := os.ReadFile(filepath.Join(dir, constants.PodfileName))
	switch {
	case err == nil:
		m.HasPodfile = true
		sources, err := ParsePodfile(podfile)
		if err != nil {
			return nil, err
		}
		m.PodfileSources = sources
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", constants.PodfileName, err)
	}

	lockfile, err := os.ReadFile(filepath.Join(dir, constants.PodfileLockName))
	switch {
	case err == nil:
		m.HasLockfile = true
		sources, err := ParseLockfile(lockfile)
		if err != nil {
			return nil, err
		}
		m.LockfileSources = sources
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", constants.PodfileLockName, err)
	}

	if !m.HasPodfile && !m.HasLockfile {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoManifest)
	}
	return m, nil
}

// DeclaredSources returns the addresses of the Podfile `source` lines in
// order. Lockfile repos are where pods were last resolved from, not
// declarations, so they never take part in classification.
func (m *Manifest) DeclaredSources() []string {
	declared := make([]string, 0, len(m.PodfileSources))
	return append(declared, m.PodfileSources...)
}

// LockedSources returns the SPEC REPOS addresses of the lockfile
func (m *Manifest) LockedSources() []string {
	locked := make([]string, 0, len(m.LockfileSources))
	return append(locked, m.LockfileSources...)
}

// ParsePodfile extracts the addresses of `source` lines. Comments are ignored.
func ParsePodfile(data []byte) ([]string, error) {
	sources := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxPodfileLine)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		if match := sourceLine.FindStringSubmatch(line); match != nil {
			sources = append(sources, strings.TrimSpace(match[1]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", constants.PodfileName, err)
	}
	return sources, nil
}

// ParseLockfile returns the repository keys of the SPEC REPOS section in
// document order. The "trunk" key stands for the CocoaPods CDN.
func ParseLockfile(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", constants.PodfileLockName, err)
	}

	sources := []string{}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return sources, nil
	}

	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != constants.LockfileRepoKey {
			continue
		}
		repos := root.Content[i+1]
		if repos.Kind != yaml.MappingNode {
			return sources, nil
		}
		for j := 0; j+1 < len(repos.Content); j += 2 {
			sources = append(sources, lockfileAddress(repos.Content[j].Value))
		}
	}
	return sources, nil
}

func lockfileAddress(key string) string {
	if key == constants.TrunkRepoName {
		return constants.TrunkCDNAddress
	}
	return key
}

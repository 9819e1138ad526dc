package managers

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/ppackage/pkg/dockerfile"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/propagation"
	"github.com/fulmenhq/ppackage/pkg/safeio"
	"github.com/go-git/go-billy/v5"
)

// DockerManager keeps a version label in Dockerfiles selected by glob
// patterns. Everything but the edited LABEL line is written back verbatim.
type DockerManager struct {
	patterns     []string
	versionLabel string
}

// NewDockerManager creates a manager for files matching patterns that stores
// the version under versionLabel.
func NewDockerManager(patterns []string, versionLabel string) *DockerManager {
	return &DockerManager{
		patterns:     append([]string(nil), patterns...),
		versionLabel: versionLabel,
	}
}

// Name returns the name of this package manager
func (m *DockerManager) Name() string {
	return "docker"
}

// Detect finds Dockerfiles matching the configured patterns
func (m *DockerManager) Detect(fsys billy.Filesystem) ([]string, error) {
	files, err := findFiles(fsys, func(path string) bool {
		for _, pattern := range m.patterns {
			if ok, err := doublestar.Match(pattern, path); err == nil && ok {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect Dockerfiles: %w", err)
	}
	logger.Debug("Detected Dockerfiles", logger.Int("count", len(files)))
	return files, nil
}

// ExtractVersion reads the version label
func (m *DockerManager) ExtractVersion(fsys billy.Filesystem, file string) (string, error) {
	doc, err := ReadDockerfile(fsys, file)
	if err != nil {
		return "", err
	}
	version, ok := doc.Label(m.versionLabel)
	if !ok || version == "" {
		return "", fmt.Errorf("%s: label %s: %w", file, m.versionLabel, propagation.ErrNoVersion)
	}
	return version, nil
}

// UpdateVersion sets the version label
func (m *DockerManager) UpdateVersion(fsys billy.Filesystem, file, version string) error {
	if err := StampLabel(fsys, file, m.versionLabel, version); err != nil {
		return err
	}
	logger.Info("Updated Dockerfile version", logger.String("file", file), logger.String("version", version))
	return nil
}

// ValidateVersion checks if the version in the file matches the expected version
func (m *DockerManager) ValidateVersion(fsys billy.Filesystem, file, expectedVersion string) error {
	actualVersion, err := m.ExtractVersion(fsys, file)
	if err != nil {
		return err
	}
	return validate(actualVersion, expectedVersion)
}

// ReadDockerfile parses file from fsys.
func ReadDockerfile(fsys billy.Filesystem, file string) (*dockerfile.Document, error) {
	data, err := safeio.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return dockerfile.Parse(string(data)), nil
}

// WriteDockerfile serializes doc to file, keeping the file mode.
func WriteDockerfile(fsys billy.Filesystem, file string, doc *dockerfile.Document) error {
	if err := safeio.WriteFilePreservePerms(fsys, file, []byte(doc.String())); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return nil
}

// StampLabel sets one label in file. The file is left untouched when the
// label already has that value.
func StampLabel(fsys billy.Filesystem, file, key, value string) error {
	doc, err := ReadDockerfile(fsys, file)
	if err != nil {
		return err
	}
	if current, ok := doc.Label(key); ok && current == value {
		return nil
	}
	doc.SetLabel(key, value)
	return WriteDockerfile(fsys, file, doc)
}

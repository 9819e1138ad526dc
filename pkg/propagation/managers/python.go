package managers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/propagation"
	"github.com/fulmenhq/ppackage/pkg/safeio"
	"github.com/go-git/go-billy/v5"
	"github.com/pelletier/go-toml/v2"
)

// versionLine captures indentation, opening quote, closing quote and any
// trailing comment of a `version = "..."` assignment.
var versionLine = regexp.MustCompile(`^(\s*version\s*=\s*)(["'])[^"']*(["'])(.*)$`)

// PythonManager handles pyproject.toml files
type PythonManager struct{}

// NewPythonManager creates a new Python package manager
func NewPythonManager() *PythonManager {
	return &PythonManager{}
}

// Name returns the name of this package manager
func (m *PythonManager) Name() string {
	return "python"
}

// Detect finds pyproject.toml files
func (m *PythonManager) Detect(fsys billy.Filesystem) ([]string, error) {
	files, err := findFiles(fsys, baseNameIs("pyproject.toml"))
	if err != nil {
		return nil, fmt.Errorf("failed to detect pyproject.toml files: %w", err)
	}
	logger.Debug("Detected pyproject.toml files", logger.Int("count", len(files)))
	return files, nil
}

// ExtractVersion reads the version from [project], falling back to [tool.poetry]
func (m *PythonManager) ExtractVersion(fsys billy.Filesystem, file string) (string, error) {
	data, err := safeio.ReadFile(fsys, file)
	if err != nil {
		return "", fmt.Errorf("failed to read pyproject.toml: %w", err)
	}

	var doc struct {
		Project struct {
			Version string `toml:"version"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Version string `toml:"version"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse pyproject.toml: %w", err)
	}

	if doc.Project.Version != "" {
		return doc.Project.Version, nil
	}
	if doc.Tool.Poetry.Version != "" {
		return doc.Tool.Poetry.Version, nil
	}
	return "", fmt.Errorf("%s: [project] or [tool.poetry]: %w", file, propagation.ErrNoVersion)
}

// UpdateVersion rewrites the version line of each table that declares one.
// The edit is textual so comments and ordering are preserved.
func (m *PythonManager) UpdateVersion(fsys billy.Filesystem, file, version string) error {
	data, err := safeio.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("failed to read pyproject.toml: %w", err)
	}

	content := string(data)
	updated := false
	for _, table := range []string{"project", "tool.poetry"} {
		if next, ok := updateTOMLField(content, table, version); ok {
			content = next
			updated = true
		}
	}
	if !updated {
		return fmt.Errorf("%s: nothing to update in [project] or [tool.poetry]: %w", file, propagation.ErrNoVersion)
	}

	if err := safeio.WriteFilePreservePerms(fsys, file, []byte(content)); err != nil {
		return fmt.Errorf("failed to write updated pyproject.toml: %w", err)
	}

	logger.Info("Updated pyproject.toml version", logger.String("file", file), logger.String("version", version))
	return nil
}

// updateTOMLField replaces the version value directly under table. Sub-tables
// such as [project.urls] are not part of table.
func updateTOMLField(content, table, version string) (string, bool) {
	lines := strings.Split(content, "\n")
	current := ""

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			if end := strings.Index(trimmed, "]"); end > 0 {
				current = strings.TrimSpace(strings.Trim(trimmed[:end+1], "[]"))
			}
			continue
		}
		if current != table {
			continue
		}
		if m := versionLine.FindStringSubmatch(line); m != nil {
			lines[i] = m[1] + m[2] + version + m[3] + m[4]
			return strings.Join(lines, "\n"), true
		}
	}
	return content, false
}

// ValidateVersion checks if the version in the file matches the expected version
func (m *PythonManager) ValidateVersion(fsys billy.Filesystem, file, expectedVersion string) error {
	actualVersion, err := m.ExtractVersion(fsys, file)
	if err != nil {
		return err
	}
	return validate(actualVersion, expectedVersion)
}

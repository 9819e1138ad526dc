package managers

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/propagation"
	"github.com/fulmenhq/ppackage/pkg/safeio"
	"github.com/go-git/go-billy/v5"
)

// MavenManager handles pom.xml files. Only project/version is managed; a
// version inherited from <parent> is left alone.
type MavenManager struct{}

// NewMavenManager creates a new Maven package manager
func NewMavenManager() *MavenManager {
	return &MavenManager{}
}

// Name returns the name of this package manager
func (m *MavenManager) Name() string {
	return "maven"
}

// Detect finds pom.xml files
func (m *MavenManager) Detect(fsys billy.Filesystem) ([]string, error) {
	files, err := findFiles(fsys, baseNameIs("pom.xml"))
	if err != nil {
		return nil, fmt.Errorf("failed to detect pom.xml files: %w", err)
	}
	logger.Debug("Detected pom.xml files", logger.Int("count", len(files)))
	return files, nil
}

func (m *MavenManager) load(fsys billy.Filesystem, file string) (*etree.Document, *etree.Element, error) {
	data, err := safeio.ReadFile(fsys, file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read pom.xml: %w", err)
	}
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, nil, fmt.Errorf("failed to parse pom.xml: %w", err)
	}
	project := doc.SelectElement("project")
	if project == nil {
		return nil, nil, fmt.Errorf("%s: missing <project> root", file)
	}
	return doc, project, nil
}

// ExtractVersion reads project/version
func (m *MavenManager) ExtractVersion(fsys billy.Filesystem, file string) (string, error) {
	_, project, err := m.load(fsys, file)
	if err != nil {
		return "", err
	}
	version := project.SelectElement("version")
	if version == nil || strings.TrimSpace(version.Text()) == "" {
		return "", fmt.Errorf("%s: project/version: %w", file, propagation.ErrNoVersion)
	}
	return strings.TrimSpace(version.Text()), nil
}

// UpdateVersion sets project/version. A missing element is added after
// <artifactId> with the same indentation.
func (m *MavenManager) UpdateVersion(fsys billy.Filesystem, file, version string) error {
	doc, project, err := m.load(fsys, file)
	if err != nil {
		return err
	}

	if el := project.SelectElement("version"); el != nil {
		el.SetText(version)
	} else {
		el := etree.NewElement("version")
		el.SetText(version)
		insertAfterSibling(project, project.SelectElement("artifactId"), el)
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize pom.xml: %w", err)
	}
	if err := safeio.WriteFilePreservePerms(fsys, file, out); err != nil {
		return fmt.Errorf("failed to write updated pom.xml: %w", err)
	}

	logger.Info("Updated pom.xml version", logger.String("file", file), logger.String("version", version))
	return nil
}

// insertAfterSibling places el after anchor, copying the whitespace that
// precedes anchor. Without an anchor el is appended.
func insertAfterSibling(parent, anchor, el *etree.Element) {
	if anchor == nil {
		parent.AddChild(el)
		return
	}
	i := anchor.Index()
	indent := ""
	if i > 0 {
		if cd, ok := parent.Child[i-1].(*etree.CharData); ok && cd.IsWhitespace() {
			indent = cd.Data
		}
	}
	if indent != "" {
		parent.InsertChildAt(i+1, etree.NewText(indent))
		i++
	}
	parent.InsertChildAt(i+1, el)
}

// ValidateVersion checks if the version in the file matches the expected version
func (m *MavenManager) ValidateVersion(fsys billy.Filesystem, file, expectedVersion string) error {
	actualVersion, err := m.ExtractVersion(fsys, file)
	if err != nil {
		return err
	}
	return validate(actualVersion, expectedVersion)
}

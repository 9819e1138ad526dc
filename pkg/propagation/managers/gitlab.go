package managers

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/propagation"
	"github.com/fulmenhq/ppackage/pkg/safeio"
	"github.com/go-git/go-billy/v5"
	"gopkg.in/yaml.v3"
)

// GitLabManager keeps a top-level version key in a GitLab CI file. The
// default key is ".version", a hidden key GitLab does not run as a job.
type GitLabManager struct {
	file string
	key  string
}

// NewGitLabManager creates a manager for file storing the version under key
func NewGitLabManager(file, key string) *GitLabManager {
	return &GitLabManager{file: file, key: key}
}

// Name returns the name of this package manager
func (m *GitLabManager) Name() string {
	return "gitlab"
}

// Detect reports the CI file when it exists at the project root
func (m *GitLabManager) Detect(fsys billy.Filesystem) ([]string, error) {
	if !safeio.Exists(fsys, m.file) {
		return nil, nil
	}
	return []string{m.file}, nil
}

func (m *GitLabManager) load(fsys billy.Filesystem, file string) (*yaml.Node, error) {
	data, err := safeio.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: top level is not a mapping", file)
	}
	return &doc, nil
}

// lookup returns the value node for key in mapping, or nil.
func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// ExtractVersion reads the version key
func (m *GitLabManager) ExtractVersion(fsys billy.Filesystem, file string) (string, error) {
	doc, err := m.load(fsys, file)
	if err != nil {
		return "", err
	}
	node := lookup(doc.Content[0], m.key)
	if node == nil || node.Kind != yaml.ScalarNode || node.Value == "" {
		return "", fmt.Errorf("%s: key %s: %w", file, m.key, propagation.ErrNoVersion)
	}
	return node.Value, nil
}

// UpdateVersion sets the version key, appending it when absent. Comments and
// key order are kept; layout is normalized by the YAML encoder.
func (m *GitLabManager) UpdateVersion(fsys billy.Filesystem, file, version string) error {
	doc, err := m.load(fsys, file)
	if err != nil {
		return err
	}

	root := doc.Content[0]
	if node := lookup(root, m.key); node != nil {
		node.Kind = yaml.ScalarNode
		node.Tag = "!!str"
		node.Value = version
		node.Content = nil
	} else {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: version},
		)
	}

	clearMergeTags(doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode %s: %w", file, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", file, err)
	}

	if err := safeio.WriteFilePreservePerms(fsys, file, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}

	logger.Info("Updated GitLab CI version", logger.String("file", file), logger.String("version", version))
	return nil
}

// clearMergeTags drops the explicit !!merge tag the decoder puts on "<<" keys,
// which the encoder would otherwise write out as "!!merge <<".
func clearMergeTags(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if key := n.Content[i]; key.Kind == yaml.ScalarNode && key.Tag == "!!merge" {
				key.Tag = ""
			}
		}
	}
	for _, c := range n.Content {
		clearMergeTags(c)
	}
}

// ValidateVersion checks if the version in the file matches the expected version
func (m *GitLabManager) ValidateVersion(fsys billy.Filesystem, file, expectedVersion string) error {
	actualVersion, err := m.ExtractVersion(fsys, file)
	if err != nil {
		return err
	}
	return validate(actualVersion, expectedVersion)
}

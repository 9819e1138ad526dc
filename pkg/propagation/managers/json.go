package managers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/propagation"
	"github.com/fulmenhq/ppackage/pkg/safeio"
	"github.com/go-git/go-billy/v5"
)

// JSONManager handles JSON manifests with a top-level "version" field, such
// as package.json and composer.json. Edits touch only the version value so
// key order and formatting survive.
type JSONManager struct {
	name     string
	fileName string
}

// NewNPMManager handles package.json files
func NewNPMManager() *JSONManager {
	return &JSONManager{name: "npm", fileName: "package.json"}
}

// NewComposerManager handles composer.json files
func NewComposerManager() *JSONManager {
	return &JSONManager{name: "composer", fileName: "composer.json"}
}

// Name returns the name of this package manager
func (m *JSONManager) Name() string {
	return m.name
}

// FileName returns the manifest base name this manager looks for
func (m *JSONManager) FileName() string {
	return m.fileName
}

// Detect finds manifest files in the filesystem
func (m *JSONManager) Detect(fsys billy.Filesystem) ([]string, error) {
	files, err := findFiles(fsys, baseNameIs(m.fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to detect %s files: %w", m.fileName, err)
	}
	logger.Debug("Detected manifest files", logger.String("manager", m.name), logger.Int("count", len(files)))
	return files, nil
}

// ExtractVersion reads the version from a manifest
func (m *JSONManager) ExtractVersion(fsys billy.Filesystem, file string) (string, error) {
	data, err := safeio.ReadFile(fsys, file)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file, err)
	}

	// Keys match exactly, as in setTopLevelString.
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", file, err)
	}
	raw, ok := top["version"]
	if !ok {
		return "", fmt.Errorf("%s: %w", file, propagation.ErrNoVersion)
	}
	var version *string
	if err := json.Unmarshal(raw, &version); err != nil {
		return "", fmt.Errorf("failed to parse %s: version: %w", file, err)
	}
	if version == nil || *version == "" {
		return "", fmt.Errorf("%s: %w", file, propagation.ErrNoVersion)
	}
	return *version, nil
}

// UpdateVersion replaces the top-level version value in place, or inserts it
// as the first member when absent.
func (m *JSONManager) UpdateVersion(fsys billy.Filesystem, file, version string) error {
	data, err := safeio.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	updated, err := setTopLevelString(data, "version", version)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", file, err)
	}

	if err := safeio.WriteFilePreservePerms(fsys, file, updated); err != nil {
		return fmt.Errorf("failed to write updated %s: %w", file, err)
	}

	logger.Info("Updated manifest version", logger.String("file", file), logger.String("version", version))
	return nil
}

// ValidateVersion checks if the version in the file matches the expected version
func (m *JSONManager) ValidateVersion(fsys billy.Filesystem, file, expectedVersion string) error {
	actualVersion, err := m.ExtractVersion(fsys, file)
	if err != nil {
		return err
	}
	return validate(actualVersion, expectedVersion)
}

type jsonFrame struct {
	object    bool
	expectKey bool
}

// setTopLevelString sets key on the root object of data to a string value.
func setTopLevelString(data []byte, key, value string) ([]byte, error) {
	quoted, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var stack []jsonFrame
	rootOpen := -1

	valueDone := func() {
		if n := len(stack); n > 0 && stack[n-1].object {
			stack[n-1].expectKey = true
		}
	}

	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if n := len(stack); n > 0 && stack[n-1].object && stack[n-1].expectKey {
			if d, ok := tok.(json.Delim); ok && d == '}' {
				stack = stack[:n-1]
				valueDone()
				continue
			}
			name, _ := tok.(string)
			stack[n-1].expectKey = false
			if n == 1 && name == key {
				return replaceValue(data, dec, quoted)
			}
			continue
		}

		switch d := tok.(type) {
		case json.Delim:
			switch d {
			case '{':
				if len(stack) == 0 {
					rootOpen = int(offset) + bytes.IndexByte(data[offset:], '{')
				}
				stack = append(stack, jsonFrame{object: true, expectKey: true})
			case '[':
				stack = append(stack, jsonFrame{})
			default:
				stack = stack[:len(stack)-1]
				valueDone()
			}
		default:
			valueDone()
		}
	}

	if rootOpen < 0 {
		return nil, errors.New("document is not a JSON object")
	}
	return insertFirstMember(data, rootOpen, key, quoted)
}

// replaceValue swaps the value that dec is about to read for quoted.
func replaceValue(data []byte, dec *json.Decoder, quoted []byte) ([]byte, error) {
	start := int(dec.InputOffset())
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if _, ok := tok.(json.Delim); ok {
		return nil, errors.New("version is not a scalar")
	}
	end := int(dec.InputOffset())

	for start < end && (data[start] == ':' || isJSONSpace(data[start])) {
		start++
	}

	out := make([]byte, 0, len(data)+len(quoted))
	out = append(out, data[:start]...)
	out = append(out, quoted...)
	out = append(out, data[end:]...)
	return out, nil
}

// insertFirstMember adds "key": value right after the root brace, reusing the
// indentation of the existing first member.
func insertFirstMember(data []byte, open int, key string, quoted []byte) ([]byte, error) {
	rest := data[open+1:]
	ws := 0
	for ws < len(rest) && isJSONSpace(rest[ws]) {
		ws++
	}
	indent := rest[:ws]
	empty := ws < len(rest) && rest[ws] == '}'

	quotedKey, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.Write(data[:open+1])
	if empty {
		b.Write(quotedKey)
		b.WriteString(": ")
		b.Write(quoted)
		b.Write(rest)
		return b.Bytes(), nil
	}
	b.Write(indent)
	b.Write(quotedKey)
	b.WriteString(": ")
	b.Write(quoted)
	b.WriteByte(',')
	b.Write(rest)
	return b.Bytes(), nil
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

package managers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fulmenhq/ppackage/pkg/propagation"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// projectFS writes files into a temp dir and returns it as a billy filesystem.
func projectFS(t *testing.T, files map[string]string) (billy.Filesystem, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}
	return osfs.New(dir), dir
}

const pyprojectBoth = `# Project with both [project] and [tool.poetry] sections
[project]
name = "test-package"
version = "1.5.0"  # keep in sync
description = "Test package"

[project.urls]
version = "https://example.com/not-a-version"

[tool.poetry]
name = "test-package"
version = '1.5.0'

[build-system]
requires = ["poetry-core"]
`

func TestPythonManager_Name(t *testing.T) {
	if NewPythonManager().Name() != "python" {
		t.Errorf("Expected name 'python', got '%s'", NewPythonManager().Name())
	}
}

func TestPythonManager_Detect(t *testing.T) {
	fsys, _ := projectFS(t, map[string]string{
		"pyproject.toml":              pyprojectBoth,
		"libs/core/pyproject.toml":    pyprojectBoth,
		".venv/lib/x/pyproject.toml":  pyprojectBoth,
		"node_modules/pyproject.toml": pyprojectBoth,
	})

	files, err := NewPythonManager().Detect(fsys)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if strings.Join(files, ",") != "pyproject.toml,libs/core/pyproject.toml" {
		t.Errorf("Unexpected files: %v", files)
	}
}

func TestPythonManager_ExtractVersion(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		want    string
	}{
		{"project section", "[project]\nname = \"x\"\nversion = \"1.2.3\"\n", "1.2.3"},
		{"poetry section", "[tool.poetry]\nname = \"x\"\nversion = \"2.0.0\"\n", "2.0.0"},
		{"project wins", pyprojectBoth, "1.5.0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fsys, _ := projectFS(t, map[string]string{"pyproject.toml": tc.content})
			version, err := NewPythonManager().ExtractVersion(fsys, "pyproject.toml")
			if err != nil {
				t.Fatalf("ExtractVersion failed: %v", err)
			}
			if version != tc.want {
				t.Errorf("Expected version '%s', got '%s'", tc.want, version)
			}
		})
	}
}

func TestPythonManager_ExtractVersion_NoVersion(t *testing.T) {
	fsys, _ := projectFS(t, map[string]string{"pyproject.toml": "[project]\nname = \"x\"\n"})

	_, err := NewPythonManager().ExtractVersion(fsys, "pyproject.toml")
	if !errors.Is(err, propagation.ErrNoVersion) {
		t.Errorf("Expected ErrNoVersion, got %v", err)
	}
}

func TestPythonManager_ExtractVersion_Malformed(t *testing.T) {
	fsys, _ := projectFS(t, map[string]string{"pyproject.toml": "[project\nversion = \n"})

	_, err := NewPythonManager().ExtractVersion(fsys, "pyproject.toml")
	if err == nil || errors.Is(err, propagation.ErrNoVersion) {
		t.Errorf("Expected parse error, got %v", err)
	}
}

func TestPythonManager_UpdateVersion_PreserveStructure(t *testing.T) {
	fsys, dir := projectFS(t, map[string]string{"pyproject.toml": pyprojectBoth})

	if err := NewPythonManager().UpdateVersion(fsys, "pyproject.toml", "1.6.0"); err != nil {
		t.Fatalf("UpdateVersion failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		t.Fatalf("Failed to read updated file: %v", err)
	}

	want := strings.NewReplacer(
		`version = "1.5.0"  # keep in sync`, `version = "1.6.0"  # keep in sync`,
		`version = '1.5.0'`, `version = '1.6.0'`,
	).Replace(pyprojectBoth)
	if string(data) != want {
		t.Errorf("Unexpected content:\n%s", data)
	}
}

func TestPythonManager_UpdateVersion_NoField(t *testing.T) {
	fsys, _ := projectFS(t, map[string]string{"pyproject.toml": "[project]\nname = \"x\"\n"})

	err := NewPythonManager().UpdateVersion(fsys, "pyproject.toml", "1.0.0")
	if !errors.Is(err, propagation.ErrNoVersion) {
		t.Errorf("Expected ErrNoVersion, got %v", err)
	}
}

func TestPythonManager_ValidateVersion(t *testing.T) {
	fsys, _ := projectFS(t, map[string]string{"pyproject.toml": pyprojectBoth})
	manager := NewPythonManager()

	if err := manager.ValidateVersion(fsys, "pyproject.toml", "1.5.0"); err != nil {
		t.Errorf("ValidateVersion failed for correct version: %v", err)
	}
	if err := manager.ValidateVersion(fsys, "pyproject.toml", "2.0.0"); err == nil {
		t.Error("Expected validation error for mismatched version, got nil")
	}
}

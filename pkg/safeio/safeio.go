package safeio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// CleanUserPath cleans a user-provided path and rejects traversal attempts.
// Returns paths with forward slashes for cross-platform consistency.
func CleanUserPath(p string) (string, error) {
	c := filepath.Clean(p)
	if strings.Contains(c, "..") {
		return "", errors.New("path traversal detected")
	}
	return filepath.ToSlash(c), nil
}

// ReadFile reads a manifest from fs.
func ReadFile(fs billy.Filesystem, path string) ([]byte, error) {
	return util.ReadFile(fs, path)
}

// Exists reports whether path exists in fs as a regular file.
func Exists(fs billy.Filesystem, path string) bool {
	st, err := fs.Stat(path)
	return err == nil && !st.IsDir()
}

// WriteFilePreservePerms writes data to path preserving existing file mode when possible.
// When the file does not exist, it uses a sane default of 0644.
func WriteFilePreservePerms(fs billy.Filesystem, path string, data []byte) error {
	var mode os.FileMode = 0o644
	if st, err := fs.Stat(path); err == nil {
		mode = st.Mode() & 0o777
		if mode == 0 {
			mode = 0o644
		}
	}
	return util.WriteFile(fs, path, data, mode)
}

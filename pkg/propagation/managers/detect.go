package managers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fulmenhq/ppackage/pkg/ignore"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// findFiles walks fsys and returns slash-separated paths accepted by match,
// shallowest first. Ignored paths are not visited.
func findFiles(fsys billy.Filesystem, match func(path string) bool) ([]string, error) {
	matcher, err := ignore.NewMatcher(fsys)
	if err != nil {
		return nil, err
	}

	var files []string
	err = util.Walk(fsys, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == "." {
				return filepath.SkipDir
			}
			return err
		}
		rel := filepath.ToSlash(path)
		if info.IsDir() {
			if rel != "." && matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !matcher.Match(rel, false) && match(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project: %w", err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		di, dj := strings.Count(files[i], "/"), strings.Count(files[j], "/")
		if di != dj {
			return di < dj
		}
		return files[i] < files[j]
	})
	return files, nil
}

// baseNameIs matches files by exact base name.
func baseNameIs(name string) func(string) bool {
	return func(path string) bool {
		return filepath.Base(path) == name
	}
}

// validate compares the extracted version with the expected one.
func validate(actual, expected string) error {
	if actual != expected {
		return fmt.Errorf("version mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

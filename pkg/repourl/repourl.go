// Package repourl normalizes repository URLs found in manifests and git
// remotes into browsable https form.
package repourl

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// git@host:group/project.git
	scpPattern = regexp.MustCompile(`^git@([^:]+):(.*)$`)
	// git+ssh://git@host/group/project.git
	gitSSHPattern = regexp.MustCompile(`^git\+ssh://git@([^/]+)/(.*)$`)
)

// ErrNoRepository is returned when a manifest declares no usable repository.
var ErrNoRepository = errors.New("no git repository declared")

// GitToHTTPS rewrites ssh-style git URLs to https. Other URLs are returned
// unchanged.
func GitToHTTPS(url string) string {
	if scpPattern.MatchString(url) {
		return scpPattern.ReplaceAllString(url, "https://$1/$2")
	}
	if gitSSHPattern.MatchString(url) {
		return gitSSHPattern.ReplaceAllString(url, "https://$1/$2")
	}
	return url
}

// FromPackageJSON extracts the repository URL of a package.json document.
// The object form must declare type "git"; the string shorthand is accepted
// as-is.
func FromPackageJSON(data []byte) (string, error) {
	var pkg struct {
		Repository json.RawMessage `json:"repository"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", fmt.Errorf("failed to parse package.json: %w", err)
	}
	if len(pkg.Repository) == 0 || string(pkg.Repository) == "null" {
		return "", ErrNoRepository
	}

	var short string
	if err := json.Unmarshal(pkg.Repository, &short); err == nil {
		if strings.TrimSpace(short) == "" {
			return "", ErrNoRepository
		}
		return short, nil
	}

	var repo struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(pkg.Repository, &repo); err != nil {
		return "", fmt.Errorf("failed to parse repository field: %w", err)
	}
	if repo.Type != "git" || repo.URL == "" {
		return "", ErrNoRepository
	}
	return repo.URL, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"
)

// FileName is the base name of the project configuration file. Viper resolves
// the extension (.yaml, .yml, .json).
const FileName = ".ppackage"

// EnvPrefix prefixes environment overrides, e.g. PPACKAGE_GIT_TAG_TEMPLATE.
const EnvPrefix = "PPACKAGE"

// Config holds all configuration for ppackage
type Config struct {
	Docker  DockerConfig  `mapstructure:"docker"`
	GitLab  GitLabConfig  `mapstructure:"gitlab"`
	Targets TargetsConfig `mapstructure:"targets"`
	Git     GitConfig     `mapstructure:"git"`
	Hooks   HooksConfig   `mapstructure:"hooks"`

	// Path is the configuration file that was read, if any.
	Path string `mapstructure:"-"`
}

// DockerConfig selects the Dockerfiles to stamp and the labels to write
type DockerConfig struct {
	Files        []string `mapstructure:"files"`
	VersionLabel string   `mapstructure:"version_label"`
	SourceLabel  string   `mapstructure:"source_label"`
}

// GitLabConfig locates the version key in a GitLab CI file
type GitLabConfig struct {
	File       string `mapstructure:"file"`
	VersionKey string `mapstructure:"version_key"`
}

// TargetsConfig restricts which manifests are touched
type TargetsConfig struct {
	Enabled []string `mapstructure:"enabled"` // manager names; empty means all
	Exclude []string `mapstructure:"exclude"` // doublestar patterns
}

// GitConfig drives commits, tags and release guards
type GitConfig struct {
	TagTemplate      string   `mapstructure:"tag_template"`
	CommitTemplate   string   `mapstructure:"commit_template"`
	AuthorName       string   `mapstructure:"author_name"`
	AuthorEmail      string   `mapstructure:"author_email"`
	RequiredBranches []string `mapstructure:"required_branches"`
	RequireClean     bool     `mapstructure:"require_clean"`
}

// HooksConfig toggles lifecycle hooks
type HooksConfig struct {
	NPMVersion bool `mapstructure:"npm_version"`
}

var defaultConfig = Config{
	Docker: DockerConfig{
		Files:        []string{"Dockerfile"},
		VersionLabel: "org.opencontainers.image.version",
		SourceLabel:  "org.opencontainers.image.source",
	},
	GitLab: GitLabConfig{
		File:       ".gitlab-ci.yml",
		VersionKey: ".version",
	},
	Targets: TargetsConfig{
		Enabled: []string{},
		Exclude: []string{},
	},
	Git: GitConfig{
		TagTemplate:      "v{{version}}",
		CommitTemplate:   "v{{version}}",
		RequiredBranches: []string{},
		RequireClean:     true,
	},
	Hooks: HooksConfig{
		NPMVersion: true,
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	c := defaultConfig
	c.Docker.Files = append([]string(nil), defaultConfig.Docker.Files...)
	c.Targets.Enabled = []string{}
	c.Targets.Exclude = []string{}
	c.Git.RequiredBranches = []string{}
	return &c
}

// Load reads configuration for the project rooted at root. Sources, lowest
// precedence first: defaults, $PPACKAGE_HOME/config or $HOME, the project
// root, PPACKAGE_* environment variables. A missing file is not an error; a
// file with unknown keys or mistyped values is.
func Load(root string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(FileName)
	v.AddConfigPath(root)
	if dir, err := GetConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if path := v.ConfigFileUsed(); path != "" {
		if err := ValidateFile(path); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.Path = v.ConfigFileUsed()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("docker.files", defaultConfig.Docker.Files)
	v.SetDefault("docker.version_label", defaultConfig.Docker.VersionLabel)
	v.SetDefault("docker.source_label", defaultConfig.Docker.SourceLabel)

	v.SetDefault("gitlab.file", defaultConfig.GitLab.File)
	v.SetDefault("gitlab.version_key", defaultConfig.GitLab.VersionKey)

	v.SetDefault("targets.enabled", defaultConfig.Targets.Enabled)
	v.SetDefault("targets.exclude", defaultConfig.Targets.Exclude)

	v.SetDefault("git.tag_template", defaultConfig.Git.TagTemplate)
	v.SetDefault("git.commit_template", defaultConfig.Git.CommitTemplate)
	v.SetDefault("git.author_name", "")
	v.SetDefault("git.author_email", "")
	v.SetDefault("git.required_branches", defaultConfig.Git.RequiredBranches)
	v.SetDefault("git.require_clean", defaultConfig.Git.RequireClean)

	v.SetDefault("hooks.npm_version", defaultConfig.Hooks.NPMVersion)
}

// Validate checks values that would otherwise fail late, mid-release.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Git.TagTemplate) == "" {
		return fmt.Errorf("git.tag_template must not be empty")
	}
	if strings.TrimSpace(c.Git.CommitTemplate) == "" {
		return fmt.Errorf("git.commit_template must not be empty")
	}
	if strings.TrimSpace(c.GitLab.VersionKey) == "" {
		return fmt.Errorf("gitlab.version_key must not be empty")
	}
	for _, p := range c.Targets.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("targets.exclude: invalid pattern %q", p)
		}
	}
	for _, p := range c.Docker.Files {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("docker.files: invalid pattern %q", p)
		}
	}
	for _, p := range c.Git.RequiredBranches {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("git.required_branches: invalid pattern %q: %w", p, err)
		}
	}
	return nil
}

// TargetEnabled reports whether the named manager may be used.
func (c *Config) TargetEnabled(name string) bool {
	if len(c.Targets.Enabled) == 0 {
		return true
	}
	for _, n := range c.Targets.Enabled {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// GetHome returns the ppackage home directory
func GetHome() (string, error) {
	if home := os.Getenv("PPACKAGE_HOME"); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".ppackage"), nil
}

// GetConfigDir returns the config directory under the ppackage home. Unlike
// the project root it is never created on demand.
func GetConfigDir() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config"), nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every home lookup at empty temp dirs.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PPACKAGE_HOME", t.TempDir())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []string{"Dockerfile"}, cfg.Docker.Files)
	assert.Equal(t, "org.opencontainers.image.version", cfg.Docker.VersionLabel)
	assert.Equal(t, "org.opencontainers.image.source", cfg.Docker.SourceLabel)
	assert.Equal(t, ".gitlab-ci.yml", cfg.GitLab.File)
	assert.Equal(t, ".version", cfg.GitLab.VersionKey)
	assert.Equal(t, "v{{version}}", cfg.Git.TagTemplate)
	assert.Equal(t, "v{{version}}", cfg.Git.CommitTemplate)
	assert.True(t, cfg.Git.RequireClean)
	assert.True(t, cfg.Hooks.NPMVersion)
	assert.Empty(t, cfg.Targets.Enabled)
	assert.Empty(t, cfg.Path)
}

func TestLoad_ProjectYAML(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, root, ".ppackage.yaml", `
docker:
  files: ["Dockerfile", "docker/*.Dockerfile"]
git:
  tag_template: "release-{{version}}"
  require_clean: false
  required_branches: ["main", "release/*"]
targets:
  enabled: [npm, docker]
  exclude: ["vendor/**"]
hooks:
  npm_version: false
`)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"Dockerfile", "docker/*.Dockerfile"}, cfg.Docker.Files)
	assert.Equal(t, "release-{{version}}", cfg.Git.TagTemplate)
	assert.Equal(t, "v{{version}}", cfg.Git.CommitTemplate)
	assert.False(t, cfg.Git.RequireClean)
	assert.Equal(t, []string{"main", "release/*"}, cfg.Git.RequiredBranches)
	assert.Equal(t, []string{"vendor/**"}, cfg.Targets.Exclude)
	assert.False(t, cfg.Hooks.NPMVersion)
	assert.Equal(t, filepath.Join(root, ".ppackage.yaml"), cfg.Path)
}

func TestLoad_ProjectJSON(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, root, ".ppackage.json", `{"gitlab": {"version_key": "APP_VERSION"}}`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "APP_VERSION", cfg.GitLab.VersionKey)
	assert.Equal(t, ".gitlab-ci.yml", cfg.GitLab.File)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, root, ".ppackage.yml", "git:\n  commit_template: \"chore: {{version}}\"\n")
	t.Setenv("PPACKAGE_GIT_COMMIT_TEMPLATE", "release {{version}}")
	t.Setenv("PPACKAGE_DOCKER_VERSION_LABEL", "version")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "release {{version}}", cfg.Git.CommitTemplate)
	assert.Equal(t, "version", cfg.Docker.VersionLabel)
}

func TestLoad_HomeConfigDir(t *testing.T) {
	isolate(t)
	home := t.TempDir()
	t.Setenv("PPACKAGE_HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "config"), 0o750))
	writeFile(t, filepath.Join(home, "config"), ".ppackage.yaml", "git:\n  author_name: Release Bot\n")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Release Bot", cfg.Git.AuthorName)
}

func TestLoad_MalformedFile(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, root, ".ppackage.yaml", "docker: [unterminated\n")

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config")
}

func TestLoad_InvalidPattern(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, root, ".ppackage.yaml", "targets:\n  exclude: [\"a/[b\"]\n")

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "targets.exclude")
}

func TestLoad_UnknownKeysRejected(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, root, ".ppackage.yaml", `
docker:
  version_lable: app.version
git:
  tag_templat: "release-{{version}}"
`)

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Contains(t, err.Error(), "version_lable")
	assert.Contains(t, err.Error(), "tag_templat")
}

func TestLoad_MistypedValueRejected(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeFile(t, root, ".ppackage.json", `{"git": {"require_clean": 3}}`)

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "require_clean")
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
		wantErr  string
	}{
		{"empty", map[string]interface{}{}, ""},
		{"schema reference", map[string]interface{}{"$schema": "https://example.com/ppackage.json"}, ""},
		{"known keys", map[string]interface{}{
			"docker": map[string]interface{}{"files": []interface{}{"Dockerfile"}},
			"hooks":  map[string]interface{}{"npm_version": false},
		}, ""},
		{"unknown section", map[string]interface{}{"dockr": map[string]interface{}{}}, "dockr"},
		{"empty template", map[string]interface{}{"git": map[string]interface{}{"tag_template": ""}}, "tag_template"},
		{"files not a list", map[string]interface{}{"docker": map[string]interface{}{"files": "Dockerfile"}}, "files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSettings(tt.settings)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"empty tag template", func(c *Config) { c.Git.TagTemplate = " " }, "git.tag_template"},
		{"empty commit template", func(c *Config) { c.Git.CommitTemplate = "" }, "git.commit_template"},
		{"empty gitlab key", func(c *Config) { c.GitLab.VersionKey = "" }, "gitlab.version_key"},
		{"bad docker glob", func(c *Config) { c.Docker.Files = []string{"["} }, "docker.files"},
		{"bad branch pattern", func(c *Config) { c.Git.RequiredBranches = []string{"rel/["} }, "git.required_branches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDefault_ReturnsCopy(t *testing.T) {
	a := Default()
	a.Docker.Files[0] = "changed"
	assert.Equal(t, []string{"Dockerfile"}, Default().Docker.Files)
}

func TestTargetEnabled(t *testing.T) {
	c := Default()
	assert.True(t, c.TargetEnabled("npm"))

	c.Targets.Enabled = []string{"NPM", "docker"}
	assert.True(t, c.TargetEnabled("npm"))
	assert.True(t, c.TargetEnabled("docker"))
	assert.False(t, c.TargetEnabled("maven"))
}

func TestGetHome(t *testing.T) {
	t.Setenv("PPACKAGE_HOME", "/opt/ppackage")
	home, err := GetHome()
	require.NoError(t, err)
	assert.Equal(t, "/opt/ppackage", home)

	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/opt/ppackage", "config"), dir)

	t.Setenv("PPACKAGE_HOME", "")
	t.Setenv("HOME", "/home/dev")
	home, err = GetHome()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/dev", ".ppackage"), home)
}

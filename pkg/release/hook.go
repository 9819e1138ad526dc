package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fulmenhq/ppackage/pkg/logger"
	"github.com/fulmenhq/ppackage/pkg/safeio"
)

// npmManifest is the package.json whose scripts.version hook is honored.
const npmManifest = "package.json"

var (
	now     = time.Now
	environ = os.Environ
)

// HookRunner runs a lifecycle script through a shell.
type HookRunner interface {
	Run(ctx context.Context, script string, env []string) error
}

// ShellHook runs scripts with `sh -c` in Dir, the way npm runs scripts.
type ShellHook struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes script with env appended to the current environment.
func (h *ShellHook) Run(ctx context.Context, script string, env []string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = h.Dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = h.Stdout
	cmd.Stderr = h.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("version hook %q: %w", script, err)
	}
	return nil
}

// npmLifecycle is the part of the environment npm sets for scripts.
type npmLifecycle struct {
	PackageVersion string `env:"npm_package_version"`
	LifecycleEvent string `env:"npm_lifecycle_event"`
}

// insideNPM reports whether we were started by an npm script, in which case
// npm runs the version hook itself.
func insideNPM(environment []string) (bool, error) {
	var lc npmLifecycle
	if err := env.ParseWithOptions(&lc, env.Options{Environment: env.ToMap(environment)}); err != nil {
		return false, fmt.Errorf("failed to read npm environment: %w", err)
	}
	return lc.PackageVersion != "", nil
}

// versionScript returns scripts.version from package.json, or "".
func (r *Releaser) versionScript() (string, error) {
	if !safeio.Exists(r.fs, npmManifest) {
		return "", nil
	}
	data, err := safeio.ReadFile(r.fs, npmManifest)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", npmManifest, err)
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", npmManifest, err)
	}
	return pkg.Scripts["version"], nil
}

// runVersionHook runs package.json scripts.version with npm_package_version
// set to version. It reports whether the hook ran.
func (r *Releaser) runVersionHook(ctx context.Context, version string) (bool, error) {
	if !r.cfg.Hooks.NPMVersion || r.hook == nil {
		return false, nil
	}
	if !r.cfg.TargetEnabled("npm") {
		return false, nil
	}

	script, err := r.versionScript()
	if err != nil || script == "" {
		return false, err
	}

	inside, err := insideNPM(r.getenv())
	if err != nil {
		return false, err
	}
	if inside {
		logger.Debug("Version hook left to npm", logger.String("script", script))
		return false, nil
	}

	logger.Info("Running version hook", logger.String("script", script))
	if err := r.hook.Run(ctx, script, []string{"npm_package_version=" + version}); err != nil {
		return false, err
	}
	return true, nil
}

package managers

import (
	"github.com/fulmenhq/ppackage/pkg/config"
	"github.com/fulmenhq/ppackage/pkg/propagation"
)

// NewRegistry registers every manager in priority order: the first manifest
// with a version decides the current version.
func NewRegistry(cfg *config.Config) *propagation.Registry {
	r := propagation.NewRegistry()
	r.Register(NewNPMManager())
	r.Register(NewComposerManager())
	r.Register(NewPythonManager())
	r.Register(NewMavenManager())
	r.Register(NewDockerManager(cfg.Docker.Files, cfg.Docker.VersionLabel))
	r.Register(NewGitLabManager(cfg.GitLab.File, cfg.GitLab.VersionKey))
	return r
}

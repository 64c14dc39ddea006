package wheelcache

import (
	"path/filepath"

	"github.com/imdario/mergo"
	"golang.org/x/xerrors"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
)

const (
	// RecipeFilename is the name of the recipe descriptor within a package directory
	RecipeFilename = "meta.yaml"

	// distDirName is where a package build leaves its wheels
	distDirName = "dist"

	// markerRelPath is the presence marker of library packages, relative to the package directory.
	// The external rebuild check treats a library as built if this file is newer than its inputs.
	markerRelPath = "build/.packaged"
)

// Config carries every location the fingerprinting and cache stages work with.
// Nothing in this package falls back to the process working directory on its own.
type Config struct {
	// BaseDir is the root of the repository all other defaults are relative to
	BaseDir string
	// PackagesDir contains one directory per package recipe
	PackagesDir string

	// ToolchainDir is the checkout of the pinned build toolchain
	ToolchainDir string
	// ProjectConfigFile is the project configuration we extract single toolchain lines from
	ProjectConfigFile string
	// EnvironmentFile is the environment specification folded in full
	EnvironmentFile string
	// ConstraintsFile contains the pinned constraints folded in full
	ConstraintsFile string
	// PlatformVersionCommand prints the target platform version
	PlatformVersionCommand []string

	// Strict turns sentinel substitutions (unknown toolchain revision, missing patch files)
	// into errors instead of warnings
	Strict bool
}

// DefaultConfig returns the default layout of a repository rooted at base
func DefaultConfig(base string) Config {
	return Config{
		BaseDir:                base,
		PackagesDir:            filepath.Join(base, "packages"),
		ToolchainDir:           filepath.Join(base, "pyodide-build"),
		ProjectConfigFile:      filepath.Join(base, "pyproject.toml"),
		EnvironmentFile:        filepath.Join(base, "environment.yml"),
		ConstraintsFile:        filepath.Join(base, "tools", "constraints.txt"),
		PlatformVersionCommand: []string{"pyodide", "config", "get", "emscripten_version"},
	}
}

// Complete fills all unset fields from the default layout of BaseDir
func (c *Config) Complete() error {
	if c.BaseDir == "" {
		c.BaseDir = "."
	}
	base, err := filepath.Abs(c.BaseDir)
	if err != nil {
		return xerrors.Errorf("cannot resolve base directory: %w", err)
	}
	c.BaseDir = base

	err = mergo.Merge(c, DefaultConfig(base))
	if err != nil {
		return xerrors.Errorf("cannot complete configuration: %w", err)
	}
	return nil
}

// RecipeDir returns the recipe directory of a package
func (c *Config) RecipeDir(name string) string {
	return filepath.Join(c.PackagesDir, name)
}

// DistDir returns the directory a package build leaves its artifacts in
func (c *Config) DistDir(name string) string {
	return filepath.Join(c.PackagesDir, name, distDirName)
}

// MarkerPath returns the presence marker location of a library package
func (c *Config) MarkerPath(name string) string {
	return filepath.Join(c.PackagesDir, name, filepath.FromSlash(markerRelPath))
}

// SharedTreeDir returns the auxiliary artifact tree shared by multiple packages
func (c *Config) SharedTreeDir() string {
	return filepath.Join(c.PackagesDir, cache.SharedTreeName)
}

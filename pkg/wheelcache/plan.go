package wheelcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// BuildPlan is handed from the planning stage to the restore and save stages.
// The cache manifest has the same shape and records the plan of the run which filled the cache.
type BuildPlan struct {
	ToolchainHash string `json:"toolchain_hash"`
	// Fingerprints maps package names to their fingerprint
	Fingerprints map[string]string `json:"fingerprints"`
	// CrossBuildPackages are rebuilt on every run, sorted
	CrossBuildPackages []string `json:"cross_build_packages"`
	// LibraryPackages are tracked through a presence marker rather than artifacts, sorted
	LibraryPackages []string `json:"library_packages"`

	crossBuild map[string]struct{}
	libraries  map[string]struct{}
}

func (p *BuildPlan) index() {
	if p.Fingerprints == nil {
		p.Fingerprints = make(map[string]string)
	}
	if p.CrossBuildPackages == nil {
		p.CrossBuildPackages = []string{}
	}
	if p.LibraryPackages == nil {
		p.LibraryPackages = []string{}
	}
	sort.Strings(p.CrossBuildPackages)
	sort.Strings(p.LibraryPackages)

	p.crossBuild = make(map[string]struct{}, len(p.CrossBuildPackages))
	for _, n := range p.CrossBuildPackages {
		p.crossBuild[n] = struct{}{}
	}
	p.libraries = make(map[string]struct{}, len(p.LibraryPackages))
	for _, n := range p.LibraryPackages {
		p.libraries[n] = struct{}{}
	}
}

// IsAlwaysRebuild returns true if the package must never be restored from cache
func (p *BuildPlan) IsAlwaysRebuild(name string) bool {
	if p.crossBuild == nil {
		p.index()
	}
	_, ok := p.crossBuild[name]
	return ok
}

// IsLibrary returns true if the package is tracked through a presence marker
func (p *BuildPlan) IsLibrary(name string) bool {
	if p.libraries == nil {
		p.index()
	}
	_, ok := p.libraries[name]
	return ok
}

// Packages returns the names of all packages of the plan, sorted
func (p *BuildPlan) Packages() []string {
	res := make([]string, 0, len(p.Fingerprints))
	for n := range p.Fingerprints {
		res = append(res, n)
	}
	sort.Strings(res)
	return res
}

// Marshal serialises the plan as indented JSON with a trailing newline
func (p *BuildPlan) Marshal() ([]byte, error) {
	p.index()
	fc, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(fc, '\n'), nil
}

// Write atomically writes the plan to fn
func (p *BuildPlan) Write(fn string) error {
	fc, err := p.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(fn); dir != "" {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return err
		}
	}
	err = renameio.WriteFile(fn, fc, 0644)
	if err != nil {
		return xerrors.Errorf("cannot write build plan: %w", err)
	}
	return nil
}

// ParseBuildPlan parses a serialised build plan or cache manifest
func ParseBuildPlan(data []byte) (*BuildPlan, error) {
	var res BuildPlan
	err := json.Unmarshal(data, &res)
	if err != nil {
		return nil, xerrors.Errorf("cannot parse build plan: %w", err)
	}
	res.index()
	return &res, nil
}

// LoadBuildPlan reads a build plan from fn. If fn does not exist the returned error wraps os.ErrNotExist.
func LoadBuildPlan(fn string) (*BuildPlan, error) {
	fc, err := os.ReadFile(fn)
	if err != nil {
		return nil, xerrors.Errorf("cannot read build plan %s: %w", fn, err)
	}
	return ParseBuildPlan(fc)
}

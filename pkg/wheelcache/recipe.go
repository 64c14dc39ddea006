package wheelcache

import (
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// BuildKind describes what a package build produces
type BuildKind string

const (
	// KindPackage is an ordinary package producing wheels
	KindPackage BuildKind = "package"
	// KindStaticLibrary produces a static library into the shared tree
	KindStaticLibrary BuildKind = "static_library"
	// KindSharedLibrary produces a shared library into the shared tree
	KindSharedLibrary BuildKind = "shared_library"
	// KindCPythonModule is a module of the embedded interpreter
	KindCPythonModule BuildKind = "cpython_module"
)

// UnmarshalYAML unmarshals a build kind. An absent kind is an ordinary package.
func (k *BuildKind) UnmarshalYAML(unmarshal func(interface{}) error) (err error) {
	var val string
	err = unmarshal(&val)
	if err != nil {
		return
	}

	*k = BuildKind(val)
	if *k == "" {
		*k = KindPackage
	}
	return
}

// Known returns true for the build kinds we know the outputs of
func (k BuildKind) Known() bool {
	switch k {
	case KindPackage, KindStaticLibrary, KindSharedLibrary, KindCPythonModule:
		return true
	default:
		return false
	}
}

// IsLibrary returns true for kinds which produce no wheel but side effects in the shared tree
func (k BuildKind) IsLibrary() bool {
	return k == KindStaticLibrary || k == KindSharedLibrary
}

// Extra is an auxiliary file copied into the source tree. In the recipe it is either
// a plain path or a [src, dst] pair.
type Extra struct {
	Src string
	Dst string
}

// UnmarshalYAML unmarshals both extra forms
func (e *Extra) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var pair []string
	if err := unmarshal(&pair); err == nil {
		if len(pair) == 0 {
			return xerrors.Errorf("extra must not be empty")
		}
		e.Src = pair[0]
		if len(pair) > 1 {
			e.Dst = pair[1]
		}
		return nil
	}

	var src string
	if err := unmarshal(&src); err != nil {
		return xerrors.Errorf("extra must be a path or a [src, dst] pair: %w", err)
	}
	e.Src = src
	return nil
}

// Source describes where the sources of a package come from
type Source struct {
	URL     string   `yaml:"url"`
	SHA256  string   `yaml:"sha256"`
	Path    string   `yaml:"path"`
	Patches []string `yaml:"patches"`
	Extras  []Extra  `yaml:"extras"`
}

type recipeInternal struct {
	Source       Source `yaml:"source"`
	Requirements struct {
		Host []string `yaml:"host"`
	} `yaml:"requirements"`
	Build struct {
		Type          BuildKind `yaml:"type"`
		CrossBuildEnv bool      `yaml:"cross-build-env"`
	} `yaml:"build"`
}

// Recipe is the descriptor of a single package
type Recipe struct {
	// Name is the name of the recipe directory
	Name string
	// Dir is the absolute recipe directory
	Dir string
	// Definition is the raw descriptor content
	Definition []byte

	Source           Source
	HostDependencies []string
	Kind             BuildKind
	// AlwaysRebuild marks packages with host environment side effects
	AlwaysRebuild bool
}

// errEmptyRecipe is returned for descriptors without any content
var errEmptyRecipe = xerrors.Errorf("empty %s", RecipeFilename)

// ParseRecipe parses a recipe descriptor
func ParseRecipe(name, dir string, definition []byte) (*Recipe, error) {
	var doc yaml.Node
	err := yaml.Unmarshal(definition, &doc)
	if err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Tag == "!!null" {
		return nil, errEmptyRecipe
	}

	var ri recipeInternal
	err = doc.Decode(&ri)
	if err != nil {
		return nil, err
	}
	if ri.Build.Type == "" {
		ri.Build.Type = KindPackage
	}
	if !ri.Build.Type.Known() {
		log.WithField("package", name).WithField("type", ri.Build.Type).Warn("unknown build type, treating package as ordinary package")
	}

	return &Recipe{
		Name:             name,
		Dir:              dir,
		Definition:       definition,
		Source:           ri.Source,
		HostDependencies: ri.Requirements.Host,
		Kind:             ri.Build.Type,
		AlwaysRebuild:    ri.Build.CrossBuildEnv,
	}, nil
}

// LoadRecipes loads the descriptor of every package in cfg.PackagesDir, keyed by name.
// Empty or unparsable descriptors are skipped with a warning, or fail the load in strict mode.
func LoadRecipes(cfg *Config) (map[string]*Recipe, error) {
	if _, err := os.Stat(cfg.PackagesDir); err != nil {
		return nil, xerrors.Errorf("cannot read packages directory: %w", err)
	}
	fns, err := filepath.Glob(filepath.Join(cfg.PackagesDir, "*", RecipeFilename))
	if err != nil {
		return nil, err
	}
	sort.Strings(fns)

	res := make(map[string]*Recipe, len(fns))
	for _, fn := range fns {
		dir := filepath.Dir(fn)
		name := filepath.Base(dir)

		fc, err := os.ReadFile(fn)
		if err != nil {
			return nil, xerrors.Errorf("cannot read recipe %s: %w", name, err)
		}

		recipe, err := ParseRecipe(name, dir, fc)
		if err != nil {
			if cfg.Strict {
				return nil, xerrors.Errorf("cannot load recipe %s: %w", name, err)
			}
			log.WithError(err).WithField("package", name).Warn("skipping recipe")
			continue
		}
		res[name] = recipe
	}
	return res, nil
}

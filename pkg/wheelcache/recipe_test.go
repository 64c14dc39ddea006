package wheelcache

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestParseRecipe(t *testing.T) {
	tests := []struct {
		Name        string
		Definition  string
		Expectation *Recipe
		Error       bool
	}{
		{
			Name: "ordinary package",
			Definition: `package:
  name: numpy
  version: 2.0.2
source:
  url: https://files.example.com/numpy-2.0.2.tar.gz
  sha256: 015c6b11
  patches:
    - patches/0001-fix.patch
  extras:
    - extras/setup.cfg
    - [extras/site.cfg, site.cfg]
requirements:
  host:
    - openblas
`,
			Expectation: &Recipe{
				Name: "numpy",
				Source: Source{
					URL:     "https://files.example.com/numpy-2.0.2.tar.gz",
					SHA256:  "015c6b11",
					Patches: []string{"patches/0001-fix.patch"},
					Extras: []Extra{
						{Src: "extras/setup.cfg"},
						{Src: "extras/site.cfg", Dst: "site.cfg"},
					},
				},
				HostDependencies: []string{"openblas"},
				Kind:             KindPackage,
			},
		},
		{
			Name: "shared library",
			Definition: `source:
  path: src
build:
  type: shared_library
`,
			Expectation: &Recipe{
				Name:   "libfoo",
				Source: Source{Path: "src"},
				Kind:   KindSharedLibrary,
			},
		},
		{
			Name: "cross build env",
			Definition: `build:
  type: package
  cross-build-env: true
`,
			Expectation: &Recipe{
				Name:          "setuptools",
				Kind:          KindPackage,
				AlwaysRebuild: true,
			},
		},
		{
			Name:       "unknown build type",
			Definition: "build:\n  type: emscripten_module\n",
			Expectation: &Recipe{
				Name: "wasm",
				Kind: BuildKind("emscripten_module"),
			},
		},
		{
			Name:       "only comments",
			Definition: "# nothing to see here\n",
			Error:      true,
		},
		{
			Name:       "malformed yaml",
			Definition: "source: [\n",
			Error:      true,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			var name string
			if test.Expectation != nil {
				name = test.Expectation.Name
			}
			act, err := ParseRecipe(name, "/packages/"+name, []byte(test.Definition))
			if test.Error {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			test.Expectation.Dir = "/packages/" + name
			test.Expectation.Definition = []byte(test.Definition)
			if diff := cmp.Diff(test.Expectation, act, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ParseRecipe() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildKindIsLibrary(t *testing.T) {
	require.True(t, KindStaticLibrary.IsLibrary())
	require.True(t, KindSharedLibrary.IsLibrary())
	require.False(t, KindPackage.IsLibrary())
	require.False(t, KindCPythonModule.IsLibrary())
	require.False(t, BuildKind("emscripten_module").IsLibrary())

	require.True(t, KindCPythonModule.Known())
	require.False(t, BuildKind("emscripten_module").Known())
}

func TestLoadRecipes(t *testing.T) {
	cfg := newTestConfig(t)
	writeRecipes(t, cfg, map[string]string{
		"a":     "package:\n  name: a\n",
		"b":     "requirements:\n  host: [a]\n",
		"empty": "",
		"wasm":  "build:\n  type: emscripten_module\n",
	})
	writeFile(t, cfg.RecipeDir("no-recipe")+"/README.md", "not a package")

	recipes, err := LoadRecipes(cfg)
	require.NoError(t, err)
	require.Len(t, recipes, 3)
	require.Contains(t, recipes, "a")
	require.Equal(t, BuildKind("emscripten_module"), recipes["wasm"].Kind)
	require.Equal(t, []string{"a"}, recipes["b"].HostDependencies)
	require.Equal(t, cfg.RecipeDir("b"), recipes["b"].Dir)

	cfg.Strict = true
	_, err = LoadRecipes(cfg)
	require.Error(t, err)
}

func TestLoadRecipesMissingPackagesDir(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.PackagesDir = cfg.PackagesDir + "-missing"

	_, err := LoadRecipes(cfg)
	require.Error(t, err)
}

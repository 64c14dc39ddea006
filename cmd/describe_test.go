package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache"
)

func TestNewPackageDescription(t *testing.T) {
	ws := &wheelcache.Workspace{
		Recipes: map[string]*wheelcache.Recipe{
			"numpy": {
				Name: "numpy",
				Kind: wheelcache.KindPackage,
				Source: wheelcache.Source{
					URL:    "https://example.com/numpy.tar.gz",
					Extras: []wheelcache.Extra{{Src: "extras/site.cfg", Dst: "site.cfg"}},
				},
			},
			"openblas": {Name: "openblas", Kind: wheelcache.KindSharedLibrary},
		},
		Graph: wheelcache.Graph{
			"numpy":    {"openblas": {}},
			"openblas": {},
		},
		ToolchainHash: "tc",
		RecipeHashes:  map[string]string{"numpy": "rh-numpy"},
		Fingerprints:  map[string]string{"numpy": "fp-numpy", "openblas": "fp-openblas"},
	}

	act, err := newPackageDescription(ws, "numpy")
	require.NoError(t, err)
	expectation := packageDescription{
		Name: "numpy",
		Kind: wheelcache.KindPackage,
		Source: sourceDescription{
			URL:    "https://example.com/numpy.tar.gz",
			Extras: []string{"extras/site.cfg"},
		},
		ToolchainHash: "tc",
		RecipeHash:    "rh-numpy",
		Fingerprint:   "fp-numpy",
		Dependencies:  []dependencyDescription{{Name: "openblas", Fingerprint: "fp-openblas"}},
	}
	if diff := cmp.Diff(expectation, act); diff != "" {
		t.Errorf("newPackageDescription() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewPackageDescriptionInTreeFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "setup.py"), []byte("setup()"), 0644))

	ws := &wheelcache.Workspace{
		Recipes: map[string]*wheelcache.Recipe{
			"local": {Name: "local", Dir: dir, Kind: wheelcache.KindPackage, Source: wheelcache.Source{Path: "src"}},
		},
		Graph: wheelcache.Graph{"local": {}},
	}

	act, err := newPackageDescription(ws, "local")
	require.NoError(t, err)
	require.Len(t, act.Source.Files, 1)
	require.True(t, strings.HasPrefix(act.Source.Files[0], "setup.py:"), act.Source.Files[0])
}

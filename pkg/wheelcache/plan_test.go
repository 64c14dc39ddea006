package wheelcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestBuildPlanWrite(t *testing.T) {
	plan := &BuildPlan{
		ToolchainHash:      "tc",
		Fingerprints:       map[string]string{"zlib": "2", "numpy": "1"},
		CrossBuildPackages: []string{"setuptools", "cffi"},
	}
	fn := filepath.Join(t.TempDir(), "out", "build-plan.json")
	require.NoError(t, plan.Write(fn))

	fc, err := os.ReadFile(fn)
	require.NoError(t, err)
	expectation := `{
  "toolchain_hash": "tc",
  "fingerprints": {
    "numpy": "1",
    "zlib": "2"
  },
  "cross_build_packages": [
    "cffi",
    "setuptools"
  ],
  "library_packages": []
}
`
	if diff := cmp.Diff(expectation, string(fc)); diff != "" {
		t.Errorf("Write() mismatch (-want +got):\n%s", diff)
	}

	loaded, err := LoadBuildPlan(fn)
	require.NoError(t, err)
	if diff := cmp.Diff(plan, loaded, cmpopts.IgnoreUnexported(BuildPlan{})); diff != "" {
		t.Errorf("LoadBuildPlan() mismatch (-want +got):\n%s", diff)
	}
	require.True(t, loaded.IsAlwaysRebuild("cffi"))
	require.False(t, loaded.IsAlwaysRebuild("numpy"))
	require.False(t, loaded.IsLibrary("zlib"))
}

func TestLoadBuildPlanMissing(t *testing.T) {
	_, err := LoadBuildPlan(filepath.Join(t.TempDir(), "build-plan.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseBuildPlanWithoutLists(t *testing.T) {
	plan, err := ParseBuildPlan([]byte(`{"toolchain_hash": "tc", "fingerprints": {"a": "1"}}`))
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, plan.Packages())
	require.Empty(t, plan.CrossBuildPackages)
	require.False(t, plan.IsLibrary("a"))
}

func TestComputeBuildPlan(t *testing.T) {
	cfg := newTestConfig(t)
	writeRecipes(t, cfg, map[string]string{
		"libz":       "build:\n  type: static_library\n",
		"openssl":    "build:\n  type: shared_library\n",
		"setuptools": "build:\n  cross-build-env: true\n",
		"zlib-py":    "requirements:\n  host: [libz]\n",
		"_ssl":       "build:\n  type: cpython_module\nrequirements:\n  host: [openssl]\n",
	})

	plan, err := ComputeBuildPlan(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"_ssl", "libz", "openssl", "setuptools", "zlib-py"}, plan.Packages())
	require.Equal(t, []string{"setuptools"}, plan.CrossBuildPackages)
	require.Equal(t, []string{"libz", "openssl"}, plan.LibraryPackages)
	require.Equal(t, sha("pyodide-build-commit:unknown"+"emscripten:unknown"), plan.ToolchainHash)
}

func TestComputeBuildPlanCycle(t *testing.T) {
	cfg := newTestConfig(t)
	writeRecipes(t, cfg, map[string]string{
		"A": "requirements:\n  host: [B]\n",
		"B": "requirements:\n  host: [A]\n",
		"C": "package:\n  name: C\n",
	})

	plan, err := ComputeBuildPlan(context.Background(), cfg)
	require.Nil(t, plan)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, []string{"A", "B", "A"}, cerr.Cycle)
}

package wheelcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sha(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestComputeFingerprintsConcreteScenario(t *testing.T) {
	const toolchain = "tc"
	graph := Graph{
		"A": {},
		"B": {"A": {}},
		"C": {},
	}
	hashes := map[string]string{
		"A": sha("X"),
		"B": sha("Y"),
		"C": sha("W"),
	}

	act, err := ComputeFingerprints(graph, hashes, toolchain)
	require.NoError(t, err)

	fpA := sha("toolchain:" + toolchain + "recipe:" + sha("X"))
	fpB := sha("toolchain:" + toolchain + "recipe:" + sha("Y") + "dep:A:" + fpA)
	fpC := sha("toolchain:" + toolchain + "recipe:" + sha("W"))
	expectation := map[string]string{"A": fpA, "B": fpB, "C": fpC}
	if diff := cmp.Diff(expectation, act); diff != "" {
		t.Errorf("ComputeFingerprints() mismatch (-want +got):\n%s", diff)
	}

	hashes["A"] = sha("Z")
	changed, err := ComputeFingerprints(graph, hashes, toolchain)
	require.NoError(t, err)
	require.NotEqual(t, act["A"], changed["A"])
	require.NotEqual(t, act["B"], changed["B"])
	require.Equal(t, act["C"], changed["C"])
}

func TestComputeFingerprintsDependencyOrder(t *testing.T) {
	hashes := map[string]string{"a": "1", "b": "2", "c": "3"}

	g1 := BuildGraph(map[string]*Recipe{
		"a": {Name: "a"},
		"b": {Name: "b"},
		"c": {Name: "c", HostDependencies: []string{"a", "b"}},
	})
	g2 := BuildGraph(map[string]*Recipe{
		"a": {Name: "a"},
		"b": {Name: "b"},
		"c": {Name: "c", HostDependencies: []string{"b", "a", "b"}},
	})

	fp1, err := ComputeFingerprints(g1, hashes, "tc")
	require.NoError(t, err)
	fp2, err := ComputeFingerprints(g2, hashes, "tc")
	require.NoError(t, err)
	if diff := cmp.Diff(fp1, fp2); diff != "" {
		t.Errorf("ComputeFingerprints() mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeFingerprintsCoversIntersection(t *testing.T) {
	graph := Graph{"a": {}, "b": {"a": {}}}
	act, err := ComputeFingerprints(graph, map[string]string{"b": "2", "z": "26"}, "tc")
	require.NoError(t, err)

	require.Len(t, act, 1)
	require.Equal(t, sha("toolchain:tcrecipe:2"), act["b"])
}

func TestComputeFingerprintsCycle(t *testing.T) {
	graph := Graph{"A": {"B": {}}, "B": {"A": {}}}
	act, err := ComputeFingerprints(graph, map[string]string{"A": "1", "B": "2"}, "tc")
	require.Nil(t, act)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadWorkspacePropagation(t *testing.T) {
	cfg := newTestConfig(t)
	writeRecipes(t, cfg, map[string]string{
		"a": "package:\n  name: a\n",
		"b": "package:\n  name: b\nrequirements:\n  host:\n    - a\n    - numpy-from-index\n",
		"c": "package:\n  name: c\n",
	})

	first, err := LoadWorkspace(context.Background(), cfg)
	require.NoError(t, err)
	again, err := LoadWorkspace(context.Background(), cfg)
	require.NoError(t, err)
	if diff := cmp.Diff(first.Fingerprints, again.Fingerprints); diff != "" {
		t.Fatalf("fingerprints are not deterministic (-want +got):\n%s", diff)
	}

	err = os.WriteFile(filepath.Join(cfg.RecipeDir("a"), RecipeFilename), []byte("package:\n  name: a \n"), 0644)
	require.NoError(t, err)

	changed, err := LoadWorkspace(context.Background(), cfg)
	require.NoError(t, err)
	require.NotEqual(t, first.Fingerprints["a"], changed.Fingerprints["a"])
	require.NotEqual(t, first.Fingerprints["b"], changed.Fingerprints["b"])
	require.Equal(t, first.Fingerprints["c"], changed.Fingerprints["c"])
}

func TestLoadWorkspaceUnknownBuildTypePropagation(t *testing.T) {
	cfg := newTestConfig(t)
	writeRecipes(t, cfg, map[string]string{
		"a": "build:\n  type: emscripten_module\n",
		"b": "requirements:\n  host:\n    - a\n",
	})

	first, err := LoadWorkspace(context.Background(), cfg)
	require.NoError(t, err)
	require.Contains(t, first.Fingerprints, "a")
	require.Equal(t, []string{"a"}, first.Graph.Dependencies("b"))

	plan := first.BuildPlan()
	require.NotContains(t, plan.LibraryPackages, "a")

	err = os.WriteFile(filepath.Join(cfg.RecipeDir("a"), RecipeFilename), []byte("build:\n  type: emscripten_module\n# bumped\n"), 0644)
	require.NoError(t, err)

	changed, err := LoadWorkspace(context.Background(), cfg)
	require.NoError(t, err)
	require.NotEqual(t, first.Fingerprints["a"], changed.Fingerprints["a"])
	require.NotEqual(t, first.Fingerprints["b"], changed.Fingerprints["b"])
}

package wheelcache

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph(t *testing.T) {
	recipes := map[string]*Recipe{
		"numpy":    {Name: "numpy", HostDependencies: []string{"openblas", "setuptools"}},
		"openblas": {Name: "openblas"},
		"scipy":    {Name: "scipy", HostDependencies: []string{"numpy", "openblas", "numpy"}},
	}

	act := BuildGraph(recipes)
	expectation := Graph{
		"numpy":    {"openblas": {}},
		"openblas": {},
		"scipy":    {"numpy": {}, "openblas": {}},
	}
	if diff := cmp.Diff(expectation, act); diff != "" {
		t.Errorf("BuildGraph() mismatch (-want +got):\n%s", diff)
	}
}

func TestTopologicalOrder(t *testing.T) {
	tests := []struct {
		Name        string
		Graph       Graph
		Expectation []string
		Cycle       []string
	}{
		{
			Name:        "empty",
			Graph:       Graph{},
			Expectation: []string{},
		},
		{
			Name:        "independent packages",
			Graph:       Graph{"c": {}, "a": {}, "b": {}},
			Expectation: []string{"a", "b", "c"},
		},
		{
			Name: "chain",
			Graph: Graph{
				"a": {"b": {}},
				"b": {"c": {}},
				"c": {},
			},
			Expectation: []string{"c", "b", "a"},
		},
		{
			Name: "diamond",
			Graph: Graph{
				"app":   {"left": {}, "right": {}},
				"left":  {"base": {}},
				"right": {"base": {}},
				"base":  {},
			},
			Expectation: []string{"base", "left", "right", "app"},
		},
		{
			Name:  "self dependency",
			Graph: Graph{"a": {"a": {}}},
			Cycle: []string{"a", "a"},
		},
		{
			Name:  "two package cycle",
			Graph: Graph{"A": {"B": {}}, "B": {"A": {}}},
			Cycle: []string{"A", "B", "A"},
		},
		{
			Name: "cycle behind an acyclic prefix",
			Graph: Graph{
				"a": {"b": {}},
				"b": {"c": {}},
				"c": {"d": {}},
				"d": {"b": {}},
			},
			Cycle: []string{"b", "c", "d", "b"},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			act, err := test.Graph.TopologicalOrder()
			if test.Cycle != nil {
				var cerr *CycleError
				require.ErrorAs(t, err, &cerr)
				if diff := cmp.Diff(test.Cycle, cerr.Cycle); diff != "" {
					t.Errorf("cycle mismatch (-want +got):\n%s", diff)
				}
				require.Nil(t, act)
				return
			}

			require.NoError(t, err)
			if diff := cmp.Diff(test.Expectation, act); diff != "" {
				t.Errorf("TopologicalOrder() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCycleErrorMessage(t *testing.T) {
	err := Graph{"A": {"B": {}}, "B": {"A": {}}}.Validate()
	require.EqualError(t, err, "dependency cycle detected: A -> B -> A")
}

func TestDependants(t *testing.T) {
	g := Graph{
		"openblas": {},
		"numpy":    {"openblas": {}},
		"scipy":    {"numpy": {}, "openblas": {}},
		"pandas":   {"numpy": {}},
		"zlib":     {},
	}

	tests := []struct {
		Name        string
		Package     string
		Transitive  bool
		Expectation []string
	}{
		{Name: "direct", Package: "openblas", Expectation: []string{"numpy", "scipy"}},
		{Name: "transitive", Package: "openblas", Transitive: true, Expectation: []string{"numpy", "pandas", "scipy"}},
		{Name: "leaf", Package: "pandas", Transitive: true, Expectation: []string{}},
		{Name: "unknown", Package: "cffi", Expectation: []string{}},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			act := g.Dependants(test.Package, test.Transitive)
			if diff := cmp.Diff(test.Expectation, act); diff != "" {
				t.Errorf("Dependants() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

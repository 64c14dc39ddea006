package wheelcache

import (
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Graph maps a package name to the names of its host dependencies.
// Only packages of the known recipe set appear, as keys or as dependencies.
type Graph map[string]map[string]struct{}

// CycleError is returned when the host dependency graph is not acyclic
type CycleError struct {
	// Cycle lists the members of the cycle, starting and ending with the same package
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// BuildGraph builds the host dependency graph of the recipes.
// Dependencies which are not part of the recipe set are resolved elsewhere and do not
// participate in fingerprint propagation, hence are dropped.
func BuildGraph(recipes map[string]*Recipe) Graph {
	res := make(Graph, len(recipes))
	for name, recipe := range recipes {
		deps := make(map[string]struct{}, len(recipe.HostDependencies))
		for _, dep := range recipe.HostDependencies {
			if _, known := recipes[dep]; !known {
				log.WithField("package", name).WithField("dependency", dep).Debug("dropping unknown host dependency")
				continue
			}
			deps[dep] = struct{}{}
		}
		res[name] = deps
	}
	return res
}

// Dependencies returns the direct dependencies of a package, sorted by name
func (g Graph) Dependencies(name string) []string {
	res := make([]string, 0, len(g[name]))
	for dep := range g[name] {
		res = append(res, dep)
	}
	sort.Strings(res)
	return res
}

// Names returns all packages of the graph, sorted by name
func (g Graph) Names() []string {
	res := make([]string, 0, len(g))
	for name := range g {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Dependants returns the packages which depend on name, sorted by name.
// With transitive set, packages depending on name indirectly are included, too,
// which yields every package whose fingerprint changes when name changes.
func (g Graph) Dependants(name string, transitive bool) []string {
	seen := make(map[string]struct{})
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, pkg := range g.Names() {
			if _, ok := g[pkg][cur]; !ok {
				continue
			}
			if _, ok := seen[pkg]; ok {
				continue
			}
			seen[pkg] = struct{}{}
			if transitive {
				queue = append(queue, pkg)
			}
		}
	}

	res := make([]string, 0, len(seen))
	for pkg := range seen {
		res = append(res, pkg)
	}
	sort.Strings(res)
	return res
}

type visitState int

const (
	unvisited visitState = iota
	inProgress
	done
)

// TopologicalOrder returns all packages such that every package comes after its dependencies.
// Packages are visited in name order which makes the result deterministic.
// If the graph contains a cycle a *CycleError is returned.
func (g Graph) TopologicalOrder() ([]string, error) {
	var (
		state = make(map[string]visitState, len(g))
		path  []string
		res   = make([]string, 0, len(g))
		visit func(name string) error
	)
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case inProgress:
			var start int
			for i, p := range path {
				if p == name {
					start = i
					break
				}
			}
			cycle := append([]string(nil), path[start:]...)
			return &CycleError{Cycle: append(cycle, name)}
		}

		state[name] = inProgress
		path = append(path, name)
		for _, dep := range g.Dependencies(name) {
			err := visit(dep)
			if err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		res = append(res, name)
		return nil
	}

	for _, name := range g.Names() {
		err := visit(name)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Validate returns a *CycleError if the graph is not acyclic
func (g Graph) Validate() error {
	_, err := g.TopologicalOrder()
	return err
}

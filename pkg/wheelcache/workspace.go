package wheelcache

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// Workspace is the fully analysed package tree of one invocation.
// It is computed once by LoadWorkspace and must not be modified afterwards.
type Workspace struct {
	Config *Config

	Recipes       map[string]*Recipe
	Graph         Graph
	ToolchainHash string
	RecipeHashes  map[string]string
	Fingerprints  map[string]string
}

// LoadWorkspace loads all recipes and computes their fingerprints.
// A dependency cycle fails the whole load.
func LoadWorkspace(ctx context.Context, cfg *Config) (*Workspace, error) {
	recipes, err := LoadRecipes(cfg)
	if err != nil {
		return nil, err
	}
	log.WithField("count", len(recipes)).WithField("dir", cfg.PackagesDir).Debug("loaded recipes")

	graph := BuildGraph(recipes)
	err = graph.Validate()
	if err != nil {
		return nil, err
	}

	toolchainHash, err := ComputeToolchainDigest(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.WithField("toolchainHash", toolchainHash).Debug("computed toolchain hash")

	recipeHashes := make(map[string]string, len(recipes))
	for _, name := range graph.Names() {
		h, err := ComputeRecipeHash(recipes[name], cfg)
		if err != nil {
			return nil, xerrors.Errorf("cannot compute recipe hash of %s: %w", name, err)
		}
		recipeHashes[name] = h
	}

	fingerprints, err := ComputeFingerprints(graph, recipeHashes, toolchainHash)
	if err != nil {
		return nil, err
	}

	return &Workspace{
		Config:        cfg,
		Recipes:       recipes,
		Graph:         graph,
		ToolchainHash: toolchainHash,
		RecipeHashes:  recipeHashes,
		Fingerprints:  fingerprints,
	}, nil
}

// BuildPlan produces the build plan of this workspace
func (w *Workspace) BuildPlan() *BuildPlan {
	plan := &BuildPlan{
		ToolchainHash:      w.ToolchainHash,
		Fingerprints:       make(map[string]string, len(w.Fingerprints)),
		CrossBuildPackages: []string{},
		LibraryPackages:    []string{},
	}
	for _, name := range w.Graph.Names() {
		fp, ok := w.Fingerprints[name]
		if !ok {
			continue
		}
		plan.Fingerprints[name] = fp

		recipe := w.Recipes[name]
		if recipe.AlwaysRebuild {
			plan.CrossBuildPackages = append(plan.CrossBuildPackages, name)
		}
		if recipe.Kind.IsLibrary() {
			plan.LibraryPackages = append(plan.LibraryPackages, name)
		}
	}
	plan.index()
	return plan
}

// ComputeBuildPlan loads the workspace described by cfg and returns its build plan
func ComputeBuildPlan(ctx context.Context, cfg *Config) (*BuildPlan, error) {
	ws, err := LoadWorkspace(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return ws.BuildPlan(), nil
}

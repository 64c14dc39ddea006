package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/disiqueira/gotree"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache"
)

// describeTreeCmd represents the describeTree command
var describeTreeCmd = &cobra.Command{
	Use:   "tree [package]",
	Short: "Prints the host dependency tree of a package, or of all packages nothing depends on",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		packagesDir, _ := cmd.Flags().GetString("packages-dir")
		cfg, err := getConfig(packagesDir)
		if err != nil {
			log.Fatal(err)
		}

		ws, err := wheelcache.LoadWorkspace(context.Background(), cfg)
		if err != nil {
			log.Fatal(err)
		}

		var roots []string
		if len(args) > 0 {
			if _, exists := ws.Recipes[args[0]]; !exists {
				log.Fatalf("package \"%s\" does not exist", args[0])
			}
			roots = []string{args[0]}
		} else {
			roots = topLevelPackages(ws.Graph)
		}

		tree := gotree.New(cfg.PackagesDir)
		for _, name := range roots {
			printDependencyTree(tree, ws, name)
		}
		_, err = fmt.Println(tree.Print())
		if err != nil {
			log.Fatal(err)
		}
	},
}

func printDependencyTree(parent gotree.Tree, ws *wheelcache.Workspace, name string) {
	label := name
	if fp, ok := ws.Fingerprints[name]; ok && len(fp) > 12 {
		label = fmt.Sprintf("%s (%s)", name, fp[:12])
	}
	if recipe := ws.Recipes[name]; recipe != nil && recipe.AlwaysRebuild {
		label += " [always rebuilt]"
	}

	n := parent.Add(label)
	for _, dep := range ws.Graph.Dependencies(name) {
		printDependencyTree(n, ws, dep)
	}
}

// topLevelPackages returns the packages no other package depends on
func topLevelPackages(g wheelcache.Graph) []string {
	dependedOn := make(map[string]struct{})
	for _, deps := range g {
		for dep := range deps {
			dependedOn[dep] = struct{}{}
		}
	}

	var res []string
	for name := range g {
		if _, ok := dependedOn[name]; ok {
			continue
		}
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func init() {
	describeCmd.AddCommand(describeTreeCmd)
}

package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache"
)

// describeDependantsCmd represents the describeDependants command
var describeDependantsCmd = &cobra.Command{
	Use:   "dependants <package>",
	Short: "Prints the packages which depend on a package, i.e. are rebuilt when it changes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		packagesDir, _ := cmd.Flags().GetString("packages-dir")
		cfg, err := getConfig(packagesDir)
		if err != nil {
			log.Fatal(err)
		}

		recipes, err := wheelcache.LoadRecipes(cfg)
		if err != nil {
			log.Fatal(err)
		}
		if _, exists := recipes[args[0]]; !exists {
			log.Fatalf("package \"%s\" does not exist", args[0])
		}

		transitive, _ := cmd.Flags().GetBool("transitive")
		for _, d := range wheelcache.BuildGraph(recipes).Dependants(args[0], transitive) {
			fmt.Println(d)
		}
	},
}

func init() {
	describeCmd.AddCommand(describeDependantsCmd)
	describeDependantsCmd.Flags().BoolP("transitive", "t", false, "Print transitive dependants")
}

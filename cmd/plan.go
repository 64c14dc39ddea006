package cmd

import (
	"context"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache"
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Computes the fingerprint of every package and writes the build plan",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		packagesDir, _ := cmd.Flags().GetString("packages-dir")

		cfg, err := getConfig(packagesDir)
		if err != nil {
			log.Fatal(err)
		}

		plan, err := wheelcache.ComputeBuildPlan(context.Background(), cfg)
		if err != nil {
			log.Fatal(err)
		}

		output, err = filepath.Abs(output)
		if err != nil {
			log.Fatal(err)
		}
		err = plan.Write(output)
		if err != nil {
			log.Fatal(err)
		}

		err = wheelcache.PrintPlanSummary(os.Stdout, output, plan)
		if err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringP("output", "o", "build-plan.json", "location of the build plan")
	planCmd.Flags().String("packages-dir", "", "directory containing the package recipes (defaults to <base-dir>/packages)")
}

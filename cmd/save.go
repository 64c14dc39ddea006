package cmd

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache"
)

// saveCmd represents the save command
var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Replaces the cache content with the artifacts of the current build",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cacheDir, _ := cmd.Flags().GetString("cache-dir")
		planFN, _ := cmd.Flags().GetString("build-plan")
		packagesDir, _ := cmd.Flags().GetString("packages-dir")

		plan, err := wheelcache.LoadBuildPlan(planFN)
		if err != nil {
			log.Fatal(err)
		}
		cfg, err := getConfig(packagesDir)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		backend, location, err := getBackend(ctx, cacheDir)
		if err != nil {
			log.Fatal(err)
		}

		report, err := wheelcache.NewSaver(cfg, backend).Save(ctx, plan)
		if err != nil {
			log.Fatal(err)
		}

		err = wheelcache.PrintSaveSummary(os.Stdout, location, report)
		if err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)

	addCacheFlags(saveCmd)
}

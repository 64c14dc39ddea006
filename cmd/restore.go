package cmd

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache"
)

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restores the artifacts of all unchanged packages from the cache",
	Long: `Restores the artifacts of all unchanged packages from the cache.

Packages marked as cross-build-env are never restored. Restored artifacts are stamped with a far-future
modification time so that the build treats them as up to date. A missing cache manifest is a cold start and not an error.`,
	Args: cobra.NoArgs,
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
		backend, _, err := getBackend(ctx, cacheDir)
		if err != nil {
			log.Fatal(err)
		}

		report, err := wheelcache.NewRestorer(cfg, backend).Restore(ctx, plan)
		if err != nil {
			log.Fatal(err)
		}

		err = wheelcache.PrintRestoreSummary(os.Stdout, report)
		if err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	addCacheFlags(restoreCmd)
}

func addCacheFlags(cmd *cobra.Command) {
	cmd.Flags().String("cache-dir", "", "cache directory, or the staging directory when a remote cache is configured")
	cmd.Flags().String("build-plan", "", "location of the build plan")
	cmd.Flags().String("packages-dir", "", "directory containing the package recipes (defaults to <base-dir>/packages)")
	_ = cmd.MarkFlagRequired("cache-dir")
	_ = cmd.MarkFlagRequired("build-plan")
}

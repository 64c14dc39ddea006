package cmd

import (
	"github.com/spf13/cobra"
)

// describeCmd represents the describe command
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describes the packages of the recipe tree",
}

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.PersistentFlags().String("packages-dir", "", "directory containing the package recipes (defaults to <base-dir>/packages)")
}

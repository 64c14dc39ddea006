package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// bashCompletionCmd represents the bashCompletion command
var bashCompletionCmd = &cobra.Command{
	Use:    "bash-completion",
	Short:  "Provides bash completion for wheelcache. Use with `. <(wheelcache bash-completion)`",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = rootCmd.GenBashCompletionV2(os.Stdout, true)
	},
}

func init() {
	rootCmd.AddCommand(bashCompletionCmd)
}

package cmd

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Signature cache management commands",
	Long: `Commands for maintaining the stored post signatures, for example after
the signature format changed.`,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}

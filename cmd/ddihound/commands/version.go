package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddihound/ddihound/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

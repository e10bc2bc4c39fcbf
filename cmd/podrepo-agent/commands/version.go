package commands

import (
	"fmt"
	"runtime"

	"podrepo-agent/internal/version"

	"github.com/spf13/cobra"
)

// versionCmd prints the agent version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("podrepo-agent v%s (%s/%s, %s)\n", version.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}

// =============================================================================
// COVID Scenes - Version Command
// =============================================================================
//
// OUTPUT:
//   COVID Scenes
//   Version:    0.3.0
//   Build Date: unknown
//   Go Version: go1.24.0
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// These are set at build time:
//   go build -ldflags "-X 'github.com/ginjaninja78/covid-scenes/cmd.Version=0.3.0'"
var (
	Version   = "0.3.0"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	// The version needs no config or logger.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("COVID Scenes")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Build Date: %s\n", BuildDate)
		fmt.Printf("Go Version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

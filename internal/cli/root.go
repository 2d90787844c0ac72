// Package cli implements the streamform command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "streamform",
	Short: "Streaming multipart/form-data toolkit",
	Long: `streamform parses multipart/form-data bodies incrementally, routing
each part into a temp file or memory without ever buffering the whole
body. It ships a demo upload server and an offline extractor.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newConfigCmd())
}

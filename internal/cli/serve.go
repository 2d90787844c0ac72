package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"streamform/internal/server"
	"streamform/pkg/config"
	"streamform/pkg/logger"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo streaming upload server",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, source, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New()
	log.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	log.Info("configuration loaded", "source", source)

	srv := server.New(cfg, log)
	return srv.Run()
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, source, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			out, err := cfg.ToYAML()
			if err != nil {
				return err
			}
			fmt.Printf("# source: %s\n%s", source, out)
			return nil
		},
	}
	return cmd
}

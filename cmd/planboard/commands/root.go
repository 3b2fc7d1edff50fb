package commands

import (
	"fmt"
	"io"

	"github.com/monocle-dev/planboard/internal/config"
	"github.com/monocle-dev/planboard/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../commands.Version=...".
var Version = "dev"

const systemName = "planboard"

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "planboard",
		Short:         "Project and task planning API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newVersionCommand(),
	)

	return rootCmd
}

// bootstrap loads configuration and builds the logger shared by every command.
func bootstrap(configPath string) (*config.Config, *logrus.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, closer, err := logging.New(cfg.Logger, systemName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	return cfg, log, closer, nil
}

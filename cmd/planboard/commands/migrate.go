package commands

import (
	"context"

	"github.com/monocle-dev/planboard/db"
	"github.com/spf13/cobra"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		Args:    cobra.NoArgs,
		Aliases: []string{"m"},
		Short:   "Create the tables or indexes of the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, closer, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			st, err := db.Open(ctx, cfg.Store, log)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			if err := db.MigrateDatabase(ctx, st); err != nil {
				return err
			}

			log.WithField("driver", cfg.Store.Driver).Info("Migration complete")
			return nil
		},
	}
}

package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/nutriprotocol/internal/core/db"
)

func newMigrateCmd(env *environment) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := db.Open(ctx, env.cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			applied, err := db.MigrateUp(ctx, database)
			if err != nil {
				return err
			}

			env.logger.Info("migrations applied",
				zap.String("driver", database.DriverName()),
				zap.Strings("applied", applied),
			)
			return nil
		},
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := db.Open(ctx, env.cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			statuses, err := db.MigrateStatus(ctx, database)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT\tDURATION")
			for _, s := range statuses {
				state, at, took := "pending", "-", "-"
				if s.Applied {
					state = "applied"
					took = fmt.Sprintf("%dms", s.ExecutionMs)
					if s.AppliedAt != nil {
						at = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, state, at, took)
			}
			return w.Flush()
		},
	})

	return migrateCmd
}

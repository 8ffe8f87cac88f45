package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"NewsPipeline/internal/app"
	"NewsPipeline/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every hook on its timer until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application) error {
			return a.Run(ctx)
		})
	},
}

var triggerCmd = &cobra.Command{
	Use:       "trigger <hook>",
	Short:     "Run one hook now and print its result",
	Long:      "Run one hook now and print its result.\n\nHooks: " + strings.Join(domain.Hooks, ", "),
	Args:      cobra.ExactArgs(1),
	ValidArgs: domain.Hooks,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application) error {
			if _, err := a.SeedSources(ctx); err != nil {
				return err
			}
			res, err := a.Scheduler().Trigger(ctx, args[0])
			if res != nil {
				if perr := printJSON(cmd, res); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// app.New migrates while opening the store.
		return withApp(cmd, func(ctx context.Context, a *app.Application) error {
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd, triggerCmd, migrateCmd)
}

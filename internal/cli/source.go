package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"NewsPipeline/internal/app"
	"NewsPipeline/internal/domain"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage the source registry",
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.Application) error {
			sources, err := a.Pipeline().Registry().List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tLANG\tCATEGORY\tTRUST\tENABLED\tLAST FETCH\tERRORS")
			now := time.Now().UTC()
			for _, s := range sources {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\t%d\n",
					s.ID, s.Name, s.Kind, s.Lang, s.Category, s.TrustScore,
					enabledLabel(s, now), lastFetch(s), s.ErrorCount)
			}
			return w.Flush()
		})
	},
}

var sourceAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Register a new source",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		kind, _ := flags.GetString("kind")
		lang, _ := flags.GetString("lang")
		category, _ := flags.GetString("category")
		trust, _ := flags.GetFloat64("trust")
		interval, _ := flags.GetInt("interval")
		options, _ := flags.GetStringToString("option")

		return withApp(cmd, func(ctx context.Context, a *app.Application) error {
			id, err := a.Pipeline().Registry().Add(ctx, domain.Source{
				Name:                 args[0],
				URL:                  args[1],
				Kind:                 domain.SourceKind(kind),
				Lang:                 lang,
				Category:             category,
				TrustScore:           trust,
				FetchIntervalMinutes: interval,
				Options:              options,
				Enabled:              true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added source %d\n", id)
			return nil
		})
	},
}

var sourceEnableCmd = &cobra.Command{
	Use:   "enable <source-id>",
	Short: "Enable a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(cmd, args[0], true)
	},
}

var sourceDisableCmd = &cobra.Command{
	Use:   "disable <source-id>",
	Short: "Disable a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(sourceCmd)
	sourceCmd.AddCommand(sourceListCmd, sourceAddCmd, sourceEnableCmd, sourceDisableCmd)

	flags := sourceAddCmd.Flags()
	flags.String("kind", string(domain.SourceKindRSS), "source kind (rss or html)")
	flags.String("lang", "de", "source language")
	flags.String("category", "", "default category of the source's items")
	flags.Float64("trust", 0.5, "initial trust score in [0,1]")
	flags.Int("interval", 0, "fetch interval in minutes (0: pipeline default)")
	flags.StringToString("option", nil, "kind-specific options, e.g. item=article")
}

func setSourceEnabled(cmd *cobra.Command, rawID string, enabled bool) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app.Application) error {
		if err := a.Pipeline().Registry().SetEnabled(ctx, id, enabled); err != nil {
			return err
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "source %d %s\n", id, state)
		return nil
	})
}

func enabledLabel(s domain.Source, now time.Time) string {
	switch {
	case !s.Enabled:
		return "no"
	case s.IsQuarantined(now):
		return "quarantined"
	default:
		return "yes"
	}
}

func lastFetch(s domain.Source) string {
	if s.LastFetchedAt == nil {
		return "never"
	}
	return s.LastFetchedAt.Format(time.RFC3339)
}

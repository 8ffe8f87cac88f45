package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"NewsPipeline/internal/app"
	"NewsPipeline/internal/domain"
)

var publishCmd = &cobra.Command{
	Use:   "publish <draft-id>",
	Short: "Publish a draft to the CMS and secondary channels",
	Long: `Publish a draft to the CMS first and then to the secondary channels.

Examples:
  newspipeline publish 42                       # Default channels
  newspipeline publish 42 --channel telegram    # Explicit channels
  newspipeline publish 42 --queue               # Leave it to the next queue run
  newspipeline publish 42 --only telegram       # Retry one channel of a published draft`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Apply editor decisions to drafts",
}

var draftApproveCmd = &cobra.Command{
	Use:   "approve <draft-id>",
	Short: "Approve a draft, optionally scheduling it with --at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := scheduleFlag(cmd)
		if err != nil {
			return err
		}
		return editDraft(cmd, args[0], func(ctx context.Context, a *app.Application, id int64, editor string) (domain.Draft, error) {
			return a.Pipeline().Editorial().Approve(ctx, id, editor, at)
		})
	},
}

var draftRejectCmd = &cobra.Command{
	Use:   "reject <draft-id>",
	Short: "Reject a draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editDraft(cmd, args[0], func(ctx context.Context, a *app.Application, id int64, editor string) (domain.Draft, error) {
			return a.Pipeline().Editorial().Reject(ctx, id, editor)
		})
	},
}

var draftScheduleCmd = &cobra.Command{
	Use:   "schedule <draft-id> --at <time>",
	Short: "Schedule an approved draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := scheduleFlag(cmd)
		if err != nil {
			return err
		}
		if at == nil {
			return fmt.Errorf("--at is required")
		}
		return editDraft(cmd, args[0], func(ctx context.Context, a *app.Application, id int64, editor string) (domain.Draft, error) {
			return a.Pipeline().Editorial().Schedule(ctx, id, editor, *at)
		})
	},
}

var draftUnpublishCmd = &cobra.Command{
	Use:   "unpublish <draft-id>",
	Short: "Mark a published draft as withdrawn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editDraft(cmd, args[0], func(ctx context.Context, a *app.Application, id int64, editor string) (domain.Draft, error) {
			return a.Pipeline().Editorial().Unpublish(ctx, id, editor)
		})
	},
}

var draftShowCmd = &cobra.Command{
	Use:   "show <draft-id>",
	Short: "Print a draft and its publish records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.Application) error {
			draft, err := a.Store().GetDraft(ctx, id)
			if err != nil {
				return err
			}
			records, err := a.Store().ListPublishRecords(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"draft": draft, "publish_records": records})
		})
	},
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts in a status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, func(ctx context.Context, a *app.Application) error {
			drafts, err := a.Store().ListDrafts(ctx, domain.DraftStatus(status), time.Time{}, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range drafts {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\n", d.ID, d.Lang, d.Status, d.GateReason, d.Title)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(publishCmd, draftCmd)
	draftCmd.AddCommand(draftApproveCmd, draftRejectCmd, draftScheduleCmd, draftUnpublishCmd, draftShowCmd, draftListCmd)

	publishCmd.Flags().StringSlice("channel", nil, "secondary channels (default: channels.default)")
	publishCmd.Flags().Bool("queue", false, "enqueue a publish_draft job instead of publishing now")
	publishCmd.Flags().String("only", "", "retry a single secondary channel of a published draft")

	for _, c := range []*cobra.Command{draftApproveCmd, draftRejectCmd, draftScheduleCmd, draftUnpublishCmd} {
		c.Flags().String("editor", "", "editor recorded on the draft")
	}
	for _, c := range []*cobra.Command{draftApproveCmd, draftScheduleCmd} {
		c.Flags().String("at", "", "publish time, RFC 3339 (e.g. 2024-05-01T08:00:00+02:00)")
	}
	draftListCmd.Flags().String("status", string(domain.DraftPendingOK), "draft status")
	draftListCmd.Flags().Int("limit", 50, "maximum number of drafts")
}

func runPublish(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	channels, _ := cmd.Flags().GetStringSlice("channel")
	queue, _ := cmd.Flags().GetBool("queue")
	only, _ := cmd.Flags().GetString("only")

	return withApp(cmd, func(ctx context.Context, a *app.Application) error {
		switch {
		case only != "":
			rec, err := a.Pipeline().Publisher().PublishChannel(ctx, id, only)
			if perr := printJSON(cmd, rec); perr != nil {
				return perr
			}
			return err
		case queue:
			jobID, err := a.Pipeline().Editorial().RequestPublish(ctx, id, channels)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued job %d\n", jobID)
			return nil
		default:
			outcome, err := a.Pipeline().Publisher().Publish(ctx, id, channels)
			if len(outcome.Results) > 0 {
				if perr := printJSON(cmd, outcome); perr != nil {
					return perr
				}
			}
			return err
		}
	})
}

type draftEdit func(ctx context.Context, a *app.Application, id int64, editor string) (domain.Draft, error)

func editDraft(cmd *cobra.Command, rawID string, edit draftEdit) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	editor, _ := cmd.Flags().GetString("editor")
	return withApp(cmd, func(ctx context.Context, a *app.Application) error {
		draft, err := edit(ctx, a, id, editor)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "draft %d is %s\n", draft.ID, draft.Status)
		return nil
	})
}

func scheduleFlag(cmd *cobra.Command) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString("at")
	if raw == "" {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --at %q: %w", raw, err)
	}
	return &at, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitri99main/itongPOS-sub000/internal/app"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/sync/queue"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync daemon",
		Long: `Run the connectivity monitor and sync scheduler until interrupted.

Queued sales are sent whenever the register comes back online.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withCore(cmd, func(ctx context.Context, core *app.Core) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				core.Start(ctx)
				status := core.Status(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "serving register %s: %d pending, online=%v\n",
					status.CashRegisterID, status.Queue.Pending, status.Connectivity.Online)

				<-ctx.Done()
				logging.Info("Sync daemon stopping")
				return nil
			})
		},
	}
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the offline queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending actions in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withCore(cmd, func(ctx context.Context, core *app.Core) error {
				items := core.Queue.List()
				return rootOpts.emit(cmd.OutOrStdout(), items, func(w io.Writer) {
					if len(items) == 0 {
						fmt.Fprintln(w, "No pending actions")
						return
					}
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tTYPE\tTRANSACTION\tQUEUED AT")
					for _, item := range items {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.ID, item.Type(), transactionOf(item), item.Time().Format(time.RFC3339))
					}
					tw.Flush()
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "quarantine",
		Short: "List actions the remote system kept rejecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withCore(cmd, func(ctx context.Context, core *app.Core) error {
				items := core.Queue.Quarantined()
				return rootOpts.emit(cmd.OutOrStdout(), items, func(w io.Writer) {
					printQuarantine(w, items)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "requeue <action-id>",
		Short: "Move a quarantined action back to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withCore(cmd, func(ctx context.Context, core *app.Core) error {
				if err := core.Queue.Requeue(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "discard <action-id>",
		Short: "Permanently delete a quarantined action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withCore(cmd, func(ctx context.Context, core *app.Core) error {
				if err := core.Queue.Discard(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "discarded %s\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

func transactionOf(item models.QueuedAction) string {
	if insert, ok := item.Action.(models.InsertTransaction); ok {
		return insert.Header.ID
	}
	return "-"
}

func printQuarantine(w io.Writer, items []queue.QuarantinedAction) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No quarantined actions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRANSACTION\tREJECTIONS\tREASON")
	for _, qa := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", qa.Action.ID, transactionOf(qa.Action), qa.Rejections, qa.Reason)
	}
	tw.Flush()
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send queued sales now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withCore(cmd, func(ctx context.Context, core *app.Core) error {
				result, err := core.Scheduler.SyncNow(ctx)
				if err != nil {
					return err
				}
				return rootOpts.emit(cmd.OutOrStdout(), result, func(w io.Writer) {
					fmt.Fprintln(w, result.Message())
					if result.Failed > 0 || result.Quarantined > 0 {
						fmt.Fprintf(w, "%d failed, %d quarantined, %d remaining\n", result.Failed, result.Quarantined, result.Remaining)
					}
				})
			})
		},
	}
}

// NewOfflineCommand creates the offline command.
func NewOfflineCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "offline on|off|status",
		Short:     "Force offline mode or show connectivity",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withCore(cmd, func(ctx context.Context, core *app.Core) error {
				switch args[0] {
				case "on":
					if err := core.Monitor.SetManualOverride(ctx, true); err != nil {
						return err
					}
				case "off":
					if err := core.Monitor.SetManualOverride(ctx, false); err != nil {
						return err
					}
				}
				status := core.Monitor.Status()
				return rootOpts.emit(cmd.OutOrStdout(), status, func(w io.Writer) {
					switch {
					case status.ManualOverride:
						fmt.Fprintln(w, "offline (manual override)")
					case status.Online:
						fmt.Fprintln(w, "online")
					default:
						fmt.Fprintln(w, "offline")
					}
				})
			})
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withCore(cmd, func(ctx context.Context, core *app.Core) error {
				entries, err := core.SyncHistory(ctx, limit)
				if err != nil {
					return err
				}
				return rootOpts.emit(cmd.OutOrStdout(), entries, func(w io.Writer) {
					if len(entries) == 0 {
						fmt.Fprintln(w, "No sync passes recorded")
						return
					}
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "STARTED\tAPPLIED\tFAILED\tQUARANTINED\tREMAINING")
					for _, e := range entries {
						fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", e.StartedAt.Format(time.RFC3339), e.Applied, e.Failed, e.Quarantined, e.Remaining)
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of passes to show")
	return cmd
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castlemilk/pfinance-insights/internal/notify"
	"github.com/castlemilk/pfinance-insights/internal/report"
	"github.com/castlemilk/pfinance-insights/internal/snapshot"
)

func newNotifyCmd(opts *options) *cobra.Command {
	var amqpURL, exchange, queue string

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Run the notification triggers once and store what fires",
		Long: "Evaluates every notification trigger against the snapshot. Notifications are\n" +
			"deduplicated against earlier runs when --db is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc, err := opts.prepare(cmd)
			if err != nil {
				return err
			}
			defer rc.close()

			var sinks []notify.Sink
			if amqpURL != "" {
				sink, err := notify.NewAMQPSink(amqpURL, exchange, queue)
				if err != nil {
					return err
				}
				defer sink.Close()
				sinks = append(sinks, sink)
			}

			engine := notify.NewEngine(rc.store, rc.cfg, opts.logger(cmd), sinks...)
			res, err := engine.Evaluate(cmd.Context(), rc.snap, rc.now)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Pass(res))
			return nil
		},
	}
	cmd.Flags().StringVar(&amqpURL, "amqp-url", "", "Publish created notifications to this AMQP broker")
	cmd.Flags().StringVar(&exchange, "amqp-exchange", "pfinance", "AMQP exchange")
	cmd.Flags().StringVar(&queue, "amqp-queue", "notifications", "AMQP queue")
	return cmd
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load a snapshot file into the --db database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.snapshotPath == "" || opts.dbPath == "" {
				return errors.New("import needs both --snapshot and --db")
			}
			snap, err := snapshot.LoadFile(opts.snapshotPath)
			if err != nil {
				return err
			}
			s, closeFn, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := s.ImportSnapshot(cmd.Context(), snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions, %d budgets, %d accounts for %s\n",
				len(snap.Transactions), len(snap.Budgets), len(snap.Accounts), snap.UserID)
			return nil
		},
	}
}

func newInboxCmd(opts *options) *cobra.Command {
	var unreadOnly, markRead bool
	var limit int32

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List stored notifications for --user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.dbPath == "" || opts.userID == "" {
				return errors.New("inbox needs --db and --user")
			}
			s, closeFn, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			items, _, err := s.ListNotifications(ctx, opts.userID, unreadOnly, "", limit, "")
			if err != nil {
				return err
			}
			if markRead {
				if err := s.MarkAllNotificationsRead(ctx, opts.userID); err != nil {
					return err
				}
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), items)
			}

			rows := make([][]string, 0, len(items))
			for _, n := range items {
				read := ""
				if n.IsRead {
					read = "✓"
				}
				rows = append(rows, []string{
					n.CreatedAt.Format("2006-01-02 15:04"),
					report.Status(string(n.Priority)),
					n.Title,
					read,
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  No notifications.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), report.RenderTable(report.Table{
				Title:   "Notifications for " + opts.userID,
				Headers: []string{"Created", "Priority", "Title", "Read"},
				Rows:    rows,
			}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "Only unread notifications")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Mark every notification read after listing")
	cmd.Flags().Int32Var(&limit, "limit", 50, "Maximum notifications to list")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"

	"github.com/castlemilk/pfinance-insights/internal/demo"
	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/snapshot"
)

func newDemoCmd(opts *options) *cobra.Command {
	var out, bucket string
	var seed int64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Generate six months of demo data for --user",
		Long: "Writes a deterministic demo snapshot to --out, imports it into --db, and\n" +
			"uploads it to a GCS bucket for the gcs snapshot source when --bucket is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := opts.clock()
			if err != nil {
				return err
			}
			userID := opts.userID
			if userID == "" {
				userID = "demo-user"
			}
			snap := demo.Generate(userID, now, seed)

			if out != "" {
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
			}
			if opts.dbPath != "" {
				s, closeFn, err := opts.openStore()
				if err != nil {
					return err
				}
				defer closeFn()
				if err := s.ImportSnapshot(cmd.Context(), snap); err != nil {
					return err
				}
			}
			if bucket != "" {
				if err := uploadSnapshot(cmd.Context(), bucket, snap); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d transactions for %s\n", len(snap.Transactions), userID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the snapshot JSON here")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Upload the snapshot to this GCS bucket")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	return cmd
}

func uploadSnapshot(ctx context.Context, bucket string, snap *model.Snapshot) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating storage client: %w", err)
	}
	defer client.Close()

	w := client.Bucket(bucket).Object(snapshot.ObjectName(snap.UserID)).NewWriter(ctx)
	w.ContentType = "application/json"
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		w.Close()
		return fmt.Errorf("upload snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}
	return nil
}

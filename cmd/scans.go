package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/labelsense/labelsense/internal/model"
	"github.com/labelsense/labelsense/internal/store"
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Inspect saved scans",
	Long:  "Commands for listing, viewing, and deleting persisted label scans.",
}

// -- scans list --

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scans for a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		userID, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		scans, err := st.ListScans(ctx, store.ScanFilter{UserID: userID, Limit: limit, Offset: offset})
		if err != nil {
			return eris.Wrap(err, "scans list")
		}

		if len(scans) == 0 {
			fmt.Fprintln(os.Stderr, "No scans found.")
			return nil
		}

		formatScansList(os.Stdout, scans)
		return nil
	},
}

// -- scans show --

var scansShowCmd = &cobra.Command{
	Use:   "show <scan-id>",
	Short: "Show full details of a scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		detail, err := st.GetScan(ctx, args[0])
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return eris.Errorf("scan %s not found", args[0])
			}
			return eris.Wrap(err, "scans show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

// -- scans delete --

var scansDeleteCmd = &cobra.Command{
	Use:   "delete <scan-id>",
	Short: "Delete a scan and its rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.DeleteScan(ctx, args[0]); err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return eris.Errorf("scan %s not found", args[0])
			}
			return eris.Wrap(err, "scans delete")
		}

		fmt.Printf("Deleted scan %s\n", args[0])
		return nil
	},
}

func formatScansList(w io.Writer, scans []model.Scan) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tRISK\tCREATED")
	for _, s := range scans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			s.ID, s.ProductName, s.SummaryRisk, s.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func init() {
	scansListCmd.Flags().String("user", "", "user ID to list scans for")
	scansListCmd.Flags().Int("limit", 50, "max scans to return")
	scansListCmd.Flags().Int("offset", 0, "list offset")
	_ = scansListCmd.MarkFlagRequired("user")

	scansCmd.AddCommand(scansListCmd, scansShowCmd, scansDeleteCmd)
	rootCmd.AddCommand(scansCmd)
}

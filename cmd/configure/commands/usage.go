package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

// NewUsageCmd creates the usage command
func NewUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect AI token usage and cost",
	}
	cmd.AddCommand(newUsageReportCmd())
	return cmd
}

func newUsageReportCmd() *cobra.Command {
	var from, to, by string
	var days, limit int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print token usage grouped by day, model, operation or user",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseWindow(from, to, days, time.Now())
			if err != nil {
				return err
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			repo := database.NewTokenUsageRepository(db)
			ctx := context.Background()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Usage from %s to %s\n\n", start.Format(dateLayout), end.Format(dateLayout))

			switch by {
			case "day":
				rows, err := repo.AggregateByDateRange(ctx, start, end)
				if err != nil {
					return err
				}
				return writeDaily(out, rows)
			case "model":
				rows, err := repo.AggregateByModel(ctx, start, end)
				if err != nil {
					return err
				}
				return writeModels(out, rows)
			case "operation":
				rows, err := repo.AggregateByOperation(ctx, start, end)
				if err != nil {
					return err
				}
				return writeOperations(out, rows)
			case "user":
				rows, err := repo.TopUsers(ctx, limit, start, end)
				if err != nil {
					return err
				}
				return writeUsers(out, rows)
			default:
				return fmt.Errorf("--by must be one of day, model, operation, user")
			}
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD), defaults to --days ago")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD, inclusive), defaults to today")
	cmd.Flags().IntVar(&days, "days", 30, "Window length when --from is not given")
	cmd.Flags().StringVar(&by, "by", "day", "Grouping: day, model, operation or user")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of users for --by user")
	return cmd
}

// parseWindow resolves the report window. The end date is inclusive, so the returned end is the following midnight.
func parseWindow(from, to string, days int, now time.Time) (time.Time, time.Time, error) {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	if to != "" {
		t, err := time.ParseInLocation(dateLayout, to, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		end = t.AddDate(0, 0, 1)
	}

	if days <= 0 {
		days = 30
	}
	start := end.AddDate(0, 0, -days)
	if from != "" {
		t, err := time.ParseInLocation(dateLayout, from, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		start = t
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from must be on or before --to")
	}
	return start, end, nil
}

func writeDaily(w io.Writer, rows []models.DailyUsage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tREQUESTS\tINPUT\tOUTPUT\tCOST (USD)")
	var total models.UsageTotals
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", r.Date, r.Requests, r.InputTokens, r.OutputTokens, r.TotalCost.StringFixed(6))
		total.Add(r.UsageTotals)
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t%s\n", total.Requests, total.InputTokens, total.OutputTokens, total.TotalCost.StringFixed(6))
	return tw.Flush()
}

func writeModels(w io.Writer, rows []models.ModelUsage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tREQUESTS\tTOKENS\tCOST (USD)")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Provider, r.Model, r.Requests, r.TotalTokens, r.TotalCost.StringFixed(6))
	}
	return tw.Flush()
}

func writeOperations(w io.Writer, rows []models.OperationUsage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tREQUESTS\tTOKENS\tCOST (USD)")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", r.Operation, r.Requests, r.TotalTokens, r.TotalCost.StringFixed(6))
	}
	return tw.Flush()
}

func writeUsers(w io.Writer, rows []models.UserUsage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tUSER ID\tREQUESTS\tTOKENS\tCOST (USD)")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.Email, r.UserID, r.Requests, r.TotalTokens, r.TotalCost.StringFixed(6))
	}
	return tw.Flush()
}

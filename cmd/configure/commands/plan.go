package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/models"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/spf13/cobra"
)

// NewPlanCmd creates the plan command with set and show subcommands.
// Plans are granted here once a payment has been confirmed out of band.
func NewPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage user plans",
	}
	cmd.AddCommand(newPlanSetCmd())
	cmd.AddCommand(newPlanShowCmd())
	return cmd
}

func newPlanSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <email> <free|monthly|yearly>",
		Short: "Set a user's plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			requested := models.Plan(strings.ToLower(strings.TrimSpace(args[1])))
			if !requested.IsValid() {
				return fmt.Errorf("invalid plan %q (expected free, monthly or yearly)", args[1])
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			users := database.NewUserRepository(db)
			ctx := context.Background()
			user, err := users.GetByEmail(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to find user %s: %w", args[0], err)
			}
			if err := users.UpdatePlan(ctx, user.ID, requested); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan for %s changed from %s to %s\n", user.Email, user.Plan, requested)
			return nil
		},
	}
}

func newPlanShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <email>",
		Short: "Show a user's plan and today's video usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			users := database.NewUserRepository(db)
			ctx := context.Background()
			user, err := users.GetByEmail(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to find user %s: %w", args[0], err)
			}

			policy := plan.NewPolicy(users, database.NewUserVideoRepository(db), cfg.FreeDailyVideoLimit)
			stats, err := policy.GetUserUsageStats(ctx, user.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User: %s (%s)\n", user.Email, user.ID)
			fmt.Fprintf(out, "Plan: %s\n", stats.CurrentPlan)
			if stats.Unlimited {
				fmt.Fprintf(out, "Videos today: %d (unlimited)\n", stats.VideosUsedToday)
			} else {
				fmt.Fprintf(out, "Videos today: %d of %d\n", stats.VideosUsedToday, stats.DailyLimit)
			}
			return nil
		},
	}
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"nutriplan/internal/app"
	"nutriplan/internal/plan"
	"nutriplan/internal/planner"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	generateStart string
	generateDays  int
	generateSave  string
	generateJSON  bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a lunch and dinner menu",
	Long: `Syncs the catalogue and shared history, then generates a menu.

Example:
  nutriplan generate --start 2024-06-03 --days 7 --save "Semana 23"`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	start := time.Now()
	if generateStart != "" {
		t, err := planner.ParseStartDate(generateStart)
		if err != nil {
			return fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
		}
		start = t
	}
	days := generateDays
	if days <= 0 {
		days = cfg.DefaultDays
	}
	if days > planner.MaxDays {
		return fmt.Errorf("--days must be at most %d", planner.MaxDays)
	}

	e, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.app.SyncCatalogue(ctx); err != nil {
		if len(e.app.Catalogue()) == 0 {
			return err
		}
		logger.Warn("Catalogue sync failed, using cached dishes", zap.Error(err))
	}
	// A stale history only weakens the recency hint.
	_, _ = e.app.RefreshHistory(ctx)

	res, err := e.app.Generate(ctx, start, days)
	if err != nil {
		return err
	}

	if generateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Days); err != nil {
			return err
		}
	} else {
		printMenu(res.Days)
		if res.FellBack {
			fmt.Println("(generated by rotation)")
		}
	}

	if !cmd.Flags().Changed("save") {
		return nil
	}
	p, remoteOK, err := e.app.SavePlan(ctx, generateSave, start.Format(plan.DateLayout), res.Days)
	if err != nil {
		return err
	}
	where := "locally"
	if remoteOK {
		where = "locally and to the shared sheet"
	}
	fmt.Printf("Saved %q (%s) %s\n", p.Name, p.ID, where)
	return nil
}

func printMenu(days []plan.DayAssignment) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tLUNCH\tDINNER")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Date, d.Lunch.Name, d.Dinner.Name)
	}
	if err := w.Flush(); err != nil {
		logger.Warn("Failed to write output", zap.Error(err))
	}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show saved plans, shared and local",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		plans, err := e.app.RefreshHistory(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning: shared history unavailable, showing local plans")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTART\tDAYS\tORIGIN\tCREATED")
		for _, p := range plans {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", p.ID, p.Name, p.StartDate, p.Days, p.Origin, p.CreatedAt)
		}
		return w.Flush()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <plan-id>",
	Short: "Delete a locally saved plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := args[0]

		e, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		err = e.app.DeletePlan(ctx, id)
		if errors.Is(err, app.ErrPlanNotFound) {
			// Shared plans are rebuilt from the sheet on every run.
			plans, _ := e.app.RefreshHistory(ctx)
			for _, p := range plans {
				if p.ID == id && p.Origin == plan.OriginCloud {
					return fmt.Errorf("plan %s is held in the shared sheet; remove its row there", id)
				}
			}
		}
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", id)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how often each dish appears in saved plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		_, _ = e.app.RefreshHistory(cmd.Context())

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DISH\tCOUNT")
		for _, s := range e.app.Stats() {
			fmt.Fprintf(w, "%s\t%d\n", s.Name, s.Count)
		}
		return w.Flush()
	},
}

var (
	usageDays    int
	usageCleanup int
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show LLM token usage per day",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if usageCleanup > 0 {
			n, err := e.metrics.Cleanup(cmd.Context(), usageCleanup)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d records older than %d days\n", n, usageCleanup)
		}

		usage, err := e.metrics.GetDailyUsage(cmd.Context(), usageDays)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tPROMPT\tCOMPLETION\tCALLS")
		for _, u := range usage {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", u.Date, u.TotalPrompt, u.TotalCompletion, u.TotalExecution)
		}
		return w.Flush()
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateStart, "start", "", "First day, YYYY-MM-DD (default today)")
	generateCmd.Flags().IntVar(&generateDays, "days", 0, "Number of days (default from config)")
	generateCmd.Flags().StringVar(&generateSave, "save", "", "Save the menu under this name")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Print the menu as JSON")

	usageCmd.Flags().IntVar(&usageDays, "days", 7, "Days of history to show")
	usageCmd.Flags().IntVar(&usageCleanup, "cleanup", 0, "Delete records older than this many days first")
}

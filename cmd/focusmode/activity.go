package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
	"github.com/eliteGoblin/focusd/focusmode/internal/infra"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Inspect recorded activity",
}

var activitySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the most used apps and browser tabs",
	Args:  cobra.NoArgs,
	RunE:  runActivitySummary,
}

var (
	summarySince time.Duration
	summaryLimit int
)

func init() {
	activitySummaryCmd.Flags().DurationVar(&summarySince, "since", 24*time.Hour, "Look back this far")
	activitySummaryCmd.Flags().IntVar(&summaryLimit, "limit", 10, "Rows per section")

	activityCmd.AddCommand(activitySummaryCmd)
	rootCmd.AddCommand(activityCmd)
}

func runActivitySummary(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	store, err := infra.NewActivityStore(a.paths.ActivityDBPath())
	if err != nil {
		return err
	}
	defer store.Close()

	since := time.Now().Add(-summarySince)
	sessions, err := store.SessionCount(since)
	if err != nil {
		return err
	}
	apps, err := store.Summary(infra.KindProcess, since, summaryLimit)
	if err != nil {
		return err
	}
	tabs, err := store.Summary(infra.KindTab, since, summaryLimit)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Activity (last %s) ===\n", summarySince)
	fmt.Printf("Sessions: %d\n", sessions)
	printCounts("Programs", apps)
	printCounts("Browser tabs", tabs)
	fmt.Println("==========================")
	return nil
}

func printCounts(title string, rows []domain.ActivityCount) {
	fmt.Printf("\n%s:\n", title)
	if len(rows) == 0 {
		fmt.Println("  (none recorded)")
		return
	}
	for _, r := range rows {
		fmt.Printf("  %5d  %s\n", r.Samples, r.Subject)
	}
}

package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"

	"credit-risk-engine/internal/handlers"
	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/database"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Maintain the prediction log",
}

var logsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete prediction logs older than the retention window",
	RunE:  runLogsCleanup,
}

var logsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count recent predictions by model version",
	RunE:  runLogsStats,
}

var logsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show logged predictions for a request or the most recent ones",
	RunE:  runLogsShow,
}

var (
	logsCleanupDays int
	logsStatsDays   int
	logsRequestID   string
	logsRecent      int
)

func init() {
	logsCleanupCmd.Flags().IntVarP(&logsCleanupDays, "days", "d", 0, "Retention in days (default PREDICTION_LOG_RETENTION_DAYS)")
	logsStatsCmd.Flags().IntVarP(&logsStatsDays, "days", "d", 7, "Look back this many days")

	logsShowCmd.Flags().StringVarP(&logsRequestID, "request-id", "r", "", "Show the entries written for this request id")
	logsShowCmd.Flags().IntVarP(&logsRecent, "recent", "n", 20, "Show this many recent entries when no request id is given")

	logsCmd.AddCommand(logsCleanupCmd, logsStatsCmd, logsShowCmd)
	rootCmd.AddCommand(logsCmd)
}

func openPredictions(cmd *cobra.Command) (*database.DB, *database.PredictionRepository, int, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, 0, err
	}

	db, err := database.New(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, 0, err
	}

	if _, err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, 0, err
	}
	return db, database.NewPredictionRepository(db), cfg.PredictionLogRetentionDays, nil
}

func runLogsCleanup(cmd *cobra.Command, _ []string) error {
	db, repo, retention, err := openPredictions(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	if logsCleanupDays > 0 {
		retention = logsCleanupDays
	}

	result, err := handlers.NewLogCleanupHandler(repo, retention).Handle(cmd.Context(), events.CloudWatchEvent{
		ID:     "riskctl",
		Source: "riskctl",
		Time:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d prediction logs older than %s\n", result.Deleted, result.Cutoff)
	return nil
}

func runLogsStats(cmd *cobra.Command, _ []string) error {
	if logsStatsDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}

	db, repo, _, err := openPredictions(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	since := time.Now().UTC().AddDate(0, 0, -logsStatsDays)
	counts, err := repo.CountByModelVersion(cmd.Context(), since)
	if err != nil {
		return err
	}

	versions := make([]string, 0, len(counts))
	for v := range counts {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "MODEL VERSION\tPREDICTIONS SINCE %s\n", since.Format("2006-01-02"))
	for _, v := range versions {
		fmt.Fprintf(w, "%s\t%d\n", v, counts[v])
	}
	return w.Flush()
}

func runLogsShow(cmd *cobra.Command, _ []string) error {
	if logsRequestID == "" && logsRecent <= 0 {
		return fmt.Errorf("--recent must be positive")
	}

	db, repo, _, err := openPredictions(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	var entries []*models.PredictionLog
	if logsRequestID != "" {
		entries, err = repo.GetByRequestID(cmd.Context(), logsRequestID)
	} else {
		entries, err = repo.ListRecent(cmd.Context(), logsRecent)
	}
	if err != nil {
		return err
	}
	if logsRequestID != "" && len(entries) == 0 {
		return fmt.Errorf("no prediction logged for request %q", logsRequestID)
	}

	return printPredictionLogs(cmd.OutOrStdout(), entries)
}

// printPredictionLogs writes one row per entry with its strongest factor.
func printPredictionLogs(out io.Writer, entries []*models.PredictionLog) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tREQUEST ID\tKIND\tSCORE\tMODEL VERSION\tTOP FACTOR")
	for _, e := range entries {
		top := "-"
		if len(e.Explanation) > 0 {
			f := e.Explanation[0]
			top = fmt.Sprintf("%s (%+.1f)", f.Factor, f.Contribution)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\t%s\n",
			e.CreatedAt.UTC().Format(time.RFC3339), e.RequestID, e.Kind, e.Score, e.ModelVersion, top)
	}
	return w.Flush()
}

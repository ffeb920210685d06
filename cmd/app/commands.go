package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"kalshi_news/internal/app"
	"kalshi_news/internal/domain"
	"kalshi_news/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	flagRefreshLimit int
	flagHistoryHours int
	flagPruneDays    int

	flagArticlesHours int
	flagArticlesLimit int
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch markets and news once and print the hot list",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap := app.NewBootstrap(flagConfig)
		bootstrap.Quiet = true
		if err := bootstrap.Initialize(); err != nil {
			return err
		}
		defer bootstrap.Close()

		ctx := cmd.Context()
		if _, err := bootstrap.Service.Refresh(ctx); err != nil {
			return err
		}
		snap := bootstrap.Cache.Peek()
		if bootstrap.Archive != nil {
			if err := bootstrap.Archive.SaveSnapshot(ctx, snap); err != nil {
				return fmt.Errorf("archiving snapshot: %w", err)
			}
		}

		printSnapshot(cmd.OutOrStdout(), snap, flagRefreshLimit)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <ticker>",
	Short: "Show archived heat history for a market",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap := app.NewBootstrap(flagConfig)
		bootstrap.Quiet = true
		if err := bootstrap.LoadConfig(); err != nil {
			return err
		}
		archive, err := bootstrap.RequireArchive()
		if err != nil {
			return err
		}
		defer bootstrap.Close()

		if err := checkHours(flagHistoryHours); err != nil {
			return err
		}
		ticker := strings.ToUpper(strings.TrimSpace(args[0]))
		since := time.Now().Add(-time.Duration(flagHistoryHours) * time.Hour)
		records, err := archive.History(cmd.Context(), ticker, since)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintf(out, "No history for %s in the last %d hour(s).\n", ticker, flagHistoryHours)
			return nil
		}
		printHistory(out, records)
		return nil
	},
}

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "Show archived articles that matched a market",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap := app.NewBootstrap(flagConfig)
		bootstrap.Quiet = true
		if err := bootstrap.LoadConfig(); err != nil {
			return err
		}
		archive, err := bootstrap.RequireArchive()
		if err != nil {
			return err
		}
		defer bootstrap.Close()

		if err := checkHours(flagArticlesHours); err != nil {
			return err
		}
		if flagArticlesLimit <= 0 {
			return fmt.Errorf("invalid --limit value: %d", flagArticlesLimit)
		}
		since := time.Now().Add(-time.Duration(flagArticlesHours) * time.Hour)
		articles, err := archive.Articles(cmd.Context(), since, flagArticlesLimit)
		if err != nil {
			return fmt.Errorf("reading articles: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(articles) == 0 {
			fmt.Fprintf(out, "No archived articles in the last %d hour(s).\n", flagArticlesHours)
			return nil
		}
		printArticles(out, articles)
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old rows from the archive",
	Long: `Delete archived heat records and articles older than the retention period.

Uses the retention value from config (default: 30 days) unless overridden with --older-than.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap := app.NewBootstrap(flagConfig)
		bootstrap.Quiet = true
		if err := bootstrap.LoadConfig(); err != nil {
			return err
		}
		if _, err := bootstrap.RequireArchive(); err != nil {
			return err
		}
		defer bootstrap.Close()

		window := app.RetentionWindow(bootstrap.Config)
		if flagPruneDays > 0 {
			window = time.Duration(flagPruneDays) * 24 * time.Hour
		}
		if window <= 0 {
			return fmt.Errorf("retention is disabled; pass --older-than")
		}

		removed, err := bootstrap.Prune(cmd.Context(), window)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if removed == 0 {
			fmt.Fprintln(out, "Nothing to prune.")
		} else {
			fmt.Fprintf(out, "Pruned %s row(s) older than %d day(s).\n", humanize.Comma(removed), int(window.Hours()/24))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap := app.NewBootstrap(flagConfig)
		bootstrap.Quiet = true
		if err := bootstrap.LoadConfig(); err != nil {
			return err
		}
		archive, err := bootstrap.RequireArchive()
		if err != nil {
			return err
		}
		defer bootstrap.Close()

		stats, err := archive.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		path := bootstrap.Config.Archive.Path
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Archive: %s\n", path)
		if info, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "Size: %s\n", humanize.Bytes(uint64(info.Size())))
		}
		fmt.Fprintf(out, "Heat records: %s (%s markets)\n", humanize.Comma(stats.HeatRecords), humanize.Comma(stats.Tickers))
		fmt.Fprintf(out, "Articles: %s\n", humanize.Comma(stats.Articles))
		if !stats.Oldest.IsZero() {
			fmt.Fprintf(out, "Oldest record: %s\n", humanize.Time(stats.Oldest))
		}
		return nil
	},
}

func init() {
	refreshCmd.Flags().IntVar(&flagRefreshLimit, "limit", 20, "number of hot markets to print")
	historyCmd.Flags().IntVar(&flagHistoryHours, "hours", 24, "how many hours of history to show")
	articlesCmd.Flags().IntVar(&flagArticlesHours, "hours", 24, "how many hours back to look")
	articlesCmd.Flags().IntVar(&flagArticlesLimit, "limit", 20, "maximum number of articles to print")
	pruneCmd.Flags().IntVar(&flagPruneDays, "older-than", 0, "override retention period in days")
}

func printSnapshot(w io.Writer, snap *domain.Snapshot, limit int) {
	fmt.Fprintf(w, "Snapshot %s: %s markets, %s articles, %d feed error(s), updated %s\n\n",
		snap.ID, humanize.Comma(int64(len(snap.Markets))), humanize.Comma(int64(snap.NewsCount)),
		snap.FeedErrors, humanize.Time(snap.UpdatedAt))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTICKER\tCATEGORY\tYES\tVOLUME\tHEAT\tSCORE\tNEWS\tTITLE")
	for i, sm := range snap.Hot[:min(max(limit, 0), len(snap.Hot))] {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d¢\t%s\t%.2f\t%.2f\t%d\t%s\n",
			i+1, sm.Ticker, sm.Category, sm.YesPrice, humanize.Comma(sm.Volume),
			sm.Heat, sm.Combined, len(sm.Matches), sm.Title)
	}
	tw.Flush()
}

func printHistory(w io.Writer, records []domain.HeatRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tYES\tVOLUME\tOPEN INT\tHEAT\tSCORE\tNEWS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d¢\t%s\t%s\t%.2f\t%.2f\t%d\n",
			humanize.Time(r.RecordedAt), r.YesPrice, humanize.Comma(r.Volume),
			humanize.Comma(r.OpenInterest), r.Heat, r.Combined, r.MatchCount)
	}
	tw.Flush()
}

func printArticles(w io.Writer, articles []domain.ArticleRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIRST SEEN\tSOURCE\tTITLE\tLINK")
	for _, a := range articles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", humanize.Time(a.FirstSeenAt), a.Source, a.Title, a.Link)
	}
	tw.Flush()
}

func checkHours(hours int) error {
	if hours <= 0 || hours > service.MaxWindowHours {
		return fmt.Errorf("invalid --hours value %d: must be in 1..%d", hours, service.MaxWindowHours)
	}
	return nil
}

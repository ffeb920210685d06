package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kalshi_news/internal/app"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "kalshi-news",
	Short:         "Prediction market and news heat tracker",
	Long:          "kalshi-news ranks Kalshi prediction markets by trading activity and news coverage, and serves the result over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, live updates and scheduled refreshes",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap := app.NewBootstrap(flagConfig)
		if err := bootstrap.Initialize(); err != nil {
			return err
		}
		defer bootstrap.Close()

		// Graceful Shutdown Context
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return bootstrap.Serve(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kalshi-news %s (commit: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "configs/config.yaml", "path to config file (empty for defaults)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

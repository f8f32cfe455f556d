package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wapulse/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and background workers",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			slog.Error("[app] init failed", "err", err)
			os.Exit(1)
		}
		if err := a.Run(ctx); err != nil {
			slog.Error("[app] stopped with error", "err", err)
			os.Exit(1)
		}
		slog.Info("[app] stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"wapulse/internal/db"
	"wapulse/internal/pdf"
	"wapulse/internal/repositories"
	"wapulse/internal/services"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			slog.Error("[migrate] connect", "err", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := db.Migrate(ctx, conn); err != nil {
			slog.Error("[migrate] apply schema", "err", err)
			os.Exit(1)
		}
		slog.Info("[migrate] schema applied")

		seed, err := cmd.Flags().GetBool("seed")
		if err != nil || !seed {
			return
		}
		billing := services.NewBillingService(
			repositories.NewPlanRepository(conn),
			repositories.NewSubscriptionRepository(conn),
			repositories.NewPaymentRepository(conn),
			repositories.NewAccountRepository(conn),
			services.NewRazorpayGateway(cfg.Payments.KeyID, cfg.Payments.KeySecret, cfg.Payments.BaseURL, cfg.Payments.DryRun),
			pdf.NewInvoiceGenerator(cfg.Files.FontPath),
			services.NewOpsNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID),
		)
		if err := billing.SeedPlans(ctx); err != nil {
			slog.Error("[migrate] seed plans", "err", err)
			os.Exit(1)
		}
		slog.Info("[migrate] plans seeded")
	},
}

func init() {
	migrateCmd.Flags().Bool("seed", false, "insert or update the default plans")
	rootCmd.AddCommand(migrateCmd)
}

package cmd

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wapulse/internal/config"
	"wapulse/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wapulse",
	Short: "WhatsApp Business messaging backend",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Overload(); err != nil {
			log.Println("Error loading .env file, skipping")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default $WAPULSE_CONFIG or config/config.yaml)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err.Error())
	}
}

func loadConfig() *config.Config {
	path := configPath
	if path == "" {
		path = os.Getenv("WAPULSE_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalln(err.Error())
	}
	slog.SetDefault(logger.New(cfg.Log.Level))
	return cfg
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "momentum-bot",
	Short: "Momentum trading bot with adaptive risk gating",
	Long: `momentum-bot trades a crypto and stock universe with three styles
(scalping, day and swing) and gates every entry through correlation,
drawdown, heat and buying power checks.

Secrets are read from the environment or a .env file:
  BYBIT_API_KEY, BYBIT_API_SECRET
  DISCORD_TRADE_WEBHOOK, DISCORD_ERROR_WEBHOOK, DISCORD_SUMMARY_WEBHOOK
  TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to the YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to the environment file")

	rootCmd.AddCommand(runCmd, statusCmd, analyzeCmd, backtestCmd, exportCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/altafino/invoice-analyzer/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logger *slog.Logger

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "invoice-analyzer",
	Short: "Invoice mailbox analysis service",
	Long: `A service that searches mailboxes for invoice emails, downloads their PDF
attachments and extracts the invoice fields into structured records.`,
	RunE: run,
}

func init() {
	// Default logger until the configuration is loaded
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd.PersistentFlags().String("config-dir", "./config", "config directory")
	rootCmd.PersistentFlags().String("config-id", "", "specific config ID to use")

	viper.SetEnvPrefix("INVOICE_ANALYZER")
	viper.AutomaticEnv()
	viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
	viper.BindPFlag("config_id", rootCmd.PersistentFlags().Lookup("config-id"))
}

func run(cmd *cobra.Command, args []string) error {
	configDir := viper.GetString("config_dir")
	configID := viper.GetString("config_id")

	application, err := app.New(logger, configDir, configID)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Stop()

	if err := application.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	application.Logger().Info("shutting down application")
	return nil
}

package main

import (
	"log/slog"
	"os"

	"gaze_service/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "gaze_service",
		Short: "Gaze-based expertise classification service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
			return nil
		},
		SilenceUsage: true,
	}
)

func main() {
	rootCmd.AddCommand(serveCmd, generateCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

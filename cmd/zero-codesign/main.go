package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gematik/zero-codesign/pkg/prettylog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	workdir string
)

var rootCmd = &cobra.Command{
	Use:           "zero-codesign",
	Short:         "Code signing certificate tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workdir != "" {
			if err := os.Chdir(workdir); err != nil {
				return fmt.Errorf("change to workdir: %w", err)
			}
		}
		if err := loadEnv(".env"); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
		setupLogging()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workdir, "workdir", "w", "", "working directory")

	rootCmd.AddCommand(newCertCmd())
	rootCmd.AddCommand(newSelfSignCmd())
	rootCmd.AddCommand(newPFXCmd())
	rootCmd.AddCommand(newCACmd())
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if os.Getenv("PRETTY_LOGS") != "false" {
		handler = prettylog.NewHandler(level)
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

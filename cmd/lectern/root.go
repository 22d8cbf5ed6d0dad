package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lectern/internal/config"
	"github.com/aretw0/lectern/internal/logging"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "lectern",
	Short:         "Lectern runs guided lessons",
	Long:          `Lectern plays YAML courses turn by turn, in the terminal or over HTTP, keeping each learner's progress.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("courses") {
			loaded.CoursesDir, _ = flags.GetString("courses")
		}
		if flags.Changed("log-level") {
			loaded.LogLevel, _ = flags.GetString("log-level")
		}
		if flags.Changed("log-format") {
			loaded.LogFormat, _ = flags.GetString("log-format")
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		logger = logging.NewWriter(os.Stderr, cfg.Level(), logging.Format(cfg.LogFormat))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("courses", "", "Directory containing course documents (LECTERN_COURSES_DIR)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (LECTERN_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "json or text (LECTERN_LOG_FORMAT)")
}

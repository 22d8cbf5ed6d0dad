package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/lectern/internal/cli"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check course documents for consistency",
	Long:  `Parses each course document and checks its outline and blocks. Without arguments every course in the courses directory is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			for _, pattern := range []string{"*.yaml", "*.yml"} {
				matches, err := filepath.Glob(filepath.Join(cfg.CoursesDir, pattern))
				if err != nil {
					return err
				}
				paths = append(paths, matches...)
			}
		}
		return cli.ValidateFiles(os.Stdout, paths...)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

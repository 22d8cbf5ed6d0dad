package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aretw0/lectern/internal/cli"
	"github.com/aretw0/lectern/pkg/domain"
)

var graphCmd = &cobra.Command{
	Use:   "graph <course>",
	Short: "Print a course outline as a Mermaid diagram",
	Long: `Prints the outline of a course as a Mermaid flowchart, with goto rules as dotted edges.
With --user, items are styled by that learner's progress.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.GraphOptions{CourseID: args[0]}
		opts.UserID, _ = cmd.Flags().GetString("user")
		opts.Preview, _ = cmd.Flags().GetBool("preview")

		ctx := context.Background()
		app, err := cli.Build(ctx, cfg, logger, domain.LifecycleHooks{})
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.Graph(ctx, app, cmd.OutOrStdout(), opts)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("user", "u", "", "Overlay this learner's progress")
	graphCmd.Flags().Bool("preview", false, "Draw the preview variant")
}

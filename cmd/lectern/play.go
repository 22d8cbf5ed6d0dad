package main

import (
	"context"
	"os"
	"os/user"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/lectern"
	"github.com/aretw0/lectern/internal/cli"
	"github.com/aretw0/lectern/pkg/domain"
)

var playCmd = &cobra.Command{
	Use:   "play <course>",
	Short: "Play a course in the terminal",
	Long: `Plays a course interactively. Output is rendered markdown on a terminal and NDJSON frames
otherwise, so the command can also be driven by another program.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		opts := cli.PlayOptions{
			CourseID: args[0],
			Version:  lectern.Version,
			In:       os.Stdin,
			Out:      os.Stdout,
		}
		opts.UserID, _ = flags.GetString("user")
		opts.StartItem, _ = flags.GetString("item")
		opts.Preview, _ = flags.GetBool("preview")
		opts.Quiet, _ = flags.GetBool("quiet")
		opts.Style, _ = flags.GetString("style")
		opts.JSON, _ = flags.GetBool("json")
		if !flags.Changed("json") {
			opts.JSON = !term.IsTerminal(int(os.Stdout.Fd()))
		}
		if opts.UserID == "" {
			opts.UserID = localUser()
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		var hooks domain.LifecycleHooks
		if cfg.LogLevel == "debug" {
			hooks = cli.DebugHooks(logger)
		}
		app, err := cli.Build(ctx, cfg, logger, hooks)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.Play(ctx, app, opts, logger)
	},
}

func localUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringP("user", "u", "", "Learner id (defaults to the OS user)")
	playCmd.Flags().String("item", "", "Start at this outline item instead of resuming")
	playCmd.Flags().Bool("preview", false, "Play the preview variant with separate progress")
	playCmd.Flags().Bool("json", false, "NDJSON frames on stdout, one answer per line on stdin")
	playCmd.Flags().BoolP("quiet", "q", false, "Skip the banner")
	playCmd.Flags().String("style", "", "Markdown style: dark, light, notty (default: detect)")
}

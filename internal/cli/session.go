package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/lectern/internal/presentation/tui"
	"github.com/aretw0/lectern/pkg/runner"
)

// PlayOptions configures an interactive session.
type PlayOptions struct {
	UserID    string
	CourseID  string
	StartItem string
	Preview   bool
	// JSON switches to NDJSON frames on Out and one answer per line on In.
	JSON bool
	// Quiet skips the banner.
	Quiet bool
	// Style is the glamour style used to render lesson text; empty detects the terminal.
	Style   string
	Version string

	In  io.Reader
	Out io.Writer
}

// Play runs a course in the terminal until it ends, input runs out, or ctx is cancelled.
func Play(ctx context.Context, app *App, opts PlayOptions, logger *slog.Logger) error {
	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(opts.In, opts.Out)
	} else {
		var textOpts []runner.TextHandlerOption
		if render, err := tui.NewRenderer(opts.Style, 0); err != nil {
			logger.Warn("markdown rendering disabled", "style", opts.Style, "error", err)
		} else {
			textOpts = append(textOpts, runner.WithTextHandlerRenderer(render))
		}
		handler = runner.NewTextHandler(opts.In, opts.Out, textOpts...)
		if !opts.Quiet && opts.Out != nil {
			tui.PrintBanner(opts.Out, opts.CourseID, opts.Version)
		}
	}

	r := runner.NewRunner(
		runner.WithHandler(handler),
		runner.WithLogger(logger),
		runner.WithUser(opts.UserID),
		runner.WithCourse(opts.CourseID),
		runner.WithStartItem(opts.StartItem),
		runner.WithPreview(opts.Preview),
	)
	err := r.Run(ctx, app.Engine)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("play %s: %w", opts.CourseID, err)
	}
	return nil
}

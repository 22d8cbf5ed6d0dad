package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/lectern/internal/presentation/graph"
	"github.com/aretw0/lectern/pkg/domain"
)

// GraphOptions selects the course to draw and, optionally, whose progress to overlay.
type GraphOptions struct {
	CourseID string
	UserID   string
	Preview  bool
}

// Graph writes a Mermaid flowchart of a course outline to w.
func Graph(ctx context.Context, app *App, w io.Writer, opts GraphOptions) error {
	variant := domain.VariantPublished
	if opts.Preview {
		variant = domain.VariantPreview
	}
	tree, err := app.Loader.LoadCourse(ctx, opts.CourseID, variant)
	if err != nil {
		return fmt.Errorf("load course %s: %w", opts.CourseID, err)
	}

	var overlay *graph.Overlay
	if opts.UserID != "" {
		items, err := app.Engine.Progress(ctx, opts.UserID, opts.CourseID, opts.Preview)
		if err != nil {
			return err
		}
		overlay = &graph.Overlay{Statuses: make(map[string]domain.Status, len(items))}
		for _, it := range items {
			overlay.Statuses[it.OutlineItemID] = it.Status
			active := it.Status == domain.StatusInProgress || it.Status == domain.StatusBranch
			if overlay.Current == "" && active && !tree.HasChildren(it.OutlineItemID) {
				overlay.Current = it.OutlineItemID
			}
		}
	}

	_, err = io.WriteString(w, graph.GenerateMermaid(tree, overlay))
	return err
}

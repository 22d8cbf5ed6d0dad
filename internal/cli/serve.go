package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/lectern/internal/config"
	httpadapter "github.com/aretw0/lectern/pkg/adapters/http"
)

// Serve exposes the app over HTTP on ln until ctx is cancelled, then drains in-flight turns
// for up to cfg.ShutdownGrace.
func Serve(ctx context.Context, ln net.Listener, app *App, cfg config.Config, logger *slog.Logger) error {
	srv := &http.Server{
		Handler: httpadapter.NewHandler(app.Engine,
			httpadapter.WithCourses(app.Loader),
			httpadapter.WithOrders(app.Orders),
			httpadapter.WithMetrics(app.Metrics.Handler()),
			httpadapter.WithLogger(logger),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving", "addr", ln.Addr().String(), "courses", cfg.CoursesDir, "store", cfg.Store)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "grace", cfg.ShutdownGrace)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return err
		}
		return nil
	})
	return g.Wait()
}

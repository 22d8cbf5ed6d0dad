package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/lectern/internal/config"
	"github.com/aretw0/lectern/internal/metrics"
	"github.com/aretw0/lectern/internal/runtime"
	"github.com/aretw0/lectern/pkg/adapters/file"
	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/adapters/process"
	"github.com/aretw0/lectern/pkg/adapters/redis"
	"github.com/aretw0/lectern/pkg/adapters/sqlite"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/persistence/middleware"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/aretw0/lectern/pkg/session"
)

// App is an engine wired to the adapters the configuration selects.
type App struct {
	Engine  *runtime.Engine
	Loader  *file.Loader
	Orders  ports.OrderSettler
	Metrics *metrics.Metrics

	closers []func() error
}

// accounts is what both account backends provide.
type accounts interface {
	ports.PaymentService
	ports.ProfileStore
	ports.OrderSettler
}

// Build wires an App. Extra hooks run after the metrics hooks.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, hooks domain.LifecycleHooks) (*App, error) {
	app := &App{
		Loader:  file.NewLoader(cfg.CoursesDir),
		Metrics: metrics.New(),
	}

	messages := domain.DefaultMessages()
	if cfg.MessagesFile != "" {
		m, err := file.LoadMessages(cfg.MessagesFile)
		if err != nil {
			return nil, err
		}
		messages = m
	}

	var (
		store ports.Store
		accts accounts
	)
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		store, accts = db, db
	default:
		store, accts = memory.NewStore(), memoryAccounts{memory.NewPayments(), memory.NewProfiles()}
	}
	app.Orders = accts
	if cfg.EncryptionKey != "" {
		mw, err := encryption(cfg)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		store = middleware.Chain(store, mw)
	}

	lockOpts := []session.Option{
		session.WithLogger(logger),
		session.WithWait(cfg.LockWait),
		session.WithTTL(cfg.LockTTL),
	}
	var codes ports.CodeService = memory.NewCodes()
	if cfg.RedisAddr != "" {
		client := backend.NewClient(&backend.Options{Addr: cfg.RedisAddr})
		app.closers = append(app.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		lockOpts = append(lockOpts, session.WithLocker(redis.NewLocker(client, cfg.RedisPrefix)))
		codes = redis.NewCodes(client, cfg.RedisPrefix)
	}

	opts := []runtime.EngineOption{
		runtime.WithLogger(logger),
		runtime.WithLifecycleHooks(app.Metrics.Hooks(hooks)),
		runtime.WithSessionLock(session.NewManager(lockOpts...)),
		runtime.WithCodeService(codes),
		runtime.WithPayments(accts),
		runtime.WithProfiles(accts),
		runtime.WithMessages(messages),
		runtime.WithMaxHops(cfg.MaxHops),
		runtime.WithTypingDelay(cfg.TypingDelay),
		runtime.WithCheckGenerated(cfg.CheckGenerated),
		runtime.WithAvatarURL(cfg.AvatarURL),
	}
	if cfg.ModelsFile != "" {
		pc, err := process.LoadConfig(cfg.ModelsFile)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		base := process.WithBaseDir(filepath.Dir(cfg.ModelsFile))
		opts = append(opts, runtime.WithModel(process.NewModels(process.WithRegistry(pc.Models), base)))
		if pc.Risk != nil {
			opts = append(opts, runtime.WithRiskChecker(process.NewRiskChecker(*pc.Risk, base)))
		}
	}
	app.Engine = runtime.NewEngine(app.Loader, store, opts...)
	return app, nil
}

// Close releases the backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func encryption(cfg config.Config) (middleware.Middleware, error) {
	decode := func(name, s string) ([]byte, error) {
		k, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return k, nil
	}
	active, err := decode("encryption key", cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	ec := middleware.EncryptionConfig{ActiveKey: active, AllowPlaintext: cfg.EncryptionAllowPlaintext}
	for i, s := range cfg.EncryptionFallbackKeys {
		k, err := decode(fmt.Sprintf("fallback key %d", i), s)
		if err != nil {
			return nil, err
		}
		ec.FallbackKeys = append(ec.FallbackKeys, k)
	}
	return middleware.NewEncryptionMiddleware(ec)
}

type memoryAccounts struct {
	*memory.Payments
	*memory.Profiles
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pinchtab/surf/internal/chromehost"
	"github.com/pinchtab/surf/internal/config"
	"github.com/pinchtab/surf/internal/eventloop"
	"github.com/pinchtab/surf/internal/handlers"
	"github.com/pinchtab/surf/internal/history"
	"github.com/pinchtab/surf/internal/lifecycle"
	"github.com/pinchtab/surf/internal/navbridge"
	"github.com/pinchtab/surf/internal/settings"
	"github.com/pinchtab/surf/internal/surface"
	"github.com/pinchtab/surf/internal/tabs"
)

// app is the wired shell: one event loop, one store and everything that
// hangs off them.
type app struct {
	cfg       *config.RuntimeConfig
	loop      *eventloop.Loop
	store     *tabs.Store
	state     *tabs.FileStore
	history   *history.Log
	historyDB *history.SQLiteBackend
	bridge    *navbridge.Bridge
	ctrl      *lifecycle.Controller
	settings  *settings.Store
	handlers  *handlers.Handlers

	cancel context.CancelFunc
	group  errgroup.Group
}

func newApp(cfg *config.RuntimeConfig, host surface.Host) (*app, error) {
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state dir: %w", err)
	}
	a := &app{
		cfg:      cfg,
		loop:     eventloop.New(0),
		store:    tabs.NewStore(nil),
		state:    &tabs.FileStore{Dir: cfg.StateDir},
		settings: settings.Open(cfg.StateDir),
	}

	var backend history.Backend
	switch cfg.HistoryBackend {
	case "memory":
	case "sqlite", "":
		db, err := history.OpenSQLite(cfg.StateDir)
		if err != nil {
			slog.Warn("history database unavailable, keeping history in memory", "err", err)
			break
		}
		a.historyDB = db
		backend = db
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
	a.history = history.New(history.Options{MaxEntries: cfg.HistoryMax, Backend: backend})

	a.bridge = navbridge.New(a.store, a.history, a.loop)
	a.ctrl = lifecycle.New(lifecycle.Options{
		Store:       a.store,
		Bridge:      a.bridge,
		Host:        host,
		Exec:        a.loop,
		MaxTabs:     cfg.MaxTabs,
		OpenTimeout: cfg.OpenTimeout,
	})
	a.handlers = &handlers.Handlers{
		Config:     cfg,
		Store:      a.store,
		Controller: a.ctrl,
		Bridge:     a.bridge,
		History:    a.history,
		Settings:   a.settings,
		Loop:       a.loop,
	}
	return a, nil
}

// start runs the loop, restores the saved session and begins autosaving.
func (a *app) start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.group.Go(func() error {
		a.loop.Run(ctx)
		return nil
	})

	if !a.cfg.NoRestore {
		saved := a.state.LoadOrEmpty()
		var n int
		if err := a.loop.Do(ctx, func() { n = a.ctrl.Restore(saved) }); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		slog.Info("session restored", "tabs", n, "path", a.state.Path())
	}

	a.group.Go(func() error {
		tabs.Autosave(ctx, a.store, a.state, a.cfg.AutosaveDelay)
		return nil
	})
	a.group.Go(func() error {
		if err := a.settings.Watch(ctx); err != nil {
			return fmt.Errorf("settings watcher: %w", err)
		}
		return nil
	})
	return nil
}

func (a *app) handler(doShutdown func()) http.Handler {
	mux := http.NewServeMux()
	a.handlers.RegisterRoutes(mux, doShutdown)
	return handlers.LoggingMiddleware(
		handlers.RequestIDMiddleware(
			handlers.CorsMiddleware(
				handlers.NewRateLimiter(a.cfg).Middleware(
					handlers.AuthMiddleware(a.cfg, mux)))))
}

// stop flushes the session and releases the history database. Pending
// surface work is waited for before the loop goes away.
func (a *app) stop() {
	a.ctrl.Wait()
	a.bridge.Close()
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.group.Wait(); err != nil {
		slog.Warn("background task failed", "err", err)
	}
	if err := a.state.Save(a.store.Get()); err != nil {
		slog.Error("save tabs on shutdown", "err", err)
	}
	if a.historyDB != nil {
		if err := a.historyDB.Close(); err != nil {
			slog.Warn("close history database", "err", err)
		}
	}
}

func runServe(ctx context.Context, cfg *config.RuntimeConfig) error {
	host, err := chromehost.Launch(cfg)
	if err != nil {
		slog.Error("chrome failed to start",
			"err", err,
			"hint", "try SURF_NO_RESTORE=true or delete your profile directory",
			"profile", cfg.ProfileDir,
		)
		return err
	}

	a, err := newApp(cfg, host)
	if err != nil {
		host.Close()
		return err
	}
	if err := a.start(ctx); err != nil {
		host.Close()
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownOnce := &sync.Once{}
	doShutdown := func() {
		shutdownOnce.Do(func() {
			slog.Info("shutting down, saving state...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http shutdown", "err", err)
			}
			a.stop()
			host.Close()
			slog.Info("chrome closed")
		})
	}
	srv.Handler = a.handler(doShutdown)

	setupSignalHandler(doShutdown, func() {
		host.Close()
	})

	slog.Info("surf ready", "addr", cfg.ListenAddr(), "cdp", cfg.CdpURL, "tabs", a.store.Len())
	if cfg.Token != "" {
		slog.Info("auth enabled")
	} else {
		slog.Info("auth disabled (set SURF_TOKEN to enable)")
	}

	go runStartupHealthCheck(cfg)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server", "err", err)
		doShutdown()
		return err
	}
	// ListenAndServe returns as soon as Shutdown starts; wait for the rest.
	doShutdown()
	return nil
}

func setupSignalHandler(shutdownFn func(), forceFn func()) {
	go func() {
		sig := make(chan os.Signal, 2)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		go shutdownFn()
		<-sig
		slog.Warn("force shutdown requested")
		forceFn()
		os.Exit(130)
	}()
}

func runStartupHealthCheck(cfg *config.RuntimeConfig) {
	time.Sleep(500 * time.Millisecond)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/health", cfg.ListenAddr()))
	if err != nil {
		slog.Error("startup health check failed", "err", err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		slog.Info("startup health check passed")
	} else {
		slog.Warn("startup health check unexpected status", "status", resp.StatusCode)
	}
}

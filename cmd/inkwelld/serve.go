package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/inkwell/internal/config"
	"github.com/rickgao/inkwell/internal/database"
	"github.com/rickgao/inkwell/internal/dictionary"
	"github.com/rickgao/inkwell/internal/editor"
	"github.com/rickgao/inkwell/internal/export"
	"github.com/rickgao/inkwell/internal/prefs"
	"github.com/rickgao/inkwell/internal/router"
	"github.com/rickgao/inkwell/internal/transport"
	"github.com/rickgao/inkwell/internal/version"
	"github.com/rickgao/inkwell/internal/watcher"
	"github.com/rickgao/inkwell/internal/workspace"
	"github.com/rickgao/inkwell/internal/writer"
)

const stopTimeout = 10 * time.Second

func runServe(ctx context.Context, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.LoadAndValidate(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	logger.Info("starting inkwelld",
		"version", version.Version,
		"commit", version.Commit,
		"config", opts.configPath,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Preferences
	home, _ := os.UserHomeDir()
	store, err := prefs.Open(cfg.Preferences.Path, map[string]string{
		"home":          home,
		"configFile":    opts.configPath,
		"preferences":   cfg.Preferences.Path,
		"dataDir":       config.DataDir(),
		"dictionaryDir": cfg.Dictionaries.Path,
		"version":       version.Version,
		"platform":      runtime.GOOS,
	}, logger.With("component", "prefs"))
	if err != nil {
		logger.Error("failed to load preferences", "error", err)
		return err
	}

	// Autosave storage
	db, err := database.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to open autosave database", "error", err, "path", cfg.Storage.Path)
		return err
	}
	defer db.Close()
	logger.Info("autosave database ready", "path", cfg.Storage.Path)

	queue := router.NewGrowableBuffer[writer.Snapshot](cfg.Autosave.BufferSize, 0)
	autosaver := writer.NewAutosaveWriter(writer.Config{
		BatchSize:     cfg.Autosave.BatchSize,
		FlushInterval: cfg.Autosave.FlushInterval,
	}, queue, database.NewAutosaveStore(db), logger.With("component", "autosave"))

	// Controller
	ctrl, err := editor.New(workspace.Options{Extensions: cfg.Workspace.Extensions}, editor.Deps{
		Prefs:        store,
		Autosave:     autosaver,
		Queue:        queue,
		Exporter:     export.New(logger.With("component", "export")),
		Dictionaries: dictionary.NewLoader(cfg.Dictionaries.Path, logger.With("component", "dictionary")),
	}, logger.With("component", "editor"))
	if err != nil {
		return err
	}

	// Transport and router
	hub := transport.NewHub(transport.Config{
		ReadLimit:    cfg.Server.ReadLimit,
		WriteTimeout: cfg.Server.WriteTimeout,
		PongWait:     cfg.Server.PongWait,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		OutboxSize:   cfg.Server.OutboxSize,
		Token:        cfg.Server.Token,
	}, logger.With("component", "transport"))

	r, err := router.NewRouter(router.Config{
		InboundBufferSize: cfg.Router.InboundBufferSize,
		MaxInboundBuffer:  router.DefaultConfig().MaxInboundBuffer,
	}, ctrl, store, hub, logger.With("component", "router"))
	if err != nil {
		logger.Error("failed to create router", "error", err)
		return err
	}
	ctrl.SetNotifier(func(command string, content any) {
		r.Send(command, content)
	})

	roots := append(append([]string{}, cfg.Workspace.Roots...), opts.roots...)
	ctrl.Restore(roots...)

	w := watcher.New(watcher.Config{Interval: cfg.Workspace.RescanInterval}, ctrl, logger.With("component", "watcher"))

	srv := transport.NewServer(cfg.Server.Addr(), hub, func() any {
		return map[string]any{
			"router":   r.Stats(),
			"autosave": autosaver.Stats(),
			"watcher":  w.Stats(),
			"roots":    len(ctrl.Roots()),
		}
	}, logger.With("component", "http"))

	// Start components
	if err := autosaver.Start(ctx); err != nil {
		logger.Error("failed to start autosave writer", "error", err)
		return err
	}
	if err := r.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		return err
	}
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start watcher", "error", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	logger.Info("inkwelld running",
		"addr", cfg.Server.Addr(),
		"roots", len(ctrl.Roots()),
	)

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("server error", "error", runErr)
	}

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := w.Stop(shutdownCtx); err != nil {
		logger.Warn("watcher stop failed", "error", err)
	}
	if err := r.Stop(shutdownCtx); err != nil {
		logger.Warn("router stop failed", "error", err)
	}
	if err := autosaver.Stop(shutdownCtx); err != nil {
		logger.Warn("autosave writer stop failed", "error", err)
	}

	logger.Info("inkwelld stopped")
	return runErr
}

package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"glimpse/internal/activity"
	"glimpse/internal/archive"
	"glimpse/internal/capture"
	"glimpse/internal/config"
	"glimpse/internal/daemon"
	"glimpse/internal/deps"
	"glimpse/internal/detector"
	"glimpse/internal/enrich"
	"glimpse/internal/entries"
	"glimpse/internal/ipc"
	"glimpse/internal/logging"
	"glimpse/internal/notifications"
	"glimpse/internal/scheduler"
	"glimpse/internal/services/embedding"
	"glimpse/internal/services/ocr"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// ConfigPath is watched for changes; empty disables live reload.
	ConfigPath  string
	LogLevel    string
	Development bool
}

// Run starts the glimpse daemon runtime loop and blocks until SIGINT, SIGTERM
// or cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("glimpse-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldSessionID, uuid.NewString()))

	currentLog := filepath.Join(cfg.Paths.LogDir, "glimpse.log")
	if err := ensureCurrentLogPointer(currentLog, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update glimpse.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, "glimpse-*.log", cfg.Logging.RetentionDays, logPath)
	logDependencySnapshot(logger, cfg)

	settings, err := newSettings(signalCtx, cfg, opts.ConfigPath, logger)
	if err != nil {
		return err
	}

	store, err := entries.Open(cfg, entries.WithLogger(logger))
	if err != nil {
		logger.Error("open entry store", logging.Error(err))
		return err
	}

	textExtractor, embedder, err := BuildCollaborators(cfg)
	if err != nil {
		store.Close()
		return err
	}

	det := detector.New(scheduler.DetectorThresholds(cfg))
	sched := scheduler.New(scheduler.Dependencies{
		Capturer: capture.NewScreen(),
		Activity: activity.NewX11(cfg.Activity.IdleCommand, cfg.Activity.WindowCommand),
		Detector: det,
		Enricher: enrich.New(settings, store, textExtractor, embedder, logger),
		Settings: settings,
		Logger:   logger,
	})

	d, err := daemon.New(daemon.Dependencies{
		Settings:  settings,
		Store:     store,
		Scheduler: sched,
		Archiver:  archive.New(settings, store, logger, archive.WithNotifier(notifications.NewService(cfg))),
		Detector:  det,
		Logger:    logger,
		LogPath:   currentLog,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	// Only the lock holder owns the pid file.
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("glimpse daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// newSettings returns a file-watching provider when the daemon was started
// from a config file, and a static one otherwise.
func newSettings(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) (config.Provider, error) {
	if path == "" {
		return config.NewStatic(cfg), nil
	}
	provider := config.NewFileProvider(path, cfg, logger)
	if err := provider.Watch(ctx); err != nil {
		logging.WarnWithContext(logger, "config watch unavailable", "config_watch_failed",
			logging.Error(err),
			logging.String("config_path", path),
			logging.String(logging.FieldImpact, "settings changes require a daemon restart"),
		)
	}
	return provider, nil
}

// BuildCollaborators constructs the OCR and embedding collaborators enabled
// in cfg. Disabled collaborators are returned as nil interfaces.
func BuildCollaborators(cfg *config.Config) (enrich.TextExtractor, enrich.Embedder, error) {
	var (
		textExtractor enrich.TextExtractor
		embedder      enrich.Embedder
	)
	if cfg.OCR.Enabled {
		client, err := ocr.New(cfg.OCR.Binary, cfg.OCR.Languages, cfg.OCR.TimeoutSeconds)
		if err != nil {
			return nil, nil, fmt.Errorf("ocr: %w", err)
		}
		textExtractor = client
	}
	if cfg.Embedding.Enabled {
		client, err := embedding.New(embedding.Config{
			BaseURL:       cfg.Embedding.BaseURL,
			APIKey:        cfg.Embedding.APIKey,
			Model:         cfg.Embedding.Model,
			Dimensions:    cfg.Embedding.Dimensions,
			Timeout:       time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
			MaxInputChars: cfg.Embedding.MaxInputChars,
			MaxRetries:    2,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("embedding: %w", err)
		}
		embedder = client
	}
	return textExtractor, embedder, nil
}

// ensureCurrentLogPointer points current (glimpse.log) at the per-run log.
func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ocr_enabled", cfg.OCR.Enabled),
		logging.Bool("embedding_enabled", cfg.Embedding.Enabled),
		logging.Bool("archive_enabled", cfg.Archive.Enabled),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs, logging.Bool(status.Name+"_available", status.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

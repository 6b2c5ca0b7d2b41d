package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"inpaintd/internal/common/fsutil"
	"inpaintd/internal/config"
	"inpaintd/internal/events"
	"inpaintd/internal/httpapi"
	"inpaintd/internal/imgproc"
	"inpaintd/internal/manager"
	"inpaintd/internal/pipeline"
	"inpaintd/internal/plugins"
	"inpaintd/internal/schema"
)

const shutdownTimeout = 10 * time.Second

func newLogger(cfg config.Config) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	var closer io.Closer
	if cfg.LogFile != "" {
		path, err := fsutil.ExpandHome(cfg.LogFile)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		w = zerolog.MultiLevelWriter(w, lj)
		closer = lj
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl), closer, nil
}

// logPublisher records manager lifecycle events in the process log.
type logPublisher struct{ log zerolog.Logger }

func (p logPublisher) Publish(e manager.Event) {
	ev := p.log.Info()
	if e.Name == manager.EventSwitchFailed {
		ev = p.log.Warn()
	}
	ev.Str("backend", e.Backend).Fields(e.Fields).Msg(e.Name)
}

func run(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	modelsDir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return err
	}
	outputDir, err := fsutil.ExpandHome(cfg.OutputDir)
	if err != nil {
		return err
	}
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	input, err := fsutil.ExpandHome(cfg.Input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		ModelsDir:        modelsDir,
		RunnerURL:        cfg.RunnerURL,
		MaxPixels:        cfg.MaxPixels,
		DisableSwitch:    cfg.DisableModelSwitch,
		EnableControlnet: cfg.EnableControlnet,
		ControlnetMethod: cfg.ControlnetMethod,
		Publisher:        logPublisher{log: log.With().Str("component", "lifecycle").Logger()},
		Logger:           &log,
	})
	defer mgr.Close()
	if _, err := mgr.Activate(ctx, cfg.Model); err != nil {
		return fmt.Errorf("activate %s: %w", cfg.Model, err)
	}

	reg, err := plugins.FromSettings(cfg.Plugins, log)
	if err != nil {
		return err
	}
	hub := events.NewHub(log.With().Str("component", "events").Logger(), 0)

	svc := pipeline.New(pipeline.Options{
		Models:             mgr,
		Plugins:            reg,
		Builder:            schema.NewBuilder(cfg.StrictForm),
		Events:             hub,
		OutputDir:          outputDir,
		InputPath:          input,
		Quality:            cfg.Quality,
		AlphaInterpolation: imgproc.Linear,
		IsDesktop:          cfg.Desktop,
		Logger:             &log,
	})

	httpapi.SetLogger(log)
	httpapi.SetDefaultLogLevel(requestLogLevel(cfg.LogLevel))
	httpapi.SetMaxBodyBytes(int64(cfg.MaxBodyMB) << 20)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins,
		[]string{http.MethodGet, http.MethodPost, http.MethodOptions}, []string{"*"})
	httpapi.SetBaseContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(svc, http.HandlerFunc(hub.ServeWS)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", cfg.Model).Strs("plugins", reg.Names()).Msg("inpaintd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

// requestLogLevel maps the process log level onto per-request logging.
func requestLogLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return "debug"
	case "info":
		return "info"
	case "warn", "error":
		return "error"
	}
	return "off"
}

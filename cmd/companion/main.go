package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/catdetector/companion/internal/api"
	"github.com/catdetector/companion/internal/config"
	"github.com/catdetector/companion/internal/controller"
	"github.com/catdetector/companion/internal/influx"
	"github.com/catdetector/companion/internal/logging"
	"github.com/catdetector/companion/internal/monitor"
	"github.com/catdetector/companion/internal/session"
	"github.com/catdetector/companion/internal/settings"
	"github.com/catdetector/companion/pkg/core"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "companion"
)

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	flag.Parse()
	os.Exit(run(*configDir, os.Stdin, os.Stdout))
}

func run(configDir string, in io.Reader, out io.Writer) int {
	start := time.Now()
	configErr := config.Load(configDir)

	slogManager := logging.NewSlogManager()

	// the controller is built after the loggers it logs through
	var current atomic.Pointer[controller.Service]
	slogManager.SetContextProvider(func() []slog.Attr {
		if svc := current.Load(); svc != nil {
			return svc.LogAttrs()
		}
		return nil
	})

	logsDir := config.GetString("logsDir")
	var logFile io.Writer
	if f, err := logging.OpenLogFile(logsDir, AppName, start); err != nil {
		fmt.Fprintf(out, "warning: logging to stdout: %v\n", err)
	} else {
		defer f.Close()
		logFile = f
	}

	var gelfSink io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGELFWriter(gl.Address)
		if err != nil {
			fmt.Fprintf(out, "warning: graylog disabled: %v\n", err)
		} else {
			gelfSink = w
		}
	}

	slogManager.Setup(logFile, config.GetString("logLevel"), gelfSink)
	logger := slogManager.Logger()
	zero := slogManager.ZeroLogger()

	logger.Info("Starting up", "app", AppName, "version", CurrentVersion, "buildDate", BuildDate)
	if configErr != nil {
		logger.Warn("Using default configuration", "error", configErr)
	}

	store, err := settings.NewStore(config.GetSettingsConfig(), zero)
	if err != nil {
		logger.Error("Settings store unavailable, settings will not survive a restart", "error", err)
		fmt.Fprintf(out, "warning: settings will not be saved: %v\n", err)
		store = settings.NewMemoryStore()
	}
	defer store.Close()

	var telemetry controller.Telemetry
	influxManager := influx.NewManager(config.GetInfluxConfig(), zero, filepath.Join(logsDir, "telemetry.lp.gz"))
	switch err := influxManager.Connect(); {
	case errors.Is(err, influx.ErrDisabled):
	case err != nil:
		logger.Error("Telemetry unavailable", "error", err)
	default:
		telemetry = influxManager
		defer influxManager.Close()
	}

	sc := config.GetSessionConfig()
	script := config.GetScriptDefaults()
	svc, err := controller.NewService(controller.Dependencies{
		Store:     store,
		NewClient: session.NewPahoFactory(logger),
		Session: session.Config{
			Scheme:         sc.Scheme,
			Path:           sc.Path,
			ClientIDPrefix: sc.ClientIDPrefix,
			ReconnectDelay: sc.ReconnectDelay,
			ConnectTimeout: sc.ConnectTimeout,
			PublishQoS:     sc.PublishQoS,
		},
		Script:         core.ScriptConfig{Confidence: script.Confidence, Cooldown: script.Cooldown},
		Telemetry:      telemetry,
		Logger:         logger,
		DispatchLogger: logging.NewDispatcherLogger(zero),
	})
	if err != nil {
		logger.Error("Failed to start controller", "error", err)
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
	current.Store(svc)
	defer svc.Close()

	monitorDeps := monitor.Dependencies{
		Source:    svc,
		Logger:    logger,
		StatusDir: logsDir,
		Interval:  config.GetMonitorInterval(),
	}
	if gs, ok := store.(*settings.GormStore); ok {
		monitorDeps.DB = gs.DB()
	}
	mon := monitor.NewService(monitorDeps)
	if err := mon.Start(); err != nil {
		logger.Error("Failed to start status monitor", "error", err)
	} else {
		defer mon.Stop()
	}

	if apiCfg := config.GetAPIConfig(); apiCfg.Enabled {
		srv := &http.Server{
			Addr:              apiCfg.Address,
			Handler:           api.NewRouter(&api.App{Controller: svc, Logger: logger}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Status API listening", "address", apiCfg.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status API stopped", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	sh := NewShell(svc, in, out)
	if err := svc.Start(); errors.Is(err, controller.ErrBrokerNotConfigured) {
		if !sh.PromptBroker() {
			return 0
		}
	} else if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}

	sh.Run()
	logger.Info("Shutting down")
	return 0
}

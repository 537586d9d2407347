// Package main is the entry point for the meshview model viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/meshview/internal/app"
	"github.com/dshills/meshview/internal/config"
	"github.com/dshills/meshview/internal/log"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		logLevel    string
		logFile     string
		headless    bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&logFile, "log-file", "", "Log destination (default stderr)")
	flag.BoolVar(&headless, "headless", false, "Run without the terminal UI")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "meshview - terminal 3D model browser\n\n")
		fmt.Fprintf(os.Stderr, "Usage: meshview [options] [model]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  meshview                 Restore the last session\n")
		fmt.Fprintf(os.Stderr, "  meshview duck.glb        Open a model\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("meshview %s (%s)\n", version, commit)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	application, err := app.New(app.Options{
		Config:   cfg,
		Logger:   logger,
		Headless: headless,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		application.Stop()
		cancel()
	}()

	// Open the model from the command line, or fall back to the saved
	// session.
	if model := flag.Arg(0); model != "" {
		if err := application.Open(ctx, model); err != nil {
			logger.Error("open %s: %v", model, err)
		}
	} else if err := application.RestoreSession(ctx); err != nil {
		logger.Warn("restore session: %v", err)
	}

	runErr := application.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}

	if runErr != nil && runErr != context.Canceled {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	return 0
}

// buildLogger creates the root logger from config, returning a cleanup
// function for file-backed output.
func buildLogger(cfg *config.Config) (*log.Logger, func(), error) {
	level := log.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.File == "" {
		return log.New(log.Config{Level: level}), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := log.New(log.Config{Level: level, Output: f})
	return logger, func() { f.Close() }, nil
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tickloop/autosplit/internal/config"
	"github.com/tickloop/autosplit/internal/host"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Initialize logger
	logger := zap.L()
	if *logLevel == "debug" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}

	defer logger.Sync()

	logger.Info("Starting splitd",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	// Load configuration
	cfg, err := config.LoadHostConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the host daemon
	h, err := host.New(ctx, cfg, host.NewProcessProvider(), logger)
	if err != nil {
		logger.Fatal("Failed to create host", zap.Error(err))
	}

	// SIGINT/SIGTERM stop the daemon. SIGUSR1/SIGUSR2 pause and resume
	// the run timer from outside the splitter.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGUSR1:
				h.Pause()
			case syscall.SIGUSR2:
				h.Resume()
			default:
				logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
				cancel()
				return
			}
		}
	}()

	if err := h.Run(ctx); err != nil {
		logger.Fatal("Host error", zap.Error(err))
	}

	logger.Info("Host shutdown complete")
}

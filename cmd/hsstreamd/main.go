package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

const defaultConfigPath = "config/hsstream.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	os.Exit(run(*configPath))
}

// run starts the daemon and returns the process exit code
func run(configPath string) int {
	slog.Info("starting stream manager", "config", configPath)

	svc, err := newService(configPath)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Run(ctx)
	}()

	exitCode := 0
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		switch {
		case err != nil:
			slog.Error("pipeline failed", "error", err)
			exitCode = 1
		case svc.cfg.Stream.Livestream:
			slog.Warn("livestream ended unexpectedly")
		default:
			// recorded sets: keep the final score and deck for the next run
			slog.Info("recorded stream finished, saving state")
		}
	}
	cancel()

	// a second signal abandons the graceful shutdown
	go func() {
		sig := <-sigChan
		slog.Warn("forced exit", "signal", sig)
		os.Exit(2)
	}()

	shutdownTimeout := svc.ShutdownTimeout()
	slog.Info("shutting down", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		return 1
	}

	st := svc.mgr.Status()
	slog.Info("stream manager stopped",
		"wins", st.Wins,
		"losses", st.Losses,
		"deck_cards", st.DeckCards,
		"passed_frames", st.PassedFrames,
	)
	return exitCode
}

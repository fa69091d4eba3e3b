package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/warden-app/warden"
)

// runSupervisor is the run command body: it owns the supervisor for the
// whole process lifetime and blocks until a termination signal arrives.
func runSupervisor(configPath string, flags RunFlags) error {
	cfg := warden.DefaultConfig()
	if configPath != "" {
		loaded, err := warden.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flags.Script != "" {
		cfg.Service.Script = flags.Script
	}
	if flags.WorkDir != "" {
		cfg.Service.WorkDir = flags.WorkDir
	}

	warden.SetupLogging(cfg)

	sup, err := warden.New(cfg)
	if err != nil {
		return err
	}
	defer sup.Close()

	primary, err := sup.AcquireInstance(func() {
		slog.Info("another launch requested focus")
	})
	if err != nil {
		return err
	}
	if !primary {
		fmt.Println("warden already running, focused existing instance")
		return nil
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if err := warden.RegisterMetricsDefault(); err != nil {
			slog.Warn("metrics registration failed", "error", err)
		}
		if cfg.Metrics.Listen != "" {
			go func() {
				if err := warden.ServeMetrics(cfg.Metrics.Listen); err != nil {
					slog.Warn("metrics server stopped", "error", err)
				}
			}()
		}
	}

	if cfg.Server != nil && cfg.Server.Listen != "" {
		srv, err := warden.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, sup)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		slog.Info("control API listening", "addr", cfg.Server.Listen, "base", cfg.Server.BasePath)
	}

	sup.HandleReady(context.Background())
	slog.Info("supervisor running", "script", cfg.Service.Script, "handshake", cfg.HandshakeFile)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("termination signal received", "signal", sig.String())

	// Runs the full shutdown sequence and exits the process.
	sup.HandleExitRequest(context.Background())
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/config"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/observability"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/web/handlers"
)

const version = "0.1.0"

func main() {
	cfgPath := flag.String("config", "", "Config file path (default: ~/.agora/config.yaml)")
	port := flag.Int("port", 0, "Server port (default: from config, 8000)")
	provider := flag.String("provider", "", "Model backend (default: gateway.provider from config)")
	debug := flag.Bool("debug", false, "Enable debug logging and prompt_used in replies")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *cfgPath != "" {
		cfg, err = config.LoadFrom(*cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := observability.ParseLevel(cfg.LogLevel)
	if *debug {
		level = slog.LevelDebug
	}
	observability.InitLogger(os.Stdout, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		tp, err := observability.InitTracer(ctx, cfg.Telemetry.ServiceName, version)
		if err != nil {
			slog.Warn("Tracing disabled", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					slog.Error("Failed to shut down tracer", "error", err)
				}
			}()
		}
	}

	slog.Info("Initializing engine", "store", cfg.Store.Driver, "provider", cfg.Gateway.Provider)
	eng, cleanup, err := cfg.CreateEngine(ctx, *provider)
	if err != nil {
		slog.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	h := handlers.New(eng, handlers.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Debug:          *debug,
	})

	p := cfg.Server.Port
	if *port != 0 {
		p = *port
	}
	addr := fmt.Sprintf(":%d", p)

	slog.Info("Starting agora server", "url", fmt.Sprintf("http://localhost%s", addr), "provider", eng.Provider(), "model", eng.Model())
	if err := handlers.ListenAndServe(ctx, addr, h.Router()); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

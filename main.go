package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codetesla51/poolserver/config"
	"github.com/codetesla51/poolserver/logger"
	"github.com/codetesla51/poolserver/metrics"
	"github.com/codetesla51/poolserver/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	port := flag.Int("port", config.DefaultPort, "Port to listen on")
	workers := flag.Int("workers", config.DefaultWorkers, "Worker pool size (also the queue capacity)")
	logLevel := flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	fileRoot := flag.String("root", config.DefaultFileRoot, "Directory served by file requests")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error loading configuration:", err)
		os.Exit(1)
	}

	// Explicit flags win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "workers":
			cfg.Server.Workers = *workers
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "root":
			cfg.Server.FileRoot = *fileRoot
		}
	})
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	if *printConfig {
		out, err := config.Dump(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	logger.SetLevel(cfg.Logging.Level)
	if err := logger.Configure(cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Fprintln(os.Stderr, "error configuring logger:", err)
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	srv, err := server.Listen(cfg.Server.Host, cfg.Server.Port, cfg.Server.Workers,
		server.WithConfig(&server.Config{
			ReadTimeout:   cfg.Server.ReadTimeout,
			WriteTimeout:  cfg.Server.WriteTimeout,
			FileRoot:      cfg.Server.FileRoot,
			AcceptRate:    cfg.Server.AcceptRate,
			AcceptBurst:   cfg.Server.AcceptBurst,
			EnableLogging: cfg.Server.RequestLog,
		}),
		server.WithMetrics(metrics.NewServerMetrics()),
	)
	if err != nil {
		logger.Error("server setup failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server listening", "addr", srv.Addr().String(), "workers", cfg.Server.Workers, "root", cfg.Server.FileRoot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.NewServer(cfg.Server.Host, cfg.Metrics.Port).Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

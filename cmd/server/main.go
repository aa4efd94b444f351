package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sagoresarker/netcheck/internal/config"
	"github.com/sagoresarker/netcheck/internal/handlers"
	"github.com/sagoresarker/netcheck/internal/limiter"
	"github.com/sagoresarker/netcheck/internal/logging"
	"github.com/sagoresarker/netcheck/internal/orgs"
	"github.com/sagoresarker/netcheck/internal/probe"
	"github.com/sagoresarker/netcheck/internal/server"
	"github.com/sagoresarker/netcheck/internal/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging.Sink, cfg.Logging.SyslogAddress, cfg.Logging.Tag)
	if err != nil {
		log.Fatalf("set up logging: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Endpoint: cfg.Telemetry.Endpoint,
		Service:  cfg.Telemetry.Service,
		Version:  version,
	})
	if err != nil {
		logger.Fatalf("set up telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}()

	resolver, err := orgs.New(orgs.Config{
		Backend:       cfg.Orgs.Backend,
		DNSServer:     cfg.Orgs.DNSServer,
		Timeout:       cfg.Orgs.Timeout,
		GeoIPDatabase: cfg.Orgs.GeoIPDatabase,
	})
	if err != nil {
		logger.Fatalf("set up organization resolver: %v", err)
	}
	if c, ok := resolver.(io.Closer); ok {
		defer c.Close()
	}

	prober := probe.NewClient(probe.Options{
		PingCount:         cfg.Probe.PingCount,
		PingInterval:      cfg.Probe.PingInterval,
		PingWait:          cfg.Probe.PingWait,
		TracerouteQueries: cfg.Probe.TracerouteQueries,
		MaxHops:           cfg.Probe.MaxHops,
		HopWait:           cfg.Probe.HopWait,
		TracerouteTimeout: cfg.Probe.TracerouteTimeout,
	})

	mux := handlers.NewMux(handlers.Deps{
		Prober:         prober,
		Resolver:       resolver,
		Limiter:        limiter.NewProbeLimiter(cfg.Probe.MaxConcurrent),
		Tracer:         tp.Tracer(),
		Logger:         logger,
		OrgParallelism: cfg.Orgs.Parallelism,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	rt := server.New(mux, server.Options{
		Addr:            cfg.ListenAddr(),
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Logger:          logger,
	})

	logger.Printf("Organization resolver %s, up to %d concurrent probes.", cfg.Orgs.Backend, cfg.Probe.MaxConcurrent)
	if err := rt.ListenAndServe(ctx); err != nil {
		logger.Printf("server error: %v", err)
		os.Exit(1)
	}
	logger.Printf("Stopped.")
}

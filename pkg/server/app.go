// Package server owns the application lifecycle: start order, signal
// handling, and graceful shutdown.
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"PortPulse/internal/aggregate"
	"PortPulse/internal/bridge"
	"PortPulse/internal/lifecycle"
	mid "PortPulse/internal/middleware"
	"PortPulse/pkg/cache"
	pkgch "PortPulse/pkg/clickhouse"
	"PortPulse/pkg/config"
	xhttp "PortPulse/pkg/http"
	applogger "PortPulse/pkg/logger"
)

// App bundles the long-running components. Optional components (feed,
// bridge, archive client) are nil when disabled in config.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	handler   xhttp.Handler
	manager   *lifecycle.Manager
	pipeline  *mid.FeedPipeline
	bridge    *bridge.Bridge
	bid       *aggregate.BID
	chClient  *pkgch.Client
	tickCache cache.Service

	httpServer *xhttp.Server
}

// New creates an App.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	manager *lifecycle.Manager,
	pipeline *mid.FeedPipeline,
	br *bridge.Bridge,
	bid *aggregate.BID,
	chClient *pkgch.Client,
	tickCache cache.Service,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		manager:   manager,
		pipeline:  pipeline,
		bridge:    br,
		bid:       bid,
		chClient:  chClient,
		tickCache: tickCache,
	}
}

// Run starts every component and blocks until an interrupt arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.log, a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)

	go a.manager.Start(ctx)
	a.log.Info("lifecycle sweeps scheduled")

	if a.pipeline != nil {
		go func() {
			if err := a.pipeline.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("feed pipeline stopped", applogger.Error(err))
			}
		}()
		a.log.Info("feed pipeline started", applogger.Strings("symbols", a.cfg.Feed.Symbols))
	}
	if a.bridge != nil {
		a.log.Info("kafka bridge attached", applogger.String("topic", a.cfg.Bridge.Topic))
	}

	if err := a.httpServer.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops components in reverse start order. Errors are logged but
// never abort the remaining steps.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			a.log.Warn("bridge close error", applogger.Error(err))
		}
	}

	a.bid.Close()

	if a.tickCache != nil {
		if err := a.tickCache.Close(); err != nil {
			a.log.Warn("tick cache close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

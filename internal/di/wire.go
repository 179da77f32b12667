//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PortPulse/pkg/config"
	"PortPulse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideHub,

		// Infrastructure clients
		ProvideTickCache,
		ProvideClickHouseClient,
		ProvideArchiveSink,
		ProvideKafkaProducer,

		// Pipeline components
		ProvideLifecycleManager,
		ProvideRepository,
		ProvideBID,
		ProvideRiskEngine,
		ProvideBridge,
		ProvideMarketStream,
		ProvideFeedPipeline,

		// Use cases and HTTP surface
		ProvideTradeGuard,
		ProvideHTTPHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}

// Package di assembles the application graph.
package di

import (
	"context"
	"fmt"
	"time"

	"PortPulse/internal/aggregate"
	"PortPulse/internal/bridge"
	domrepo "PortPulse/internal/domain/repository"
	"PortPulse/internal/handler/api"
	"PortPulse/internal/ingest"
	"PortPulse/internal/lifecycle"
	mid "PortPulse/internal/middleware"
	internalrepo "PortPulse/internal/repository"
	"PortPulse/internal/risk"
	"PortPulse/internal/service/feed"
	"PortPulse/internal/usecase"
	"PortPulse/pkg/bus"
	"PortPulse/pkg/cache"
	pkgch "PortPulse/pkg/clickhouse"
	"PortPulse/pkg/config"
	xhttp "PortPulse/pkg/http"
	pkgkafka "PortPulse/pkg/kafka"
	"PortPulse/pkg/logger"
	"PortPulse/pkg/metrics"
	"PortPulse/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideHub creates the event backbone.
func ProvideHub(l *logger.Logger) *bus.Hub {
	return bus.New(l)
}

// ProvideTickCache returns Redis when configured, an in-process cache
// otherwise.
func ProvideTickCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.TickCache.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.TickCache.Addr),
		cache.WithRedisAuth(cfg.TickCache.Password, cfg.TickCache.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("tick cache: %w", err)
	}
	return c, nil
}

// ProvideClickHouseClient connects the archive database. Returns nil when
// the archive sink is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.Archive.Host),
		pkgch.WithPort(cfg.Archive.Port),
		pkgch.WithDatabase(cfg.Archive.Database),
		pkgch.WithCredentials(cfg.Archive.User, cfg.Archive.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.Archive.DialTimeout, cfg.Archive.ReadTimeout),
		pkgch.WithAsyncInsert(cfg.Archive.AsyncInsert, cfg.Archive.WaitForAsync),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideArchiveSink builds the durable archive sink on ClickHouse. Nil when
// no client is configured.
func ProvideArchiveSink(client *pkgch.Client, l *logger.Logger) (domrepo.ArchiveSink, error) {
	if client == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sink, err := internalrepo.NewCHArchiveSink(ctx, client, l)
	if err != nil {
		return nil, fmt.Errorf("archive sink: %w", err)
	}
	return sink, nil
}

// ProvideLifecycleManager creates the tiered storage manager.
func ProvideLifecycleManager(cfg *config.Config, l *logger.Logger, rec domrepo.Metrics, hub *bus.Hub, sink domrepo.ArchiveSink) *lifecycle.Manager {
	opts := []lifecycle.Option{
		lifecycle.WithSweepInterval(cfg.Storage.SweepInterval),
		lifecycle.WithCompressionWorkers(cfg.Storage.CompressionWorkers),
	}
	if sink != nil {
		opts = append(opts, lifecycle.WithSink(sink))
	}
	return lifecycle.NewManager(l, rec, hub, cfg.Storage.Categories, opts...)
}

// ProvideRepository creates the ingestion component, wired into the
// lifecycle store and the tick cache.
func ProvideRepository(cfg *config.Config, l *logger.Logger, rec domrepo.Metrics, hub *bus.Hub, manager *lifecycle.Manager, tickCache cache.Service) *ingest.Repository {
	opts := []ingest.Option{ingest.WithRecordStore(manager)}
	if tickCache != nil {
		ttl := cfg.TickCache.TTL
		if ttl <= 0 {
			ttl = time.Minute
		}
		opts = append(opts, ingest.WithTickCache(tickCache, ttl))
	}
	return ingest.New(hub, l, rec, opts...)
}

// ProvideBID creates the state aggregation component.
func ProvideBID(cfg *config.Config, hub *bus.Hub, l *logger.Logger, rec domrepo.Metrics) *aggregate.BID {
	agg := aggregate.DefaultConfig()
	if cfg.Aggregation.ConcentrationAlertThreshold > 0 {
		agg.ConcentrationAlertThreshold = cfg.Aggregation.ConcentrationAlertThreshold
	}
	if cfg.Aggregation.LossAlertPct != 0 {
		agg.LossAlertPct = cfg.Aggregation.LossAlertPct
	}
	if cfg.Aggregation.GainAlertPct != 0 {
		agg.GainAlertPct = cfg.Aggregation.GainAlertPct
	}
	return aggregate.New(agg, hub, l, rec)
}

// ProvideRiskEngine creates the policy engine from config.
func ProvideRiskEngine(cfg *config.Config) *risk.Engine {
	return risk.NewEngine(risk.Config{
		BlacklistEnforced:         cfg.Risk.BlacklistEnforced,
		Blacklist:                 cfg.Risk.Blacklist,
		MinimumThresholds:         cfg.Risk.MinimumThresholds,
		MinPrice:                  cfg.Risk.MinPrice,
		MinQuantity:               cfg.Risk.MinQuantity,
		ConcentrationLimitEnabled: cfg.Risk.ConcentrationLimitEnabled,
		ConcentrationCap:          cfg.Risk.ConcentrationCap,
		SoftPullEnabled:           cfg.Risk.SoftPullEnabled,
		HardPullEnabled:           cfg.Risk.HardPullEnabled,
		DailyDrawdownGuard:        cfg.Risk.DailyDrawdownGuard,
		MaxDailyLoss:              cfg.Risk.MaxDailyLoss,
	})
}

// ProvideKafkaProducer creates the bridge producer. Nil when the bridge is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Bridge.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Bridge.Brokers),
		pkgkafka.WithCompression(cfg.Bridge.Compression),
		pkgkafka.WithRequiredAcks(cfg.Bridge.RequiredAcks),
		pkgkafka.WithBatch(cfg.Bridge.BatchSize, cfg.Bridge.Linger),
		pkgkafka.WithAsync(cfg.Bridge.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideBridge attaches the Kafka mirror to the hub. Nil when no producer
// is configured.
func ProvideBridge(cfg *config.Config, l *logger.Logger, hub *bus.Hub, producer *pkgkafka.Producer) *bridge.Bridge {
	if producer == nil {
		return nil
	}
	return bridge.New(l, hub, producer, cfg.Bridge.Topic)
}

// ProvideMarketStream creates the WebSocket quote feed. Nil when disabled.
func ProvideMarketStream(cfg *config.Config, l *logger.Logger) domrepo.MarketStream {
	if !cfg.Feed.Enabled {
		return nil
	}
	return feed.New(l,
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Symbols,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideFeedPipeline builds the throttling buffer between the feed and
// ingestion. Nil when there is no stream.
func ProvideFeedPipeline(cfg *config.Config, l *logger.Logger, rec domrepo.Metrics, stream domrepo.MarketStream, repo *ingest.Repository) *mid.FeedPipeline {
	if stream == nil {
		return nil
	}
	opts := []mid.PipelineOption{mid.WithBatch(cfg.Feed.BufferSize, time.Second)}
	if cfg.Feed.MaxRPS > 0 {
		opts = append(opts, mid.WithMaxRPS(cfg.Feed.MaxRPS))
	}
	return mid.NewFeedPipeline(l, rec, stream, repo, opts...)
}

// ProvideTradeGuard creates the trade check usecase.
func ProvideTradeGuard(l *logger.Logger, bid *aggregate.BID, engine *risk.Engine, rec domrepo.Metrics) *usecase.TradeGuard {
	return usecase.NewTradeGuard(l, bid, engine, rec)
}

// ProvideHTTPHandler creates the API handler.
func ProvideHTTPHandler(l *logger.Logger, repo *ingest.Repository, bid *aggregate.BID, guard *usecase.TradeGuard, manager *lifecycle.Manager) xhttp.Handler {
	return api.NewPortfolioHandler(l, repo, bid, guard, manager)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	handler xhttp.Handler,
	manager *lifecycle.Manager,
	pipeline *mid.FeedPipeline,
	br *bridge.Bridge,
	bid *aggregate.BID,
	chClient *pkgch.Client,
	tickCache cache.Service,
) *server.App {
	return server.New(cfg, l, handler, manager, pipeline, br, bid, chClient, tickCache)
}

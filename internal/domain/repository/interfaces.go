package repository

import (
	"context"

	"PortPulse/internal/domain/models"
)

// Metrics records pipeline observability counters.
type Metrics interface {
	RecordSnapshot(outcome string) // "validated" or "degraded"
	RecordValidationError(kind string)
	RecordTicks(accepted, dropped int)
	RecordAlert(severity string)
	RecordDecision(action string)
	RecordLifecycle(category, transition string, count int)
	RecordLatency(op string, seconds float64)
	RecordEquity(value float64)
}

// RecordStore accepts categorized items for lifecycle management. The whole
// batch is stored or nothing is.
type RecordStore interface {
	Append(ctx context.Context, category string, items ...any) error
}

// MarketStream is a live market data source. Read returns a tick channel
// and an error channel; both close when the stream ends.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.RawTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ArchiveSink persists cold archives outside process memory. Sink failures
// are logged and retried on the next pass; they never stop the lifecycle
// manager.
type ArchiveSink interface {
	SaveArchive(ctx context.Context, meta models.ArchiveMetadata, blob []byte) error
	LoadArchive(ctx context.Context, id string) (models.ArchiveMetadata, []byte, error)
	Health(ctx context.Context) error
	Close() error
}

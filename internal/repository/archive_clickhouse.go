package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PortPulse/internal/domain/models"
	pkgch "PortPulse/pkg/clickhouse"
	applogger "PortPulse/pkg/logger"
)

// archiveSchema is applied on startup; all statements are idempotent.
var archiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS archives (
        id              String,
        category        LowCardinality(String),
        from_ts         DateTime64(3, 'UTC'),
        to_ts           DateTime64(3, 'UTC'),
        item_count      UInt32,
        original_size   Int64,
        compressed_size Int64,
        created_at      DateTime64(3, 'UTC'),
        blob            String
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(created_at)
    ORDER BY (category, created_at, id)`,
}

// CHArchiveSink persists cold archives to ClickHouse. The gzipped batch goes
// into the blob column next to its metadata, so an archive survives process
// restarts and can be reloaded by id.
type CHArchiveSink struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewCHArchiveSink creates the sink and ensures the archive table exists.
func NewCHArchiveSink(ctx context.Context, ch *pkgch.Client, l *applogger.Logger) (*CHArchiveSink, error) {
	if err := ch.InitSchema(ctx, archiveSchema); err != nil {
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return &CHArchiveSink{db: ch.DB(), l: l}, nil
}

// SaveArchive inserts one archive row.
func (s *CHArchiveSink) SaveArchive(ctx context.Context, meta models.ArchiveMetadata, blob []byte) error {
	start := time.Now()
	const q = `
        INSERT INTO archives
            (id, category, from_ts, to_ts, item_count, original_size, compressed_size, created_at, blob)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.ExecContext(ctx, q,
		meta.ID, meta.Category, meta.From, meta.To,
		uint32(meta.ItemCount), meta.OriginalSize, meta.CompressedSize,
		meta.CreatedAt, string(blob),
	)
	if err != nil {
		s.l.Error("clickhouse save_archive error",
			applogger.String("archive_id", meta.ID),
			applogger.String("category", meta.Category),
			applogger.Error(err),
		)
		return fmt.Errorf("save archive: %w", err)
	}
	s.l.Info("clickhouse save_archive ok",
		applogger.String("archive_id", meta.ID),
		applogger.String("category", meta.Category),
		applogger.Int("items", meta.ItemCount),
		applogger.Int64("bytes", meta.CompressedSize),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// LoadArchive fetches one archive blob by id, for recovery after a restart.
func (s *CHArchiveSink) LoadArchive(ctx context.Context, id string) (models.ArchiveMetadata, []byte, error) {
	const q = `
        SELECT id, category, from_ts, to_ts, item_count, original_size, compressed_size, created_at, blob
        FROM archives
        WHERE id = ?
        LIMIT 1
    `
	var (
		meta  models.ArchiveMetadata
		items uint32
		blob  string
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&meta.ID, &meta.Category, &meta.From, &meta.To,
		&items, &meta.OriginalSize, &meta.CompressedSize,
		&meta.CreatedAt, &blob,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.ArchiveMetadata{}, nil, fmt.Errorf("load archive %s: %w", id, err)
		}
		s.l.Error("clickhouse load_archive error",
			applogger.String("archive_id", id),
			applogger.Error(err),
		)
		return models.ArchiveMetadata{}, nil, fmt.Errorf("load archive %s: %w", id, err)
	}
	meta.ItemCount = int(items)
	return meta, []byte(blob), nil
}

// Health pings the connection pool.
func (s *CHArchiveSink) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pooled client owns the connection.
func (s *CHArchiveSink) Close() error {
	return nil
}

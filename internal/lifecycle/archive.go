package lifecycle

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"

	"PortPulse/internal/domain/models"
	"PortPulse/pkg/logger"
)

type archiveEntry struct {
	meta models.ArchiveMetadata
	blob []byte
}

// createArchive gzips a batch of records leaving the warm tier and indexes
// the result. The records are marked cold before serialization so retrieval
// reflects their final tier.
func (m *Manager) createArchive(ctx context.Context, category string, recs []models.StoredRecord) (models.ArchiveMetadata, error) {
	from, to := recs[0].CreatedAt, recs[0].CreatedAt
	var original int64
	for i := range recs {
		recs[i].Tier = models.TierCold
		if recs[i].Compressed {
			// The archive is gzipped as a whole; store plain JSON inside.
			payload, err := InflatePayload(recs[i])
			if err != nil {
				return models.ArchiveMetadata{}, err
			}
			recs[i].Payload = payload
			recs[i].Compressed = false
		}
		original += int64(len(recs[i].Payload))
		if recs[i].CreatedAt.Before(from) {
			from = recs[i].CreatedAt
		}
		if recs[i].CreatedAt.After(to) {
			to = recs[i].CreatedAt
		}
	}

	raw, err := json.Marshal(recs)
	if err != nil {
		return models.ArchiveMetadata{}, fmt.Errorf("marshal archive batch: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return models.ArchiveMetadata{}, fmt.Errorf("compress archive batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return models.ArchiveMetadata{}, fmt.Errorf("finish archive batch: %w", err)
	}

	meta := models.ArchiveMetadata{
		ID:             uuid.NewString(),
		Category:       category,
		From:           from,
		To:             to,
		ItemCount:      len(recs),
		OriginalSize:   original,
		CompressedSize: int64(buf.Len()),
		CreatedAt:      m.now(),
	}

	m.archMu.Lock()
	m.archives[meta.ID] = &archiveEntry{meta: meta, blob: buf.Bytes()}
	m.archMu.Unlock()

	if m.sink != nil {
		if err := m.sink.SaveArchive(ctx, meta, buf.Bytes()); err != nil {
			m.log.Warn("archive sink write failed, archive kept locally",
				logger.String("archive_id", meta.ID),
				logger.String("category", category),
				logger.Error(err))
		}
	}
	return meta, nil
}

// RetrieveFromArchive decompresses an archive and returns its records. An
// archive missing from memory is recovered from the sink, so archives written
// before a restart stay reachable. Each retrieval bumps the archive's access
// count.
func (m *Manager) RetrieveFromArchive(ctx context.Context, id string) ([]models.StoredRecord, error) {
	m.archMu.Lock()
	entry, ok := m.archives[id]
	if ok {
		entry.meta.AccessCount++
		entry.meta.LastAccessed = m.now()
	}
	m.archMu.Unlock()

	if !ok && m.sink != nil {
		entry, ok = m.recoverArchive(ctx, id)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, id)
	}

	zr, err := gzip.NewReader(bytes.NewReader(entry.blob))
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", id, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress archive %s: %w", id, err)
	}

	var recs []models.StoredRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", id, err)
	}
	return recs, nil
}

// recoverArchive pulls an archive back from the sink and reindexes it.
func (m *Manager) recoverArchive(ctx context.Context, id string) (*archiveEntry, bool) {
	meta, blob, err := m.sink.LoadArchive(ctx, id)
	if err != nil {
		m.log.Warn("archive sink load failed", logger.String("archive_id", id), logger.Error(err))
		return nil, false
	}

	meta.AccessCount++
	meta.LastAccessed = m.now()
	entry := &archiveEntry{meta: meta, blob: blob}

	m.archMu.Lock()
	// A concurrent retrieval may have recovered it already.
	if existing, ok := m.archives[id]; ok {
		entry = existing
	} else {
		m.archives[id] = entry
	}
	m.archMu.Unlock()

	m.log.Info("archive recovered from sink",
		logger.String("archive_id", id),
		logger.String("category", meta.Category),
		logger.Int("items", meta.ItemCount))
	return entry, true
}

// SearchArchives returns metadata for archives whose record range overlaps
// [from, to]. An empty category matches all categories. Results are ordered
// by archive creation time.
func (m *Manager) SearchArchives(category string, from, to time.Time) []models.ArchiveMetadata {
	m.archMu.RLock()
	out := make([]models.ArchiveMetadata, 0, len(m.archives))
	for _, entry := range m.archives {
		if category != "" && entry.meta.Category != category {
			continue
		}
		if entry.meta.To.Before(from) || entry.meta.From.After(to) {
			continue
		}
		out = append(out, entry.meta)
	}
	m.archMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Archive returns the metadata of a single archive.
func (m *Manager) Archive(id string) (models.ArchiveMetadata, error) {
	m.archMu.RLock()
	defer m.archMu.RUnlock()
	entry, ok := m.archives[id]
	if !ok {
		return models.ArchiveMetadata{}, fmt.Errorf("%w: %s", ErrArchiveNotFound, id)
	}
	return entry.meta, nil
}

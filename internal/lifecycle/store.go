package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"PortPulse/internal/domain/models"
)

var (
	// ErrUnknownCategory means no tier policy is configured for the category.
	ErrUnknownCategory = errors.New("unknown storage category")

	// ErrArchiveNotFound means the archive id is unknown or already deleted.
	ErrArchiveNotFound = errors.New("archive not found")
)

// categoryStore holds the live (hot and warm) records of one category. Its
// mutex serializes appends and sweeps: no two passes over the same category
// ever run concurrently.
type categoryStore struct {
	mu        sync.Mutex
	policy    models.TierPolicy
	records   []models.StoredRecord // append order, oldest first
	liveBytes int64
}

// Append stores a batch of items under a category. The whole batch is stored
// or nothing is: marshalling failures abort before any insert. New records
// always enter the hot tier.
func (m *Manager) Append(ctx context.Context, category string, items ...any) error {
	cs, err := m.category(category)
	if err != nil {
		return err
	}

	now := m.now()
	batch := make([]models.StoredRecord, 0, len(items))
	var size int64
	for i, item := range items {
		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal item %d for %s: %w", i, category, err)
		}
		batch = append(batch, models.StoredRecord{
			ID:        uuid.NewString(),
			Category:  category,
			Tier:      models.TierHot,
			CreatedAt: now,
			Payload:   payload,
		})
		size += int64(len(payload))
	}

	cs.mu.Lock()
	cs.records = append(cs.records, batch...)
	cs.liveBytes += size
	cs.mu.Unlock()
	return nil
}

// Records returns a copy of the live records of a category, oldest first.
func (m *Manager) Records(category string) ([]models.StoredRecord, error) {
	cs, err := m.category(category)
	if err != nil {
		return nil, err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]models.StoredRecord(nil), cs.records...), nil
}

// Categories lists the configured category names.
func (m *Manager) Categories() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.cats))
	for name := range m.cats {
		out = append(out, name)
	}
	return out
}

func (m *Manager) category(name string) (*categoryStore, error) {
	m.mu.RLock()
	cs, ok := m.cats[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	return cs, nil
}

func ageDays(now, created time.Time) float64 {
	return now.Sub(created).Hours() / 24
}

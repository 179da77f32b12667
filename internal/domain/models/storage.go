package models

import (
	"encoding/json"
	"time"
)

// Tier is a storage lifecycle stage. Transitions are one-directional:
// hot -> warm -> cold; a cold record is only reachable through its archive.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// TierPolicy configures retention per data category. Ages are cumulative from
// record creation: a record turns warm after HotDays and is archived after
// HotDays+WarmDays. DeletionDays of zero means the category is never deleted.
type TierPolicy struct {
	HotDays                int     `yaml:"hot_days" json:"hotDays"`
	WarmDays               int     `yaml:"warm_days" json:"warmDays"`
	ColdDays               int     `yaml:"cold_days" json:"coldDays"`
	DeletionDays           int     `yaml:"deletion_days" json:"deletionDays"`
	CompressionThresholdMB float64 `yaml:"compression_threshold_mb" json:"compressionThresholdMB"`
}

// StoredRecord is one categorized item managed by the lifecycle manager.
type StoredRecord struct {
	ID         string          `json:"id"`
	Category   string          `json:"category"`
	Tier       Tier            `json:"tier"`
	CreatedAt  time.Time       `json:"createdAt"`
	Payload    json.RawMessage `json:"payload"`
	Compressed bool            `json:"compressed"`
}

// ArchiveMetadata describes one cold archive. Immutable once written except
// for access-count bookkeeping.
type ArchiveMetadata struct {
	ID             string    `json:"id"`
	Category       string    `json:"category"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	OriginalSize   int64     `json:"originalSize"`
	CompressedSize int64     `json:"compressedSize"`
	ItemCount      int       `json:"itemCount"`
	AccessCount    int64     `json:"accessCount"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessed   time.Time `json:"lastAccessed,omitempty"`
}

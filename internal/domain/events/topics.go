// Package events declares the typed topics carried by the event backbone.
package events

import (
	"PortPulse/internal/domain/models"
	"PortPulse/pkg/bus"
)

var (
	// SnapshotValidated carries each snapshot after validation, whether or
	// not it passed (degraded snapshots are published too).
	SnapshotValidated = bus.NewTopic[models.ValidatedSnapshot]("snapshot.validated")

	// MarketTicks carries each batch of cleaned ticks.
	MarketTicks = bus.NewTopic[[]models.CleanedTick]("market.ticks")

	// StateUpdated carries the rebuilt portfolio view and risk metrics.
	StateUpdated = bus.NewTopic[models.StateUpdate]("state.updated")

	// AlertRaised carries each newly generated alert.
	AlertRaised = bus.NewTopic[models.Alert]("alert.raised")

	// StorageArchived and StorageDeleted report lifecycle transitions.
	StorageArchived = bus.NewTopic[models.LifecycleEvent]("storage.archived")
	StorageDeleted  = bus.NewTopic[models.LifecycleEvent]("storage.deleted")
)

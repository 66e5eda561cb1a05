package events

import (
	"encoding/json"
	"fmt"
)

// EventFactory creates a new zero-value event of a specific type.
type EventFactory func() Event

// Registry maps event types to their factories for deserialization.
type Registry struct {
	factories map[string]EventFactory
}

// NewRegistry creates a new event registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]EventFactory),
	}
}

// Register adds an event type to the registry.
func (r *Registry) Register(eventType string, factory EventFactory) {
	r.factories[eventType] = factory
}

// Unmarshal deserializes a raw event into its concrete type.
func (r *Registry) Unmarshal(raw RawEvent) (Event, error) {
	factory, ok := r.factories[raw.EventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", raw.EventType)
	}

	event := factory()
	if err := json.Unmarshal([]byte(raw.Payload), event); err != nil {
		return nil, fmt.Errorf("unmarshal event payload: %w", err)
	}

	return event, nil
}

// DefaultRegistry returns a registry with all standard event types registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Run and sync events
	r.Register(EventRunStarted, func() Event { return &RunStarted{} })
	r.Register(EventRunCompleted, func() Event { return &RunCompleted{} })
	r.Register(EventAlbumQueued, func() Event { return &AlbumQueued{} })
	r.Register(EventTrackQueued, func() Event { return &TrackQueued{} })
	r.Register(EventTrackSkipped, func() Event { return &TrackSkipped{} })
	r.Register(EventSearchExhausted, func() Event { return &SearchExhausted{} })

	// Reconciler events
	r.Register(EventAlbumPromoted, func() Event { return &AlbumPromoted{} })
	r.Register(EventAlbumDemoted, func() Event { return &AlbumDemoted{} })
	r.Register(EventAlbumUnclassified, func() Event { return &AlbumUnclassified{} })
	r.Register(EventDuplicateRemoved, func() Event { return &DuplicateRemoved{} })

	// Cleanup and watcher events
	r.Register(EventAlbumExpired, func() Event { return &AlbumExpired{} })
	r.Register(EventDeletionVetoed, func() Event { return &DeletionVetoed{} })
	r.Register(EventTransferCompleted, func() Event { return &TransferCompleted{} })
	r.Register(EventTransferFailed, func() Event { return &TransferFailed{} })
	r.Register(EventStaleReservation, func() Event { return &StaleReservation{} })

	// Progress
	r.Register(EventProgress, func() Event { return &Progress{} })

	return r
}

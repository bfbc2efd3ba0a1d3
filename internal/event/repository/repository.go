package repository

import (
	"context"
	"time"

	"mentorhub-backend/internal/event/domain"
)

const EventsCollection = "events"

// EventRepository defines read access to calendar events
type EventRepository interface {
	// FindByID returns nil when the event does not exist
	FindByID(ctx context.Context, id string) (*domain.Event, error)

	// FindStartingBetween finds events with from <= startDateTime < to
	FindStartingBetween(ctx context.Context, from, to time.Time) ([]*domain.Event, error)

	// FindOverdue finds pending or in-progress events that started before now
	FindOverdue(ctx context.Context, now time.Time) ([]*domain.Event, error)
}

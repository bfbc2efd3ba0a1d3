package repository

import (
	"context"
	"fmt"
	"time"

	"mentorhub-backend/internal/event/domain"
	"mentorhub-backend/pkg/docstore"
)

// docEventRepository implements EventRepository on the document store
type docEventRepository struct {
	store docstore.Store
}

// NewEventRepository creates a new instance of docEventRepository
func NewEventRepository(store docstore.Store) EventRepository {
	return &docEventRepository{store: store}
}

func (r *docEventRepository) FindByID(ctx context.Context, id string) (*domain.Event, error) {
	doc, err := r.store.Get(ctx, EventsCollection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return DecodeEvent(*doc)
}

func (r *docEventRepository) FindStartingBetween(ctx context.Context, from, to time.Time) ([]*domain.Event, error) {
	docs, err := r.store.Query(ctx, EventsCollection,
		docstore.Where("startDateTime", docstore.OpGreaterEqual, from),
		docstore.Where("startDateTime", docstore.OpLess, to),
	)
	if err != nil {
		return nil, err
	}
	return decodeEvents(docs)
}

func (r *docEventRepository) FindOverdue(ctx context.Context, now time.Time) ([]*domain.Event, error) {
	docs, err := r.store.Query(ctx, EventsCollection,
		docstore.Where("status", docstore.OpIn, []string{string(domain.StatusPending), string(domain.StatusInProgress)}),
		docstore.Where("startDateTime", docstore.OpLess, now),
	)
	if err != nil {
		return nil, err
	}
	return decodeEvents(docs)
}

// DecodeEvent converts a raw event document, including change snapshots.
func DecodeEvent(doc docstore.Document) (*domain.Event, error) {
	var ev domain.Event
	if err := docstore.Decode(doc, &ev); err != nil {
		return nil, fmt.Errorf("event %s: %w", doc.ID, err)
	}
	ev.ID = doc.ID
	return &ev, nil
}

func decodeEvents(docs []docstore.Document) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0, len(docs))
	for _, doc := range docs {
		ev, err := DecodeEvent(doc)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

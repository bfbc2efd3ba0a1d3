package repository

import (
	"context"
	"errors"
	"time"

	"mentorhub-backend/internal/notification/domain"
	"mentorhub-backend/pkg/docstore"
)

const DedupCollection = "notification_dedup"

// DedupRepository is the time-windowed write-once log of sent notifications.
// Recency lives entirely in the key's period; no age threshold is applied.
type DedupRepository interface {
	// ShouldSend is true when force is set or no record exists for the pair
	ShouldSend(ctx context.Context, recipientID string, key domain.DedupKey, force bool) (bool, error)
	// RecordSent writes the record for the pair. An existing record is kept
	// as is, so a forced resend leaves the first send time in place.
	RecordSent(ctx context.Context, recipientID string, key domain.DedupKey, sentAt time.Time) error
}

// docDedupRepository implements DedupRepository on the document store
type docDedupRepository struct {
	store docstore.Store
}

// NewDedupRepository creates a document-store backed DedupRepository
func NewDedupRepository(store docstore.Store) DedupRepository {
	return &docDedupRepository{store: store}
}

func (r *docDedupRepository) ShouldSend(ctx context.Context, recipientID string, key domain.DedupKey, force bool) (bool, error) {
	if force {
		return true, nil
	}
	doc, err := r.store.Get(ctx, DedupCollection, key.RecordID(recipientID))
	if err != nil {
		return false, err
	}
	return doc == nil, nil
}

func (r *docDedupRepository) RecordSent(ctx context.Context, recipientID string, key domain.DedupKey, sentAt time.Time) error {
	err := r.store.Create(ctx, DedupCollection, key.RecordID(recipientID), map[string]interface{}{
		"recipientId": recipientID,
		"kind":        string(key.Kind),
		"subject":     key.Subject,
		"period":      key.Period,
		"dedupKey":    key.String(),
		"sentAt":      sentAt,
	})
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return nil
	}
	return err
}

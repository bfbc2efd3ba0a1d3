package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"mentorhub-backend/internal/event/domain"
	"mentorhub-backend/internal/event/repository"
	eventusecase "mentorhub-backend/internal/event/usecase"
	nusecase "mentorhub-backend/internal/notification/usecase"
	"mentorhub-backend/pkg/docstore"
)

// ErrIgnored marks a change on a collection nothing listens to
var ErrIgnored = errors.New("change ignored")

// ChangeEvent is the published form of one document change. Before is absent
// on create and After on delete.
type ChangeEvent struct {
	Collection string                 `json:"collection"`
	DocumentID string                 `json:"documentId"`
	Kind       string                 `json:"kind"`
	Before     map[string]interface{} `json:"before,omitempty"`
	After      map[string]interface{} `json:"after,omitempty"`
}

// ChangeHandler reacts to an event change
type ChangeHandler interface {
	HandleChange(ctx context.Context, change domain.Change, opts nusecase.Options) (*nusecase.Summary, error)
}

// Processor turns raw change payloads into notifications
type Processor struct {
	handler ChangeHandler
	timeout time.Duration
}

// NewProcessor creates a processor. timeout bounds the handling of one change.
func NewProcessor(handler ChangeHandler, timeout time.Duration) *Processor {
	return &Processor{handler: handler, timeout: timeout}
}

// Process decodes and handles one change payload.
func (p *Processor) Process(ctx context.Context, data []byte, opts nusecase.Options) (*nusecase.Summary, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	change, err := ParseChange(ev)
	if err != nil {
		return nil, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	transitions := change.Transitions()
	if len(transitions) == 0 {
		return nusecase.NewSummary(eventusecase.TriggerEventChange, opts), nil
	}
	log.Printf("[Listener] %s %s/%s: %v", ev.Kind, ev.Collection, ev.DocumentID, transitions)
	return p.handler.HandleChange(ctx, change, opts)
}

// ParseChange validates a change event and decodes its snapshots.
func ParseChange(ev ChangeEvent) (domain.Change, error) {
	if ev.Collection != repository.EventsCollection {
		return domain.Change{}, fmt.Errorf("%w: collection %q", ErrIgnored, ev.Collection)
	}
	if ev.DocumentID == "" {
		return domain.Change{}, errors.New("change without documentId")
	}

	change := domain.Change{Kind: domain.ChangeKind(ev.Kind)}
	switch change.Kind {
	case domain.ChangeCreate, domain.ChangeUpdate, domain.ChangeDelete:
	default:
		return domain.Change{}, fmt.Errorf("unknown change kind %q", ev.Kind)
	}

	var err error
	if ev.Before != nil {
		if change.Before, err = repository.DecodeEvent(docstore.Document{ID: ev.DocumentID, Data: ev.Before}); err != nil {
			return domain.Change{}, err
		}
	}
	if ev.After != nil {
		if change.After, err = repository.DecodeEvent(docstore.Document{ID: ev.DocumentID, Data: ev.After}); err != nil {
			return domain.Change{}, err
		}
	}
	return change, nil
}

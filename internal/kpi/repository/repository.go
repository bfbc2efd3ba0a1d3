package repository

import (
	"context"
	"fmt"
	"time"

	"mentorhub-backend/internal/kpi/domain"
	"mentorhub-backend/pkg/docstore"
)

const (
	MentorsCollection     = "mentors"
	FormsCollection       = "kpiForms"
	SubmissionsCollection = "kpiSubmissions"
)

// KPIRepository defines read access to mentors, forms and submissions
type KPIRepository interface {
	ListMentors(ctx context.Context) ([]*domain.Mentor, error)

	// FormNames maps form id to form name for every form
	FormNames(ctx context.Context) (map[string]string, error)

	// RecentSubmissionKeys returns the keys of submissions created at or after since
	RecentSubmissionKeys(ctx context.Context, since time.Time) (map[string]bool, error)
}

// docKPIRepository implements KPIRepository on the document store
type docKPIRepository struct {
	store docstore.Store
}

// NewKPIRepository creates a new instance of docKPIRepository
func NewKPIRepository(store docstore.Store) KPIRepository {
	return &docKPIRepository{store: store}
}

func (r *docKPIRepository) ListMentors(ctx context.Context) ([]*domain.Mentor, error) {
	docs, err := r.store.Query(ctx, MentorsCollection)
	if err != nil {
		return nil, err
	}
	mentors := make([]*domain.Mentor, 0, len(docs))
	for _, doc := range docs {
		var m domain.Mentor
		if err := docstore.Decode(doc, &m); err != nil {
			return nil, fmt.Errorf("mentor %s: %w", doc.ID, err)
		}
		m.ID = doc.ID
		mentors = append(mentors, &m)
	}
	return mentors, nil
}

func (r *docKPIRepository) FormNames(ctx context.Context) (map[string]string, error) {
	docs, err := r.store.Query(ctx, FormsCollection)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(docs))
	for _, doc := range docs {
		var f domain.Form
		if err := docstore.Decode(doc, &f); err != nil {
			return nil, fmt.Errorf("form %s: %w", doc.ID, err)
		}
		names[doc.ID] = f.Name
	}
	return names, nil
}

func (r *docKPIRepository) RecentSubmissionKeys(ctx context.Context, since time.Time) (map[string]bool, error) {
	docs, err := r.store.Query(ctx, SubmissionsCollection,
		docstore.Where("createdAt", docstore.OpGreaterEqual, since),
	)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(docs))
	for _, doc := range docs {
		var s domain.Submission
		if err := docstore.Decode(doc, &s); err != nil {
			return nil, fmt.Errorf("submission %s: %w", doc.ID, err)
		}
		keys[s.Key()] = true
	}
	return keys, nil
}

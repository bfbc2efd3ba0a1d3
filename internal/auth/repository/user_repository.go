package repository

import (
	"context"
	"fmt"

	authdomain "mentorhub-backend/internal/auth/domain"
	"mentorhub-backend/pkg/docstore"
)

const UsersCollection = "users"

// UserRepository defines read access to dashboard users
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
	ListAll(ctx context.Context) ([]*authdomain.User, error)
	// ListByRoles returns users holding any of roles, each user once
	ListByRoles(ctx context.Context, roles ...authdomain.Role) ([]*authdomain.User, error)
}

// userRepository implements UserRepository on the document store
type userRepository struct {
	store docstore.Store
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(store docstore.Store) UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*authdomain.User, error) {
	doc, err := r.store.Get(ctx, UsersCollection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return decodeUser(*doc)
}

func (r *userRepository) ListAll(ctx context.Context) ([]*authdomain.User, error) {
	docs, err := r.store.Query(ctx, UsersCollection)
	if err != nil {
		return nil, err
	}
	return decodeUsers(docs)
}

func (r *userRepository) ListByRoles(ctx context.Context, roles ...authdomain.Role) ([]*authdomain.User, error) {
	// Roles are stored with inconsistent casing, so filter after reading
	users, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*authdomain.User
	for _, u := range users {
		for _, role := range roles {
			if u.Role() == role {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func decodeUsers(docs []docstore.Document) ([]*authdomain.User, error) {
	users := make([]*authdomain.User, 0, len(docs))
	for _, doc := range docs {
		u, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func decodeUser(doc docstore.Document) (*authdomain.User, error) {
	var u authdomain.User
	if err := docstore.Decode(doc, &u); err != nil {
		return nil, fmt.Errorf("user %s: %w", doc.ID, err)
	}
	u.ID = doc.ID
	return &u, nil
}

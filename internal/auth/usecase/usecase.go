package usecase

import (
	"context"
	"errors"

	authdomain "mentorhub-backend/internal/auth/domain"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUserNotFound = errors.New("user not found")
	ErrNotOperator  = errors.New("operator role required")
)

// AuthUsecase defines operator authentication for the admin endpoints
type AuthUsecase interface {
	// ValidateToken verifies the token and loads its user. The stored role
	// is authoritative, not the role claim.
	ValidateToken(ctx context.Context, tokenString string) (*authdomain.User, error)

	// IssueToken signs a token for an existing user
	IssueToken(ctx context.Context, userID string) (string, error)
}

// IsOperator reports whether the user may trigger runs by hand
func IsOperator(u *authdomain.User) bool {
	return u != nil && u.Role() == authdomain.RoleAdmin
}

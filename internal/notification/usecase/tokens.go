package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	authdomain "mentorhub-backend/internal/auth/domain"
	authrepo "mentorhub-backend/internal/auth/repository"
	"mentorhub-backend/internal/notification/domain"

	"golang.org/x/sync/errgroup"
)

// TokenResolver turns user identities into deliverable device tokens
type TokenResolver struct {
	users       authrepo.UserRepository
	devices     authrepo.DeviceRepository
	concurrency int
	readTimeout time.Duration
}

// NewTokenResolver creates a resolver running at most concurrency lookups at
// once, each bounded by readTimeout
func NewTokenResolver(users authrepo.UserRepository, devices authrepo.DeviceRepository, concurrency int, readTimeout time.Duration) *TokenResolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &TokenResolver{
		users:       users,
		devices:     devices,
		concurrency: concurrency,
		readTimeout: readTimeout,
	}
}

// ResolveTokens returns the user's distinct tokens in device order. Enabled
// devices win; the legacy fcmToken is read only when the user has no device
// documents at all. An unknown user yields no tokens and no error.
func (r *TokenResolver) ResolveTokens(ctx context.Context, userID string) ([]domain.Target, error) {
	return r.resolve(ctx, userID, nil)
}

// ResolveMany resolves users concurrently. Users whose lookup fails are
// logged and left out; the returned map only holds users with tokens.
func (r *TokenResolver) ResolveMany(ctx context.Context, userIDs []string) map[string][]domain.Target {
	users := make([]*authdomain.User, len(userIDs))
	for i, id := range userIDs {
		users[i] = &authdomain.User{ID: id}
	}
	return r.resolveUsers(ctx, users, false)
}

// ResolveUsers is ResolveMany for already loaded users, saving the user read
// on the legacy fallback path.
func (r *TokenResolver) ResolveUsers(ctx context.Context, users []*authdomain.User) map[string][]domain.Target {
	return r.resolveUsers(ctx, users, true)
}

// ResolveAllTokens unions the tokens of every user, for broadcasts. A token
// registered under several users is delivered once, to the first user by id.
func (r *TokenResolver) ResolveAllTokens(ctx context.Context) ([]domain.Target, error) {
	users, err := r.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byUser := r.ResolveUsers(ctx, users)

	seen := make(map[string]bool)
	var out []domain.Target
	for _, u := range users {
		for _, t := range byUser[u.ID] {
			if seen[t.Token] {
				continue
			}
			seen[t.Token] = true
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *TokenResolver) resolveUsers(ctx context.Context, users []*authdomain.User, loaded bool) map[string][]domain.Target {
	var mu sync.Mutex
	out := make(map[string][]domain.Target, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, u := range users {
		u := u
		g.Go(func() error {
			var known *authdomain.User
			if loaded {
				known = u
			}
			targets, err := r.resolve(gctx, u.ID, known)
			if err != nil {
				log.Printf("[Tokens] Skipping user %s: %v", u.ID, err)
				return nil
			}
			if len(targets) == 0 {
				return nil
			}
			mu.Lock()
			out[u.ID] = targets
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *TokenResolver) resolve(ctx context.Context, userID string, user *authdomain.User) ([]domain.Target, error) {
	if userID == "" {
		return nil, nil
	}
	lookupCtx, cancel := r.lookupContext(ctx)
	defer cancel()

	devices, err := r.devices.GetDevicesByUserID(lookupCtx, userID)
	if err != nil {
		return nil, err
	}

	if len(devices) > 0 {
		seen := make(map[string]bool, len(devices))
		var targets []domain.Target
		for _, d := range devices {
			if !d.IsEnabled() || d.Token == "" || seen[d.Token] {
				continue
			}
			seen[d.Token] = true
			targets = append(targets, domain.Target{UserID: userID, Token: d.Token, Source: domain.SourceDevice})
		}
		return targets, nil
	}

	if user == nil {
		user, err = r.users.FindByID(lookupCtx, userID)
		if err != nil {
			return nil, err
		}
	}
	if user == nil || user.FCMToken == "" {
		return nil, nil
	}
	return []domain.Target{{UserID: userID, Token: user.FCMToken, Source: domain.SourceLegacy}}, nil
}

func (r *TokenResolver) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.readTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.readTimeout)
}

// Package quota enforces per-tier listing and keyword limits.
package quota

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/model"
)

// Counter exposes the store reads the guard needs.
type Counter interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	CountListings(ctx context.Context, ownerID string) (int, error)
	CountKeywords(ctx context.Context, ownerID string) (int, error)
}

// Guard checks plan limits before creates. Checks are best-effort reads,
// not transactional with the insert that follows.
type Guard struct {
	store Counter
}

func NewGuard(store Counter) *Guard {
	return &Guard{store: store}
}

// CheckListing returns ErrLimitReached when the user is at their listing cap.
func (g *Guard) CheckListing(ctx context.Context, userID string) error {
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return eris.Wrap(err, "quota: load user")
	}
	count, err := g.store.CountListings(ctx, userID)
	if err != nil {
		return eris.Wrap(err, "quota: count listings")
	}
	if count >= u.MaxListings {
		return eris.Wrapf(model.ErrLimitReached, "quota: %d of %d listings used", count, u.MaxListings)
	}
	return nil
}

// CheckKeyword returns ErrLimitReached when the user is at their keyword cap.
// The cap spans all of the user's listings.
func (g *Guard) CheckKeyword(ctx context.Context, userID string) error {
	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		return eris.Wrap(err, "quota: load user")
	}
	count, err := g.store.CountKeywords(ctx, userID)
	if err != nil {
		return eris.Wrap(err, "quota: count keywords")
	}
	if count >= u.MaxKeywords {
		return eris.Wrapf(model.ErrLimitReached, "quota: %d of %d keywords used", count, u.MaxKeywords)
	}
	return nil
}

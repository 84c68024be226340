// Package credits prices rank operations and pre-checks user balances.
//
// The actual debit happens inside the store's append transactions so a
// balance can never go negative. Reserve is a pre-flight check that lets
// callers reject a request before spending provider quota on it.
package credits

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/model"
)

// RankCheckCost is the price of a single keyword rank check.
const RankCheckCost = 1

// GridScanCost returns the price of a geo-grid scan. Each grid point is a
// separate SERP query, so the cost scales with the point count.
func GridScanCost(gridSize int) int {
	return gridSize * gridSize
}

// Balances reads user credit balances.
type Balances interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// Meter checks whether users can afford operations.
type Meter struct {
	store Balances
}

func NewMeter(store Balances) *Meter {
	return &Meter{store: store}
}

// Reserve verifies the user holds at least cost credits. It does not debit;
// the store does that atomically when results are persisted.
func (m *Meter) Reserve(ctx context.Context, userID string, cost int) error {
	if cost <= 0 {
		return eris.Wrapf(model.ErrValidation, "credits: cost %d", cost)
	}
	u, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return eris.Wrap(err, "credits: load user")
	}
	if u.Credits < cost {
		return eris.Wrapf(model.ErrInsufficientCredits, "credits: user %s has %d, needs %d", userID, u.Credits, cost)
	}
	return nil
}

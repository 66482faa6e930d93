// Package broker names the interface a live-trading execution venue would
// implement. No concrete implementation ships: mainnet order routing is a
// Non-goal, wired here only as a placeholder so a future venue adapter has
// a seam to implement against without touching internal/backtest.
package broker

import (
	"context"
	"fmt"

	"github.com/fuxihub/fuxiquant-go/pkg/models"
)

// ErrNotSupported is returned by every LiveBroker method: this module
// carries no concrete venue adapter.
var ErrNotSupported = fmt.Errorf("broker: live trading is not implemented in this build")

// LiveBroker is the seam a real exchange/FCM connection would implement
// to route orders produced by a Mainnet-mode run. internal/backtest.Engine
// is the only order-execution path this module actually exercises;
// LiveBroker exists so that boundary is named even though nothing crosses
// it yet.
type LiveBroker interface {
	// PlaceOrder submits req for live execution and returns the resulting
	// resting or filled Order.
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)

	// CancelOrder cancels a resting order by ID.
	CancelOrder(ctx context.Context, orderID int64) error

	// Positions returns the venue's current open positions.
	Positions(ctx context.Context) ([]models.Position, error)
}

// Unimplemented is a LiveBroker that rejects every call with
// ErrNotSupported. It exists so callers can wire a LiveBroker field
// without a nil check before Mainnet mode has a real adapter.
type Unimplemented struct{}

var _ LiveBroker = Unimplemented{}

func (Unimplemented) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	return nil, ErrNotSupported
}

func (Unimplemented) CancelOrder(ctx context.Context, orderID int64) error {
	return ErrNotSupported
}

func (Unimplemented) Positions(ctx context.Context) ([]models.Position, error) {
	return nil, ErrNotSupported
}

package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/session"
	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/storefront/core/domain"
)

// --- OptimisticAddStep ---

// OptimisticAddStep shows the line locally before the server knows about
// it. Its compensation is a full resync, which discards the optimistic line.
type OptimisticAddStep struct {
	engine    *Engine
	userID    string
	productID string
	quantity  int
	unitPrice decimal.Decimal
}

func (s *OptimisticAddStep) Name() string { return "optimistic_apply" }

func (s *OptimisticAddStep) Execute(_ context.Context) error {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.cart.UserID = s.userID
	if i := e.cart.IndexOf(s.productID); i >= 0 {
		e.cart.Lines[i].Quantity += s.quantity
		return nil
	}
	e.cart.Lines = append(e.cart.Lines, domain.CartLine{
		LineID:    domain.TempLinePrefix + uuid.NewString(),
		ProductID: s.productID,
		Quantity:  s.quantity,
		UnitPrice: s.unitPrice,
	})
	return nil
}

func (s *OptimisticAddStep) Compensate(ctx context.Context) error {
	return s.engine.Load(context.WithoutCancel(ctx))
}

// --- RemoteAddStep ---

type RemoteAddStep struct {
	engine    *Engine
	sess      session.Session
	productID string
	quantity  int
	unitPrice decimal.Decimal
}

func (s *RemoteAddStep) Name() string { return "remote_add" }

func (s *RemoteAddStep) Execute(ctx context.Context) error {
	_, err := s.engine.store.AddToCart(session.NewContext(ctx, s.sess), s.productID, s.quantity, s.unitPrice)
	return domain.AsRemote("add to cart", err)
}

// Compensate is empty: a failed add left nothing on the server.
func (s *RemoteAddStep) Compensate(context.Context) error { return nil }

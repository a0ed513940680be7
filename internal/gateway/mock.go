package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"checkout-engine/internal/domain"
)

// MockGateway is an in-memory gateway for tests and local simulation. Tests
// flip FailCreate to exercise the unavailable path and MarkPaid to drive the
// reconciliation sweep.
type MockGateway struct {
	mu         sync.RWMutex
	orders     map[string]*GatewayOrder
	FailCreate bool
}

func NewMockGateway() *MockGateway {
	return &MockGateway{orders: make(map[string]*GatewayOrder)}
}

func (g *MockGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailCreate {
		return nil, fmt.Errorf("%w: connection timeout", domain.ErrGatewayUnavailable)
	}

	order := &GatewayOrder{
		ID:       "order_" + uuid.NewString(),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   OrderCreated,
	}
	g.orders[order.ID] = order
	dup := *order
	return &dup, nil
}

func (g *MockGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (*GatewayOrder, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	order, ok := g.orders[gatewayOrderID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown gateway order %s", domain.ErrGatewayUnavailable, gatewayOrderID)
	}
	dup := *order
	return &dup, nil
}

// MarkPaid simulates the customer completing the hosted checkout.
func (g *MockGateway) MarkPaid(gatewayOrderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if order, ok := g.orders[gatewayOrderID]; ok {
		order.Status = OrderPaid
	}
}

package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"checkout-engine/internal/domain"
)

// memoryRepo keeps the same transition semantics as the Postgres store behind
// a mutex instead of conditional SQL updates. Used by unit tests and local
// runs without a database.
type memoryRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
	byNum  map[string]uuid.UUID
}

// NewMemoryOrderRepo returns an in-memory order store.
func NewMemoryOrderRepo() OrderRepo {
	return &memoryRepo{
		orders: make(map[uuid.UUID]*domain.Order),
		byNum:  make(map[string]uuid.UUID),
	}
}

func (r *memoryRepo) Create(ctx context.Context, subject domain.SubjectRef, quote domain.Quote) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	order := &domain.Order{
		ID:        uuid.New(),
		Subject:   subject,
		Quote:     quote,
		Status:    domain.OrderInitiated,
		History:   []domain.StatusEvent{{Status: domain.OrderInitiated, Reason: "order created", CreatedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 0; attempt < 2; attempt++ {
		num := newOrderNumber()
		if _, taken := r.byNum[num]; taken {
			continue
		}
		order.OrderNumber = num
		r.orders[order.ID] = order
		r.byNum[num] = order.ID
		return copyOrder(order), nil
	}
	return nil, fmt.Errorf("%w: giving up after retry", domain.ErrDuplicateOrderNumber)
}

func (r *memoryRepo) AttachGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status != domain.OrderInitiated {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, orderID, order.Status)
	}

	now := time.Now().UTC()
	order.GatewayOrderID = gatewayOrderID
	order.Status = domain.OrderPending
	order.UpdatedAt = now
	order.History = append(order.History, domain.StatusEvent{
		Status: domain.OrderPending, Reason: "gateway order " + gatewayOrderID, CreatedAt: now,
	})
	return copyOrder(order), nil
}

func (r *memoryRepo) TransitionToPaid(ctx context.Context, orderID uuid.UUID, evidence string) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, false, domain.ErrOrderNotFound
	}
	if order.Status == domain.OrderPaid {
		return copyOrder(order), false, nil
	}
	if !domain.CanReachPaid(order.Status) {
		return nil, false, fmt.Errorf("%w: cannot pay order in status %s", domain.ErrInvalidTransition, order.Status)
	}

	now := time.Now().UTC()
	order.Status = domain.OrderPaid
	order.UpdatedAt = now
	order.History = append(order.History, domain.StatusEvent{
		Status: domain.OrderPaid, Reason: evidence, CreatedAt: now,
	})
	return copyOrder(order), true, nil
}

func (r *memoryRepo) RecordSoftEvent(ctx context.Context, orderID uuid.UUID, kind domain.OrderStatus, reason string) error {
	if kind != domain.OrderFailed && kind != domain.OrderDismissed {
		return fmt.Errorf("%w: soft event kind %q", domain.ErrValidation, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if order.Status == domain.OrderPaid {
		return nil
	}

	now := time.Now().UTC()
	order.Status = kind
	order.UpdatedAt = now
	order.History = append(order.History, domain.StatusEvent{Status: kind, Reason: reason, CreatedAt: now})
	return nil
}

func (r *memoryRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (r *memoryRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byNum[orderNumber]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(r.orders[id]), nil
}

func (r *memoryRepo) FindStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var stuck []domain.Order
	for _, order := range r.orders {
		if len(stuck) >= limit {
			break
		}
		if order.Status == domain.OrderPending && order.UpdatedAt.Before(cutoff) {
			stuck = append(stuck, *copyOrder(order))
		}
	}
	return stuck, nil
}

func copyOrder(order *domain.Order) *domain.Order {
	dup := *order
	dup.History = append([]domain.StatusEvent(nil), order.History...)
	dup.Quote.AddOnIDs = append([]string(nil), order.Quote.AddOnIDs...)
	return &dup
}

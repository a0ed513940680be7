package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderInitiated OrderStatus = "INITIATED"
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderFailed    OrderStatus = "FAILED"
	OrderDismissed OrderStatus = "DISMISSED"
)

// StatusEvent is one append-only entry in an order's audit trail.
type StatusEvent struct {
	Status    OrderStatus
	Reason    string
	CreatedAt time.Time
}

// Order is the internal record of one checkout attempt. It is created once,
// never deleted, and its status only moves through the transitions the store
// exposes. GatewayOrderID stays empty until the gateway registration succeeds.
type Order struct {
	ID             uuid.UUID
	OrderNumber    string
	Subject        SubjectRef
	Quote          Quote
	GatewayOrderID string
	Status         OrderStatus
	History        []StatusEvent
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanReachPaid reports whether a paid transition is allowed from s. A late
// verified confirmation still wins over a client-side failure or dismissal,
// but an order that never reached the gateway cannot be paid.
func CanReachPaid(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderFailed, OrderDismissed:
		return true
	}
	return false
}

// SoftEventStatus maps an advisory client event kind ("failed", "dismissed")
// to its order status. The second return is false for anything else.
func SoftEventStatus(kind string) (OrderStatus, bool) {
	switch kind {
	case "failed":
		return OrderFailed, true
	case "dismissed":
		return OrderDismissed, true
	}
	return "", false
}

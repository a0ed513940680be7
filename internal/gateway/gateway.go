package gateway

import "context"

// OrderState is the gateway's view of one of its orders.
type OrderState string

const (
	OrderCreated   OrderState = "created"
	OrderAttempted OrderState = "attempted"
	OrderPaid      OrderState = "paid"
)

// CreateOrderRequest registers an order with the gateway before the customer
// is handed off to its hosted checkout. Receipt carries our order number so
// the two ledgers can be matched by support staff.
type CreateOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder is the gateway's order object.
type GatewayOrder struct {
	ID       string     `json:"id"`
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	Receipt  string     `json:"receipt"`
	Status   OrderState `json:"status"`
}

// Gateway is the external payment processor. CreateOrder must observe the
// context deadline; a slow gateway surfaces as ErrGatewayUnavailable, never
// as a hung request. FetchOrder is the authoritative status source used by
// the reconciliation sweep.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error)
	FetchOrder(ctx context.Context, gatewayOrderID string) (*GatewayOrder, error)
}

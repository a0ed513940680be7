package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"checkout-engine/internal/catalog"
	"checkout-engine/internal/domain"
	"checkout-engine/internal/gateway"
	"checkout-engine/internal/repo"
	"checkout-engine/internal/subject"
)

// CustomerContact travels to the gateway as order notes so its dashboard can
// tie a payment back to a person. The engine itself never reads it.
type CustomerContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type StartCheckoutRequest struct {
	Subject  domain.SubjectRef `json:"subject"`
	PlanID   string            `json:"plan_id"`
	AddOnIDs []string          `json:"add_on_ids"`
	Contact  CustomerContact   `json:"contact"`
}

// CheckoutSession is the minimal data the UI needs to launch the gateway's
// hosted checkout.
type CheckoutSession struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	GatewayOrderID string    `json:"gateway_order_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
}

type VerifyPaymentRequest struct {
	OrderID          uuid.UUID `json:"order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	Signature        string    `json:"signature"`
}

type CheckoutService interface {
	StartCheckout(ctx context.Context, req StartCheckoutRequest) (*CheckoutSession, error)
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*domain.Order, error)
	RecordEvent(ctx context.Context, orderID uuid.UUID, kind, reason string) error
	FindOrder(ctx context.Context, orderNumber string) (*domain.Order, error)

	// SettlePaid completes the paid path for an order the gateway reported
	// as paid over an authenticated server-to-server channel (the
	// reconciliation sweep). Same idempotent transition as VerifyPayment.
	SettlePaid(ctx context.Context, orderID uuid.UUID, evidence string) (*domain.Order, error)
}

type checkoutService struct {
	orders         repo.OrderRepo
	gateway        gateway.Gateway
	subjects       subject.Directory
	secret         string
	gatewayTimeout time.Duration
	log            zerolog.Logger
}

func NewCheckoutService(
	orders repo.OrderRepo,
	gtw gateway.Gateway,
	subjects subject.Directory,
	secret string,
	gatewayTimeout time.Duration,
	log zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		orders:         orders,
		gateway:        gtw,
		subjects:       subjects,
		secret:         secret,
		gatewayTimeout: gatewayTimeout,
		log:            log,
	}
}

func (s *checkoutService) StartCheckout(ctx context.Context, req StartCheckoutRequest) (*CheckoutSession, error) {
	if !req.Subject.Valid() {
		return nil, fmt.Errorf("%w: bad subject reference %s", domain.ErrValidation, req.Subject)
	}

	// A concurrent checkout for the same subject may create a second order;
	// orders are cheap and auditable, and the mark-paid hook absorbs a
	// double payment.
	if _, err := s.subjects.Resolve(ctx, req.Subject); err != nil {
		return nil, err
	}

	quote, err := catalog.ComputeQuote(req.PlanID, req.AddOnIDs)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Create(ctx, req.Subject, quote)
	if err != nil {
		return nil, err
	}

	gtwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	gtwOrder, err := s.gateway.CreateOrder(gtwCtx, gateway.CreateOrderRequest{
		Amount:   quote.Total,
		Currency: quote.Currency,
		Receipt:  order.OrderNumber,
		Notes: map[string]string{
			"subject": req.Subject.String(),
			"name":    req.Contact.Name,
			"email":   req.Contact.Email,
			"phone":   req.Contact.Phone,
		},
	})
	if err != nil {
		// The order stays INITIATED and support-queryable; a retry creates a
		// fresh gateway registration or supersedes it with a new order.
		s.log.Warn().Err(err).
			Str("order_number", order.OrderNumber).
			Msg("gateway order registration failed")
		return nil, fmt.Errorf("%w: order %s kept for retry", domain.ErrGatewayUnavailable, order.OrderNumber)
	}

	order, err = s.orders.AttachGatewayOrder(ctx, order.ID, gtwOrder.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Str("gateway_order_id", gtwOrder.ID).
		Int64("amount", quote.Total).
		Msg("checkout started")

	return &CheckoutSession{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		GatewayOrderID: gtwOrder.ID,
		Amount:         quote.Total,
		Currency:       quote.Currency,
	}, nil
}

func (s *checkoutService) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if order.GatewayOrderID == "" {
		return nil, fmt.Errorf("%w: order %s has no gateway order", domain.ErrInvalidTransition, order.OrderNumber)
	}

	// The stored gateway order id is authoritative: the signature is always
	// recomputed over it, so a callback carrying a different id can never
	// verify. The callback arrives through a client-controlled channel and a
	// success flag alone proves nothing.
	if order.GatewayOrderID != req.GatewayOrderID ||
		!gateway.VerifySignature(s.secret, order.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		s.log.Warn().
			Str("order_number", order.OrderNumber).
			Str("gateway_payment_id", req.GatewayPaymentID).
			Msg("payment signature rejected")
		return nil, domain.ErrSignatureMismatch
	}

	return s.settle(ctx, order.ID, "payment "+req.GatewayPaymentID)
}

// settle is the shared paid path for verified callbacks and the
// reconciliation sweep: one idempotent status transition, and the subject's
// business effect only on the call that actually transitioned.
func (s *checkoutService) settle(ctx context.Context, orderID uuid.UUID, evidence string) (*domain.Order, error) {
	order, transitioned, err := s.orders.TransitionToPaid(ctx, orderID, evidence)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// Duplicate delivery; the first one already applied everything.
		return order, nil
	}

	if err := s.subjects.MarkPaid(ctx, order.Subject, order.OrderNumber); err != nil {
		// The payment is recorded and permanent; the hook failure is a
		// support issue, not a reason to fail the verified callback.
		s.log.Error().Err(err).
			Str("order_number", order.OrderNumber).
			Str("subject", order.Subject.String()).
			Msg("mark-paid hook failed for paid order")
		return order, nil
	}

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Str("subject", order.Subject.String()).
		Msg("order paid")
	return order, nil
}

func (s *checkoutService) SettlePaid(ctx context.Context, orderID uuid.UUID, evidence string) (*domain.Order, error) {
	return s.settle(ctx, orderID, evidence)
}

func (s *checkoutService) RecordEvent(ctx context.Context, orderID uuid.UUID, kind, reason string) error {
	status, ok := domain.SoftEventStatus(kind)
	if !ok {
		return fmt.Errorf("%w: event kind %q", domain.ErrValidation, kind)
	}

	// Advisory telemetry: storage failures are logged, never surfaced, and a
	// PAID order is never downgraded (the store enforces the guard).
	if err := s.orders.RecordSoftEvent(ctx, orderID, status, reason); err != nil {
		s.log.Warn().Err(err).
			Str("order_id", orderID.String()).
			Str("kind", kind).
			Msg("failed to record client payment event")
	}
	return nil
}

func (s *checkoutService) FindOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.orders.FindByOrderNumber(ctx, orderNumber)
}

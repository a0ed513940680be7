package domain

import "errors"

// Error taxonomy for the order/payment lifecycle. Callers match with
// errors.Is; the HTTP layer maps each to a status code and user message.
var (
	ErrValidation           = errors.New("invalid request")
	ErrUnknownPlan          = errors.New("unknown plan")
	ErrUnknownAddOn         = errors.New("unknown add-on")
	ErrSubjectNotPayable    = errors.New("subject is not payable")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrSignatureMismatch    = errors.New("payment signature mismatch")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

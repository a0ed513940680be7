package repo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/domain"
)

func testQuote() domain.Quote {
	return domain.Quote{
		PlanID:    "starter",
		BasePrice: 499900,
		TaxAmount: 89982,
		Total:     589882,
		Currency:  "INR",
	}
}

func testSubject() domain.SubjectRef {
	return domain.SubjectRef{Kind: domain.SubjectListing, ID: "lst-42"}
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderRepo()

	order, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)

	assert.Equal(t, domain.OrderInitiated, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Empty(t, order.GatewayOrderID)
	require.Len(t, order.History, 1)
	assert.Equal(t, domain.OrderInitiated, order.History[0].Status)

	found, err := store.FindByOrderNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, int64(589882), found.Quote.Total)
}

func TestOrderNumbersAreUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderRepo()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		order, err := store.Create(ctx, testSubject(), testQuote())
		require.NoError(t, err)
		assert.False(t, seen[order.OrderNumber], "order number reused: %s", order.OrderNumber)
		seen[order.OrderNumber] = true
	}
}

func TestAttachGatewayOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderRepo()

	order, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)

	order, err = store.AttachGatewayOrder(ctx, order.ID, "order_gw1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, "order_gw1", order.GatewayOrderID)

	// A second attach is an invalid transition, not a silent overwrite.
	_, err = store.AttachGatewayOrder(ctx, order.ID, "order_gw2")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransitionToPaid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderRepo()

	order, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)

	// INITIATED cannot skip straight to PAID.
	_, _, err = store.TransitionToPaid(ctx, order.ID, "payment pay_1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = store.AttachGatewayOrder(ctx, order.ID, "order_gw1")
	require.NoError(t, err)

	order, transitioned, err := store.TransitionToPaid(ctx, order.ID, "payment pay_1")
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, domain.OrderPaid, order.Status)

	// Duplicate delivery: success, but no second transition.
	order, transitioned, err = store.TransitionToPaid(ctx, order.ID, "payment pay_1")
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, 1, countStatus(order.History, domain.OrderPaid))
}

func TestLateConfirmationBeatsDismissal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderRepo()

	order, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)
	_, err = store.AttachGatewayOrder(ctx, order.ID, "order_gw1")
	require.NoError(t, err)

	require.NoError(t, store.RecordSoftEvent(ctx, order.ID, domain.OrderDismissed, "modal closed"))

	// The gateway confirmed after the customer closed the modal; the
	// verified payment still lands.
	order, transitioned, err := store.TransitionToPaid(ctx, order.ID, "payment pay_late")
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, domain.OrderPaid, order.Status)
}

func TestSoftEventNeverDowngradesPaid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderRepo()

	order, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)
	_, err = store.AttachGatewayOrder(ctx, order.ID, "order_gw1")
	require.NoError(t, err)
	_, _, err = store.TransitionToPaid(ctx, order.ID, "payment pay_1")
	require.NoError(t, err)

	require.NoError(t, store.RecordSoftEvent(ctx, order.ID, domain.OrderDismissed, "late dismissal"))
	require.NoError(t, store.RecordSoftEvent(ctx, order.ID, domain.OrderFailed, "late failure"))

	order, err = store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, order.Status)
	assert.Equal(t, 0, countStatus(order.History, domain.OrderDismissed))
	assert.Equal(t, 0, countStatus(order.History, domain.OrderFailed))
}

func TestRecordSoftEventValidatesKind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderRepo()

	order, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)

	err = store.RecordSoftEvent(ctx, order.ID, domain.OrderPaid, "nope")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFindStuckPending(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderRepo()

	pending, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)
	_, err = store.AttachGatewayOrder(ctx, pending.ID, "order_gw1")
	require.NoError(t, err)

	initiated, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	stuck, err := store.FindStuckPending(ctx, 10*time.Millisecond, 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, pending.ID, stuck[0].ID)
	assert.NotEqual(t, initiated.ID, stuck[0].ID)
}

func TestFindNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderRepo()

	_, err := store.FindByOrderNumber(ctx, "ORD-NOPE")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func countStatus(history []domain.StatusEvent, status domain.OrderStatus) int {
	n := 0
	for _, ev := range history {
		if ev.Status == status {
			n++
		}
	}
	return n
}

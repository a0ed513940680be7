package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-engine/internal/domain"
	"checkout-engine/internal/gateway"
	"checkout-engine/internal/repo"
	"checkout-engine/internal/service"
	"checkout-engine/internal/subject"
)

type sweepFixture struct {
	worker   *ReconciliationWorker
	svc      service.CheckoutService
	orders   repo.OrderRepo
	gtw      *gateway.MockGateway
	subjects *subject.MemoryDirectory
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	orders := repo.NewMemoryOrderRepo()
	gtw := gateway.NewMockGateway()
	subjects := subject.NewMemoryDirectory()
	svc := service.NewCheckoutService(orders, gtw, subjects, "test-secret", time.Second, zerolog.Nop())
	w := NewReconciliationWorker(orders, gtw, svc, time.Minute, 10*time.Millisecond, zerolog.Nop())
	return &sweepFixture{worker: w, svc: svc, orders: orders, gtw: gtw, subjects: subjects}
}

func stuckPendingOrder(t *testing.T, f *sweepFixture) *service.CheckoutSession {
	t.Helper()
	ref := domain.SubjectRef{Kind: domain.SubjectWebsiteRequest, ID: "req-7"}
	f.subjects.Add(ref)
	session, err := f.svc.StartCheckout(context.Background(), service.StartCheckoutRequest{
		Subject: ref,
		PlanID:  "growth",
	})
	require.NoError(t, err)
	// Let the order age past the sweep cutoff.
	time.Sleep(25 * time.Millisecond)
	return session
}

func TestSweepRecoversPaidOrder(t *testing.T) {
	f := newSweepFixture(t)
	session := stuckPendingOrder(t, f)

	// The customer paid but the confirmation callback never arrived.
	f.gtw.MarkPaid(session.GatewayOrderID)

	require.NoError(t, f.worker.Sweep(context.Background()))

	order, err := f.orders.FindByID(context.Background(), session.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, order.Status)
	assert.Equal(t, 1, f.subjects.MarkPaidCalls)

	// A second sweep re-applies nothing.
	require.NoError(t, f.worker.Sweep(context.Background()))
	order, err = f.orders.FindByID(context.Background(), session.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 1, countStatus(order.History, domain.OrderPaid))
	assert.Equal(t, 1, f.subjects.MarkPaidCalls)
}

func TestSweepMarksAbandonedOrderFailed(t *testing.T) {
	f := newSweepFixture(t)
	session := stuckPendingOrder(t, f)

	require.NoError(t, f.worker.Sweep(context.Background()))

	order, err := f.orders.FindByID(context.Background(), session.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFailed, order.Status)
	assert.Equal(t, 0, f.subjects.MarkPaidCalls)
}

func TestSweepIgnoresFreshPending(t *testing.T) {
	f := newSweepFixture(t)
	f.worker.cutoff = time.Hour

	ref := domain.SubjectRef{Kind: domain.SubjectLead, ID: "lead-3"}
	f.subjects.Add(ref)
	session, err := f.svc.StartCheckout(context.Background(), service.StartCheckoutRequest{
		Subject: ref,
		PlanID:  "verification",
	})
	require.NoError(t, err)

	require.NoError(t, f.worker.Sweep(context.Background()))

	order, err := f.orders.FindByID(context.Background(), session.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
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

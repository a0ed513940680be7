// Command simulate exercises the checkout engine end to end against the mock
// gateway and the in-memory store: a few checkouts, one confirmed callback,
// one duplicate callback, one paid-but-never-confirmed session recovered by
// the reconciliation sweep, and one abandoned session.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"checkout-engine/internal/domain"
	"checkout-engine/internal/gateway"
	"checkout-engine/internal/repo"
	"checkout-engine/internal/service"
	"checkout-engine/internal/subject"
	"checkout-engine/internal/worker"
)

const secret = "simulate-secret"

func main() {
	ctx := context.Background()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	orders := repo.NewMemoryOrderRepo()
	gtw := gateway.NewMockGateway()
	subjects := subject.NewMemoryDirectory()
	checkout := service.NewCheckoutService(orders, gtw, subjects, secret, 2*time.Second, log)

	refs := []domain.SubjectRef{
		{Kind: domain.SubjectListing, ID: "lst-1"},
		{Kind: domain.SubjectLead, ID: "lead-1"},
		{Kind: domain.SubjectWebsiteRequest, ID: "req-1"},
	}
	for _, ref := range refs {
		subjects.Add(ref)
	}

	sessions := make([]*service.CheckoutSession, 0, len(refs))
	for i, ref := range refs {
		session, err := checkout.StartCheckout(ctx, service.StartCheckoutRequest{
			Subject: ref,
			PlanID:  []string{"verification", "starter", "growth"}[i],
			Contact: service.CustomerContact{Name: "Simulated Customer"},
		})
		if err != nil {
			log.Fatal().Err(err).Msg("checkout failed")
		}
		fmt.Printf("[%d] %s -> order %s, gateway %s, amount %d %s\n",
			i+1, ref, session.OrderNumber, session.GatewayOrderID, session.Amount, session.Currency)
		sessions = append(sessions, session)
	}

	// Customer 1 pays and the callback arrives twice.
	sig := gateway.Sign(secret, sessions[0].GatewayOrderID, "pay_sim_1")
	for i := 0; i < 2; i++ {
		order, err := checkout.VerifyPayment(ctx, service.VerifyPaymentRequest{
			OrderID:          sessions[0].OrderID,
			GatewayPaymentID: "pay_sim_1",
			GatewayOrderID:   sessions[0].GatewayOrderID,
			Signature:        sig,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("verify failed")
		}
		fmt.Printf("callback %d -> %s is %s (paid entries in history: %d)\n",
			i+1, order.OrderNumber, order.Status, count(order.History, domain.OrderPaid))
	}

	// Customer 2 pays but the callback never arrives; customer 3 walks away.
	gtw.MarkPaid(sessions[1].GatewayOrderID)
	checkout.RecordEvent(ctx, sessions[2].OrderID, "dismissed", "modal closed")

	time.Sleep(50 * time.Millisecond)

	sweeper := worker.NewReconciliationWorker(orders, gtw, checkout, time.Second, 10*time.Millisecond, log)
	if err := sweeper.Sweep(ctx); err != nil {
		log.Fatal().Err(err).Msg("sweep failed")
	}

	for _, session := range sessions {
		order, _ := orders.FindByID(ctx, session.OrderID)
		fmt.Printf("final: %s %s\n", order.OrderNumber, order.Status)
	}
}

func count(history []domain.StatusEvent, status domain.OrderStatus) int {
	n := 0
	for _, ev := range history {
		if ev.Status == status {
			n++
		}
	}
	return n
}

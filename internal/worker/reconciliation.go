package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"checkout-engine/internal/domain"
	"checkout-engine/internal/gateway"
	"checkout-engine/internal/repo"
	"checkout-engine/internal/service"
)

const sweepBatchSize = 100

// ReconciliationWorker periodically sweeps orders stuck in PENDING — the
// customer opened the hosted checkout and we never heard back — and settles
// them against the gateway's authoritative status. A payment the callback
// never delivered still lands; a session abandoned past the window is marked
// failed for support follow-up.
type ReconciliationWorker struct {
	orders   repo.OrderRepo
	gateway  gateway.Gateway
	checkout service.CheckoutService
	interval time.Duration
	cutoff   time.Duration
	log      zerolog.Logger
}

func NewReconciliationWorker(
	orders repo.OrderRepo,
	gtw gateway.Gateway,
	checkout service.CheckoutService,
	interval, cutoff time.Duration,
	log zerolog.Logger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		orders:   orders,
		gateway:  gtw,
		checkout: checkout,
		interval: interval,
		cutoff:   cutoff,
		log:      log,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.Info().
		Dur("interval", rw.interval).
		Dur("cutoff", rw.cutoff).
		Msg("reconciliation worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rw.Sweep(ctx); err != nil {
				rw.log.Error().Err(err).Msg("reconciliation sweep failed")
			}
		}
	}
}

// Sweep runs one reconciliation pass. Exported so tests and operators can
// drive it without the ticker.
func (rw *ReconciliationWorker) Sweep(ctx context.Context) error {
	stuck, err := rw.orders.FindStuckPending(ctx, rw.cutoff, sweepBatchSize)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	rw.log.Info().Int("count", len(stuck)).Msg("reconciling stuck pending orders")

	for _, order := range stuck {
		gtwOrder, err := rw.gateway.FetchOrder(ctx, order.GatewayOrderID)
		if err != nil {
			// Leave it for the next pass.
			rw.log.Warn().Err(err).
				Str("order_number", order.OrderNumber).
				Msg("gateway status check failed")
			continue
		}

		switch gtwOrder.Status {
		case gateway.OrderPaid:
			// The money moved but no callback ever confirmed it. The normal
			// idempotent paid path applies the transition and the hook.
			if _, err := rw.checkout.SettlePaid(ctx, order.ID, "reconciliation: gateway reports paid"); err != nil {
				if errors.Is(err, domain.ErrInvalidTransition) {
					continue
				}
				rw.log.Error().Err(err).
					Str("order_number", order.OrderNumber).
					Msg("failed to settle reconciled order")
				continue
			}
			rw.log.Info().
				Str("order_number", order.OrderNumber).
				Msg("recovered paid order missed by callback")
		default:
			// Never confirmed and past the abandonment window.
			if err := rw.orders.RecordSoftEvent(ctx, order.ID, domain.OrderFailed, "reconciliation: gateway session never completed"); err != nil {
				rw.log.Warn().Err(err).
					Str("order_number", order.OrderNumber).
					Msg("failed to mark abandoned order")
			}
		}
	}
	return nil
}

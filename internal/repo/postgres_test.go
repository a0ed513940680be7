package repo

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"checkout-engine/internal/database"
	"checkout-engine/internal/domain"
)

// startPostgres spins up a throwaway database, migrated to the current
// schema. Skips the test when no container runtime is available.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("container runtime unavailable: %v", err)
	}
	t.Cleanup(func() { ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func TestPostgresOrderLifecycle(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	store := NewOrderRepo(db)

	order, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderInitiated, order.Status)

	// INITIATED cannot skip straight to PAID.
	_, _, err = store.TransitionToPaid(ctx, order.ID, "payment pay_1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	order, err = store.AttachGatewayOrder(ctx, order.ID, "order_gw1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, "order_gw1", order.GatewayOrderID)

	_, err = store.AttachGatewayOrder(ctx, order.ID, "order_gw2")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	order, transitioned, err := store.TransitionToPaid(ctx, order.ID, "payment pay_1")
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, domain.OrderPaid, order.Status)

	// Duplicate callback is a no-op success.
	order, transitioned, err = store.TransitionToPaid(ctx, order.ID, "payment pay_1")
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, 1, countStatus(order.History, domain.OrderPaid))

	// A late soft event never downgrades PAID.
	require.NoError(t, store.RecordSoftEvent(ctx, order.ID, domain.OrderDismissed, "late"))
	order, err = store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, order.Status)

	found, err := store.FindByOrderNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, int64(589882), found.Quote.Total)
}

func TestPostgresConcurrentPaidTransitions(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	store := NewOrderRepo(db)

	order, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)
	_, err = store.AttachGatewayOrder(ctx, order.ID, "order_gw1")
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = store.TransitionToPaid(ctx, order.ID, "payment pay_race")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}

	order, err = store.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, order.Status)
	assert.Equal(t, 1, countStatus(order.History, domain.OrderPaid), "exactly one paid entry under concurrency")
}

func TestPostgresStuckPendingSweepQuery(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	store := NewOrderRepo(db)

	order, err := store.Create(ctx, testSubject(), testQuote())
	require.NoError(t, err)
	_, err = store.AttachGatewayOrder(ctx, order.ID, "order_gw1")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	stuck, err := store.FindStuckPending(ctx, 20*time.Millisecond, 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, order.ID, stuck[0].ID)

	stuck, err = store.FindStuckPending(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, stuck)
}

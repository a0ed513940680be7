package repo

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"

	"checkout-engine/internal/domain"
)

// OrderRepo is the durable order store. It exclusively owns status
// transitions: every writer goes through one of the conditional-update
// methods below, so the state-machine invariants hold under concurrent
// requests without any in-process locking.
type OrderRepo interface {
	// Create persists a new order in INITIATED status with a fresh order id
	// and order number. An order-number collision is retried once with a new
	// number before surfacing ErrDuplicateOrderNumber.
	Create(ctx context.Context, subject domain.SubjectRef, quote domain.Quote) (*domain.Order, error)

	// AttachGatewayOrder records the gateway's order id and moves the order
	// INITIATED -> PENDING. Any other current status is ErrInvalidTransition.
	AttachGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) (*domain.Order, error)

	// TransitionToPaid is the only writer of PAID. It is an atomic
	// compare-and-swap: the order moves to PAID only if its current status
	// can still reach PAID (pending, or a soft failed/dismissed that a late
	// confirmation overrides). An order already PAID is an idempotent no-op
	// and reports transitioned=false. INITIATED is ErrInvalidTransition.
	TransitionToPaid(ctx context.Context, orderID uuid.UUID, evidence string) (order *domain.Order, transitioned bool, err error)

	// RecordSoftEvent appends a FAILED or DISMISSED history entry and sets
	// the status, unless the order is already PAID — a late dismissal never
	// downgrades a paid order; in that case nothing is written.
	RecordSoftEvent(ctx context.Context, orderID uuid.UUID, kind domain.OrderStatus, reason string) error

	FindByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error)

	// FindStuckPending lists orders still PENDING whose last update is older
	// than the cutoff, for the reconciliation sweep.
	FindStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error)
}

// newOrderNumber builds the human-readable order reference shown to the
// customer and support staff. ULIDs are a timestamp plus randomness, so the
// numbers sort by creation time and collisions are practically impossible
// (but still handled on the unique index).
func newOrderNumber() string {
	return "ORD-" + ulid.MustNew(ulid.Now(), rand.Reader).String()
}

type orderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns the Postgres-backed order store.
func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

const orderColumns = `id, order_number, subject_kind, subject_id, plan_id, add_on_ids,
	base_price, add_on_amount, tax_amount, total, currency,
	gateway_order_id, status, created_at, updated_at`

func (r *orderRepo) Create(ctx context.Context, subject domain.SubjectRef, quote domain.Quote) (*domain.Order, error) {
	now := time.Now().UTC()
	order := &domain.Order{
		ID:        uuid.New(),
		Subject:   subject,
		Quote:     quote,
		Status:    domain.OrderInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	addOnIDs, err := json.Marshal(quote.AddOnIDs)
	if err != nil {
		return nil, err
	}

	// One retry on an order-number collision, then give up loudly.
	for attempt := 0; attempt < 2; attempt++ {
		order.OrderNumber = newOrderNumber()

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (id, order_number, subject_kind, subject_id, plan_id, add_on_ids,
				base_price, add_on_amount, tax_amount, total, currency, gateway_order_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, $12, $13, $13)`,
			order.ID, order.OrderNumber, subject.Kind, subject.ID, quote.PlanID, string(addOnIDs),
			quote.BasePrice, quote.AddOnAmount, quote.TaxAmount, quote.Total, quote.Currency,
			order.Status, now,
		)
		if err != nil {
			tx.Rollback()
			if isUniqueViolation(err) {
				continue
			}
			return nil, err
		}

		if err := insertEvent(ctx, tx, order.ID, domain.OrderInitiated, "order created", now); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}

		order.History = []domain.StatusEvent{{Status: domain.OrderInitiated, Reason: "order created", CreatedAt: now}}
		return order, nil
	}

	return nil, fmt.Errorf("%w: giving up after retry", domain.ErrDuplicateOrderNumber)
}

func (r *orderRepo) AttachGatewayOrder(ctx context.Context, orderID uuid.UUID, gatewayOrderID string) (*domain.Order, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET gateway_order_id = $2, status = $3, updated_at = $4
		WHERE id = $1 AND status = $5`,
		orderID, gatewayOrderID, domain.OrderPending, now, domain.OrderInitiated,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, r.transitionRefused(ctx, orderID)
	}

	if err := insertEvent(ctx, tx, orderID, domain.OrderPending, "gateway order "+gatewayOrderID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.FindByID(ctx, orderID)
}

func (r *orderRepo) TransitionToPaid(ctx context.Context, orderID uuid.UUID, evidence string) (*domain.Order, bool, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	// The conditional UPDATE is the compare-and-swap: at most one of two
	// concurrent callbacks can match a non-PAID row.
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1 AND status IN ($4, $5, $6)`,
		orderID, domain.OrderPaid, now,
		domain.OrderPending, domain.OrderFailed, domain.OrderDismissed,
	)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	if n == 0 {
		tx.Rollback()
		order, err := r.FindByID(ctx, orderID)
		if err != nil {
			return nil, false, err
		}
		if order.Status == domain.OrderPaid {
			// Duplicate callback: success, nothing to re-apply.
			return order, false, nil
		}
		return nil, false, fmt.Errorf("%w: cannot pay order in status %s", domain.ErrInvalidTransition, order.Status)
	}

	if err := insertEvent(ctx, tx, orderID, domain.OrderPaid, evidence, now); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	order, err := r.FindByID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (r *orderRepo) RecordSoftEvent(ctx context.Context, orderID uuid.UUID, kind domain.OrderStatus, reason string) error {
	if kind != domain.OrderFailed && kind != domain.OrderDismissed {
		return fmt.Errorf("%w: soft event kind %q", domain.ErrValidation, kind)
	}
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1 AND status <> $4`,
		orderID, kind, now, domain.OrderPaid,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the order does not exist or it is already PAID; a soft
		// event never downgrades PAID, so there is nothing to record.
		tx.Rollback()
		if _, err := r.FindByID(ctx, orderID); err != nil {
			return err
		}
		return nil
	}

	if err := insertEvent(ctx, tx, orderID, kind, reason, now); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *orderRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return r.scanOrder(ctx, row)
}

func (r *orderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	return r.scanOrder(ctx, row)
}

func (r *orderRepo) FindStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`,
		domain.OrderPending, time.Now().UTC().Add(-olderThan), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// transitionRefused distinguishes a missing order from one in the wrong
// status after a conditional update matched no rows.
func (r *orderRepo) transitionRefused(ctx context.Context, orderID uuid.UUID) error {
	order, err := r.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, orderID, order.Status)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderRow(row rowScanner) (*domain.Order, error) {
	var (
		order          domain.Order
		addOnIDs       []byte
		gatewayOrderID sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Subject.Kind,
		&order.Subject.ID,
		&order.Quote.PlanID,
		&addOnIDs,
		&order.Quote.BasePrice,
		&order.Quote.AddOnAmount,
		&order.Quote.TaxAmount,
		&order.Quote.Total,
		&order.Quote.Currency,
		&gatewayOrderID,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addOnIDs, &order.Quote.AddOnIDs); err != nil {
		return nil, err
	}
	order.GatewayOrderID = gatewayOrderID.String
	return &order, nil
}

func (r *orderRepo) scanOrder(ctx context.Context, row *sql.Row) (*domain.Order, error) {
	order, err := scanOrderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, reason, created_at FROM order_events
		WHERE order_id = $1 ORDER BY id`, order.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ev domain.StatusEvent
		if err := rows.Scan(&ev.Status, &ev.Reason, &ev.CreatedAt); err != nil {
			return nil, err
		}
		order.History = append(order.History, ev)
	}
	return order, rows.Err()
}

func insertEvent(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, status domain.OrderStatus, reason string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO order_events (order_id, status, reason, created_at) VALUES ($1, $2, $3, $4)`,
		orderID, status, reason, at,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

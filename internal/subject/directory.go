package subject

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-engine/internal/domain"
)

// Subject is the directory's view of a business object an order can pay for.
type Subject struct {
	Ref           domain.SubjectRef
	PaymentStatus string
	PaidOrder     string
}

const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// Directory resolves subject references and applies the one downstream
// business effect of a payment. MarkPaid must be idempotent: a duplicate
// verified callback re-applies nothing.
type Directory interface {
	// Resolve returns the subject, or ErrSubjectNotPayable if it does not
	// exist or is already in a paid/terminal state.
	Resolve(ctx context.Context, ref domain.SubjectRef) (*Subject, error)

	// MarkPaid flips the subject's payment status to paid, recording the
	// order number that paid it. A subject already paid is a no-op.
	MarkPaid(ctx context.Context, ref domain.SubjectRef, orderNumber string) error
}

type pgDirectory struct {
	db *sql.DB
}

// NewDirectory returns the Postgres-backed subject directory. Listings, leads
// and website-build requests all live in one subjects table keyed by
// (kind, id); the owning CRUD surfaces are elsewhere and out of scope here.
func NewDirectory(db *sql.DB) Directory {
	return &pgDirectory{db: db}
}

func (d *pgDirectory) Resolve(ctx context.Context, ref domain.SubjectRef) (*Subject, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("%w: bad subject reference %s", domain.ErrValidation, ref)
	}

	var s Subject
	var paidOrder sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT kind, id, payment_status, paid_order_number
		FROM subjects WHERE kind = $1 AND id = $2`,
		ref.Kind, ref.ID,
	).Scan(&s.Ref.Kind, &s.Ref.ID, &s.PaymentStatus, &paidOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s does not exist", domain.ErrSubjectNotPayable, ref)
	}
	if err != nil {
		return nil, err
	}
	s.PaidOrder = paidOrder.String

	if s.PaymentStatus == PaymentPaid {
		return nil, fmt.Errorf("%w: %s is already paid", domain.ErrSubjectNotPayable, ref)
	}
	return &s, nil
}

func (d *pgDirectory) MarkPaid(ctx context.Context, ref domain.SubjectRef, orderNumber string) error {
	// The WHERE guard is the idempotency: a second verified callback for the
	// same subject matches no rows and changes nothing.
	_, err := d.db.ExecContext(ctx, `
		UPDATE subjects SET payment_status = $3, paid_order_number = $4, updated_at = now()
		WHERE kind = $1 AND id = $2 AND payment_status <> $3`,
		ref.Kind, ref.ID, PaymentPaid, orderNumber,
	)
	return err
}

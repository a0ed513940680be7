package subject

import (
	"context"
	"fmt"
	"sync"

	"checkout-engine/internal/domain"
)

// MemoryDirectory is an in-memory Directory for tests and local runs.
type MemoryDirectory struct {
	mu       sync.Mutex
	subjects map[domain.SubjectRef]*Subject

	// MarkPaidCalls counts actual status flips, so tests can assert the
	// business effect applied exactly once.
	MarkPaidCalls int
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{subjects: make(map[domain.SubjectRef]*Subject)}
}

// Add seeds an unpaid subject.
func (d *MemoryDirectory) Add(ref domain.SubjectRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subjects[ref] = &Subject{Ref: ref, PaymentStatus: PaymentUnpaid}
}

func (d *MemoryDirectory) Resolve(ctx context.Context, ref domain.SubjectRef) (*Subject, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("%w: bad subject reference %s", domain.ErrValidation, ref)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.subjects[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s does not exist", domain.ErrSubjectNotPayable, ref)
	}
	if s.PaymentStatus == PaymentPaid {
		return nil, fmt.Errorf("%w: %s is already paid", domain.ErrSubjectNotPayable, ref)
	}
	dup := *s
	return &dup, nil
}

func (d *MemoryDirectory) MarkPaid(ctx context.Context, ref domain.SubjectRef, orderNumber string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.subjects[ref]
	if !ok || s.PaymentStatus == PaymentPaid {
		return nil
	}
	s.PaymentStatus = PaymentPaid
	s.PaidOrder = orderNumber
	d.MarkPaidCalls++
	return nil
}

// Get returns the current subject state, for test assertions.
func (d *MemoryDirectory) Get(ref domain.SubjectRef) (Subject, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.subjects[ref]
	if !ok {
		return Subject{}, false
	}
	return *s, true
}

package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Repository contains all DB interactions needed by the service.
type Repository interface {
	Create(ctx context.Context, p *Payment) (*Payment, error)
	SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error
	UpdateStatusByProviderRef(ctx context.Context, providerRef string, status Status, at time.Time) (*Payment, error)
	GetByProviderRef(ctx context.Context, providerRef string) (*Payment, error)

	// GetLatestByAppointment returns the newest attempt, which is the
	// authoritative one.
	GetLatestByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error)

	// Reconciliation worker
	ListStalePending(ctx context.Context, olderThan time.Time) ([]Payment, error)
}

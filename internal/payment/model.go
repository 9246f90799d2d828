package payment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// Payment is one charge attempt against an appointment. An appointment may
// accumulate several attempts (retry after failure); the latest row is
// authoritative and is mirrored onto the appointment's payment status.
type Payment struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	ProviderRef   *string
	AmountCents   int64
	Status        Status
	InitiatedAt   time.Time
	ConfirmedAt   *time.Time
	FailedAt      *time.Time
	CreatedAt     time.Time
}

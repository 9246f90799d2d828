package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDoctorNotFound      = errors.New("doctor not found")

	// ErrSlotConflict means another non-cancelled appointment already holds an
	// overlapping time range for the doctor.
	ErrSlotConflict = errors.New("time range already booked for this doctor")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByVideoRoom(ctx context.Context, roomID uuid.UUID) (*Appointment, error)
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)

	// Conflict detection inside the booking critical section
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error)

	// Creation and transitions
	CreateRequested(ctx context.Context, appt *Appointment) (*Appointment, error)
	// UpdateStatus performs a compare-and-swap on the status column: the update
	// only applies while the row still holds `from`. A vanished precondition
	// surfaces as ErrAppointmentNotFound so the caller can report a stale read.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, mut StatusMutation) (*Appointment, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, ps PaymentStatus) (*Appointment, error)

	// Listings
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Reconciliation worker
	FindUnpaidConfirmedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	// Audit trail
	InsertEvent(ctx context.Context, ev EventLog) error
}

package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type PaymentStatus string

const (
	PaymentNone     PaymentStatus = "none"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Appointment is the central entity. Status and PaymentStatus are independent
// axes; room access is a function of both. Rows are never deleted, terminal
// appointments are retained for history.
type Appointment struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	Status        Status
	PaymentStatus PaymentStatus
	AmountCents   *int64
	Reason        string
	Notes         *string
	VideoRoomID   *uuid.UUID
	ConfirmedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Overlaps reports whether the appointment's time range intersects [start, end).
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.EndTime)
}

// StatusMutation carries the extra columns a transition writes alongside the
// status itself. Nil fields are left untouched.
type StatusMutation struct {
	AmountCents   *int64
	PaymentStatus *PaymentStatus
	VideoRoomID   *uuid.UUID
	ConfirmedAt   *time.Time
}

// EventLog is an append-only audit record of everything that happened to an
// appointment.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	ActorID       *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

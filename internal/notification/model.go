package notification

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the state changes a user can be notified about.
type Kind string

const (
	KindAppointmentRequested Kind = "APPOINTMENT_REQUESTED"
	KindAppointmentConfirmed Kind = "APPOINTMENT_CONFIRMED"
	KindAppointmentCancelled Kind = "APPOINTMENT_CANCELLED"
	KindAppointmentCompleted Kind = "APPOINTMENT_COMPLETED"
	KindPaymentSuccess       Kind = "PAYMENT_SUCCESS"
	KindPaymentFailed        Kind = "PAYMENT_FAILED"
	KindPaymentPending       Kind = "PAYMENT_PENDING"
	KindPaymentReceived      Kind = "PAYMENT_RECEIVED"
	KindPaymentRefund        Kind = "PAYMENT_REFUND"
)

// Notification is the durable record of a state change addressed to one user.
// The persisted row is the source of truth; the live push is a low-latency hint.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	RecipientID   uuid.UUID  `json:"recipient_id"`
	Kind          Kind       `json:"kind"`
	Message       string     `json:"message"`
	IsRead        bool       `json:"is_read"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

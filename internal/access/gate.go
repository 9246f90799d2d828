package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medilink/telehealth-booking/internal/appointment"
	"github.com/medilink/telehealth-booking/internal/identity"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

// Reasons returned to the client when the room stays locked. They are part of
// the API surface, not free text.
const (
	ReasonNotParticipant = "not_participant"
	ReasonNotConfirmed   = "not_confirmed"
	ReasonPaymentPending = "payment_pending"
	ReasonCancelled      = "cancelled"
	ReasonCompleted      = "completed"
)

// Decision is the verdict on a join attempt. When payment is the blocker the
// client gets enough to render a pay prompt.
type Decision struct {
	Allowed         bool   `json:"allowed"`
	Reason          string `json:"reason,omitempty"`
	RequiresPayment bool   `json:"requires_payment,omitempty"`
	AmountCents     int64  `json:"amount_cents,omitempty"`
}

// RoomReader resolves a video room back to its appointment.
type RoomReader interface {
	GetByVideoRoom(ctx context.Context, roomID uuid.UUID) (*appointment.Appointment, error)
}

// Gate decides whether a user may enter a consultation room. It is a pure
// read over appointment state: the doctor enters any confirmed room, the
// patient additionally needs the charge settled.
type Gate struct {
	rooms  RoomReader
	logger *logging.Logger
}

func NewGate(rooms RoomReader, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{rooms: rooms, logger: logger}
}

// Check evaluates a join attempt on roomID by actor. A missing room surfaces
// as appointment.ErrAppointmentNotFound; every known room yields a Decision,
// never an error.
func (g *Gate) Check(ctx context.Context, actor identity.Principal, roomID uuid.UUID) (Decision, error) {
	appt, err := g.rooms.GetByVideoRoom(ctx, roomID)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve room: %w", err)
	}

	if appt.DoctorID != actor.UserID && appt.PatientID != actor.UserID {
		return Decision{Reason: ReasonNotParticipant}, nil
	}

	switch appt.Status {
	case appointment.StatusCancelled:
		return Decision{Reason: ReasonCancelled}, nil
	case appointment.StatusCompleted:
		return Decision{Reason: ReasonCompleted}, nil
	case appointment.StatusConfirmed:
	default:
		return Decision{Reason: ReasonNotConfirmed}, nil
	}

	// The doctor is never payment-gated on their own consultation.
	if appt.DoctorID == actor.UserID {
		return Decision{Allowed: true}, nil
	}

	if appt.PaymentStatus != appointment.PaymentPaid {
		d := Decision{Reason: ReasonPaymentPending, RequiresPayment: true}
		if appt.AmountCents != nil {
			d.AmountCents = *appt.AmountCents
		}
		return d, nil
	}

	return Decision{Allowed: true}, nil
}

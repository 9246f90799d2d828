package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/telehealth-booking/internal/config"
	"github.com/medilink/telehealth-booking/internal/identity"
	"github.com/medilink/telehealth-booking/internal/notification"
	"github.com/medilink/telehealth-booking/internal/observability/metrics"
	redisclient "github.com/medilink/telehealth-booking/internal/redis"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

const (
	EventAppointmentRequested = "APPOINTMENT_REQUESTED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var (
	// ErrValidation wraps bad input: missing reason, inverted time range, past start.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized means the actor's role or ownership does not permit the operation.
	ErrUnauthorized = errors.New("not allowed to perform this operation")

	// ErrStaleState means the appointment changed under a concurrent transition;
	// the caller must reload before retrying.
	ErrStaleState = errors.New("appointment state changed, reload and retry")

	// ErrInvalidTransition means the requested transition is not defined for the
	// current status, including any transition out of a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCancelWindowClosed means a patient tried to cancel a confirmed
	// appointment inside the lead-time window.
	ErrCancelWindowClosed = errors.New("cancellation window has closed")

	// ErrNotStarted means a doctor tried to complete an appointment before its
	// start time.
	ErrNotStarted = errors.New("appointment has not started yet")

	// ErrBookingContended means the booking lock for the doctor-day could not be
	// acquired; the caller should retry shortly.
	ErrBookingContended = errors.New("time range is currently being booked, please retry")
)

// Notifier fans a state change out to the affected user. Implementations must
// persist durably; live delivery is best effort.
type Notifier interface {
	Dispatch(ctx context.Context, recipientID uuid.UUID, kind notification.Kind, message string, appointmentID *uuid.UUID) error
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	cfg      config.Config
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics

	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestAppointment atomically claims a time range on the doctor's calendar
// for the patient, creating a requested appointment. Under concurrent requests
// for overlapping ranges exactly one succeeds; the rest observe ErrSlotConflict.
// A requested appointment is a hard hold: exclusivity is enforced here, not at
// confirmation time.
func (s *Service) RequestAppointment(ctx context.Context, actor identity.Principal, doctorID uuid.UUID, start, end time.Time, reason string, notes *string) (*Appointment, error) {
	began := s.now()

	if !actor.IsPatient() {
		return nil, fmt.Errorf("%w: only patients book appointments", ErrUnauthorized)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	start = start.UTC()
	end = end.UTC()
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start must be before end", ErrValidation)
	}
	if !start.After(began) {
		return nil, fmt.Errorf("%w: start must be in the future", ErrValidation)
	}

	exists, err := s.repo.DoctorExists(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !exists {
		return nil, ErrDoctorNotFound
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, doctorID, start, func(lockCtx context.Context) error {
		// Inside the critical section re-check for overlapping holds
		overlapping, err := s.repo.FindOverlapping(lockCtx, doctorID, start, end)
		if err != nil {
			return fmt.Errorf("check overlapping appointments: %w", err)
		}
		if len(overlapping) > 0 {
			return ErrSlotConflict
		}

		appt, err := s.repo.CreateRequested(lockCtx, &Appointment{
			DoctorID:  doctorID,
			PatientID: actor.UserID,
			StartTime: start,
			EndTime:   end,
			Reason:    strings.TrimSpace(reason),
			Notes:     notes,
		})
		if err != nil {
			return fmt.Errorf("create requested appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrSlotConflict) {
			outcome = "conflict"
		} else if errors.Is(err, redisclient.ErrLockNotAcquired) {
			outcome = "contended"
			err = ErrBookingContended
		}
		s.metrics.ObserveBooking(outcome, s.now().Sub(began).Seconds())
		return nil, err
	}

	s.metrics.ObserveBooking("created", s.now().Sub(began).Seconds())

	s.logEvent(ctx, created.ID, actor.UserID, EventAppointmentRequested, map[string]any{
		"doctor_id":  doctorID.String(),
		"patient_id": actor.UserID.String(),
		"start_time": start,
		"end_time":   end,
	})
	s.notify(ctx, doctorID, notification.KindAppointmentRequested,
		fmt.Sprintf("New appointment request for %s", start.Format(time.RFC3339)), created.ID)

	return created, nil
}

// Confirm moves a requested appointment to confirmed: the doctor accepts the
// booking and sets the consultation price. Payment moves to pending and a video
// room is allocated.
func (s *Service) Confirm(ctx context.Context, actor identity.Principal, id uuid.UUID, amountCents int64) (*Appointment, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !actor.IsDoctor() || appt.DoctorID != actor.UserID {
		return nil, fmt.Errorf("%w: only the owning doctor confirms", ErrUnauthorized)
	}
	if appt.Status != StatusRequested {
		return nil, ErrInvalidTransition
	}

	roomID := uuid.New()
	pending := PaymentPending
	confirmedAt := s.now()

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusRequested, StatusConfirmed, StatusMutation{
		AmountCents:   &amountCents,
		PaymentStatus: &pending,
		VideoRoomID:   &roomID,
		ConfirmedAt:   &confirmedAt,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.metrics.ObserveTransition("confirmed", "stale")
			return nil, ErrStaleState
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}
	s.metrics.ObserveTransition("confirmed", "ok")

	s.logEvent(ctx, updated.ID, actor.UserID, EventAppointmentConfirmed, map[string]any{
		"amount_cents":  amountCents,
		"video_room_id": roomID.String(),
	})
	s.notify(ctx, updated.PatientID, notification.KindAppointmentConfirmed,
		fmt.Sprintf("Your appointment on %s was confirmed, payment is due", updated.StartTime.Format(time.RFC3339)), updated.ID)

	return updated, nil
}

// Cancel moves an appointment to cancelled. Doctors may cancel their own
// appointments at any point before a terminal state. Patients may cancel a
// requested appointment freely, and a confirmed one only while more than the
// configured lead time remains before the start.
func (s *Service) Cancel(ctx context.Context, actor identity.Principal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	isDoctor := actor.IsDoctor() && appt.DoctorID == actor.UserID
	isPatient := actor.IsPatient() && appt.PatientID == actor.UserID
	if !isDoctor && !isPatient {
		return nil, fmt.Errorf("%w: not a participant", ErrUnauthorized)
	}

	switch appt.Status {
	case StatusRequested:
		// either party
	case StatusConfirmed:
		if isPatient {
			remaining := appt.StartTime.Sub(s.now())
			if remaining < s.cfg.CancelLeadTime {
				return nil, ErrCancelWindowClosed
			}
		}
	default:
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusCancelled, StatusMutation{})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.metrics.ObserveTransition("cancelled", "stale")
			return nil, ErrStaleState
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	s.metrics.ObserveTransition("cancelled", "ok")

	s.logEvent(ctx, updated.ID, actor.UserID, EventAppointmentCancelled, map[string]any{
		"cancelled_by": string(actor.Role),
	})

	// Tell the other party
	recipient := updated.PatientID
	if isPatient {
		recipient = updated.DoctorID
	}
	s.notify(ctx, recipient, notification.KindAppointmentCancelled,
		fmt.Sprintf("Appointment on %s was cancelled", updated.StartTime.Format(time.RFC3339)), updated.ID)

	return updated, nil
}

// Complete moves a confirmed appointment to completed. Only the owning doctor,
// and only once the start time has passed.
func (s *Service) Complete(ctx context.Context, actor identity.Principal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !actor.IsDoctor() || appt.DoctorID != actor.UserID {
		return nil, fmt.Errorf("%w: only the owning doctor completes", ErrUnauthorized)
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}
	if s.now().Before(appt.StartTime) {
		return nil, ErrNotStarted
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted, StatusMutation{})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			s.metrics.ObserveTransition("completed", "stale")
			return nil, ErrStaleState
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}
	s.metrics.ObserveTransition("completed", "ok")

	s.logEvent(ctx, updated.ID, actor.UserID, EventAppointmentCompleted, map[string]any{})
	s.notify(ctx, updated.PatientID, notification.KindAppointmentCompleted,
		"Your consultation was marked as completed", updated.ID)

	return updated, nil
}

// Get returns an appointment to one of its participants.
func (s *Service) Get(ctx context.Context, actor identity.Principal, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.DoctorID != actor.UserID && appt.PatientID != actor.UserID {
		return nil, fmt.Errorf("%w: not a participant", ErrUnauthorized)
	}
	return appt, nil
}

// ListMine returns the actor's appointments, newest start first.
func (s *Service) ListMine(ctx context.Context, actor identity.Principal, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appts, err := s.repo.ListByParticipant(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// CancelUnpaidConfirmed is called periodically by the reconciliation worker. It
// cancels confirmed appointments whose payment has been pending longer than the
// configured TTL, releasing the time range back to the calendar.
func (s *Service) CancelUnpaidConfirmed(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.UnpaidTTL)
	candidates, err := s.repo.FindUnpaidConfirmedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find unpaid confirmed appointments: %w", err)
	}

	for _, appt := range candidates {
		_, err := s.repo.UpdateStatus(ctx, appt.ID, StatusConfirmed, StatusCancelled, StatusMutation{})
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Error("failed to cancel unpaid appointment", "appointment_id", appt.ID, "error", err)
			}
			continue
		}

		s.logEvent(ctx, appt.ID, uuid.Nil, EventAppointmentCancelled, map[string]any{
			"reason": "unpaid_timeout",
		})
		s.notify(ctx, appt.PatientID, notification.KindAppointmentCancelled,
			"Your appointment was cancelled because payment was not completed in time", appt.ID)
		s.notify(ctx, appt.DoctorID, notification.KindAppointmentCancelled,
			fmt.Sprintf("Appointment on %s was cancelled, payment never completed", appt.StartTime.Format(time.RFC3339)), appt.ID)
	}

	return nil
}

func (s *Service) notify(ctx context.Context, recipientID uuid.UUID, kind notification.Kind, message string, appointmentID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	apptID := appointmentID
	if err := s.notifier.Dispatch(ctx, recipientID, kind, message, &apptID); err != nil {
		s.logger.Error("notification dispatch failed", "kind", kind, "recipient_id", recipientID, "error", err)
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID, actorID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if actorID != uuid.Nil {
		actor := actorID
		ev.ActorID = &actor
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert event log", "event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}

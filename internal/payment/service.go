package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/telehealth-booking/internal/appointment"
	"github.com/medilink/telehealth-booking/internal/identity"
	"github.com/medilink/telehealth-booking/internal/notification"
	"github.com/medilink/telehealth-booking/internal/observability/metrics"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

const providerName = "gateway"

var (
	// ErrNotPayable means the appointment is not confirmed or its payment is
	// not in a retriable state.
	ErrNotPayable = errors.New("appointment is not awaiting payment")

	// ErrNotRefundable means there is no paid charge to refund.
	ErrNotRefundable = errors.New("no paid charge to refund")

	// ErrUnauthorized means the actor is not the right participant for the
	// operation.
	ErrUnauthorized = errors.New("not allowed to perform this payment operation")

	// ErrGatewayUnavailable means the provider was unreachable or rejected the
	// call; the attempt is recorded as failed and may be retried.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// AppointmentStore is the slice of the appointment repository the payment
// service needs: reads plus the payment-status mirror.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, ps appointment.PaymentStatus) (*appointment.Appointment, error)
}

// ProcessedTracker deduplicates externally delivered callback events.
type ProcessedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// Notifier fans payment state changes out to the affected users.
type Notifier interface {
	Dispatch(ctx context.Context, recipientID uuid.UUID, kind notification.Kind, message string, appointmentID *uuid.UUID) error
}

type Service struct {
	payments  Repository
	appts     AppointmentStore
	gateway   Gateway
	processed ProcessedTracker
	notifier  Notifier
	logger    *logging.Logger
	metrics   *metrics.BookingMetrics

	currency string
	now      func() time.Time
}

func NewService(payments Repository, appts AppointmentStore, gateway Gateway, processed ProcessedTracker, notifier Notifier, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		payments:  payments,
		appts:     appts,
		gateway:   gateway,
		processed: processed,
		notifier:  notifier,
		logger:    logger,
		metrics:   m,
		currency:  "EUR",
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Initiate creates a charge attempt for a confirmed appointment and hands off
// to the gateway. It returns the hosted checkout session; the outcome arrives
// later through HandleGatewayCallback. Retrying after a failed attempt creates
// a fresh Payment row.
func (s *Service) Initiate(ctx context.Context, actor identity.Principal, appointmentID uuid.UUID, method string) (*CheckoutSession, error) {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !actor.IsPatient() || appt.PatientID != actor.UserID {
		return nil, fmt.Errorf("%w: only the appointment's patient pays", ErrUnauthorized)
	}
	if appt.Status != appointment.StatusConfirmed {
		return nil, fmt.Errorf("%w: appointment is not confirmed", ErrNotPayable)
	}
	if appt.PaymentStatus != appointment.PaymentPending && appt.PaymentStatus != appointment.PaymentFailed {
		return nil, fmt.Errorf("%w: payment status is %s", ErrNotPayable, appt.PaymentStatus)
	}
	if appt.AmountCents == nil || *appt.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: appointment has no price set", ErrNotPayable)
	}

	p, err := s.payments.Create(ctx, &Payment{
		AppointmentID: appt.ID,
		AmountCents:   *appt.AmountCents,
		Status:        StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	session, err := s.gateway.CreateCheckout(ctx, CheckoutParams{
		PaymentID:     p.ID,
		AppointmentID: appt.ID,
		AmountCents:   p.AmountCents,
		Currency:      s.currency,
		Method:        method,
	})
	if err != nil {
		s.logger.Error("gateway checkout failed", "payment_id", p.ID, "error", err)
		ref := "unreachable:" + p.ID.String()
		_ = s.setRefAndStatus(ctx, p.ID, ref, StatusFailed)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.payments.SetProviderRef(ctx, p.ID, session.ProviderRef); err != nil {
		return nil, fmt.Errorf("store provider ref: %w", err)
	}

	// Mirror the retry back onto the appointment axis so access checks see
	// pending again after a failed attempt.
	if appt.PaymentStatus == appointment.PaymentFailed {
		if _, err := s.appts.SetPaymentStatus(ctx, appt.ID, appointment.PaymentPending); err != nil {
			return nil, fmt.Errorf("reset appointment payment status: %w", err)
		}
	}

	s.notify(ctx, appt.PatientID, notification.KindPaymentPending,
		"Complete your payment to unlock the consultation room", appt.ID)

	return session, nil
}

func (s *Service) setRefAndStatus(ctx context.Context, id uuid.UUID, ref string, status Status) error {
	if err := s.payments.SetProviderRef(ctx, id, ref); err != nil {
		return err
	}
	_, err := s.payments.UpdateStatusByProviderRef(ctx, ref, status, s.now())
	return err
}

// HandleGatewayCallback applies an asynchronous outcome reported by the
// gateway. The same event delivered twice is a no-op: dedup is keyed on the
// provider's event id, and the status writes themselves are idempotent.
func (s *Service) HandleGatewayCallback(ctx context.Context, providerRef, eventID string, outcome Outcome) error {
	if eventID != "" {
		seen, err := s.processed.AlreadyProcessed(ctx, providerName, eventID)
		if err != nil {
			return fmt.Errorf("check processed: %w", err)
		}
		if seen {
			s.metrics.ObserveCallback(string(outcome), true)
			return nil
		}
	}

	if err := s.applyOutcome(ctx, providerRef, outcome); err != nil {
		s.metrics.ObserveCallback(string(outcome), false)
		return err
	}
	s.metrics.ObserveCallback(string(outcome), false)

	if eventID != "" {
		if _, err := s.processed.MarkProcessed(ctx, providerName, eventID); err != nil {
			s.logger.Error("failed to mark callback processed", "event_id", eventID, "error", err)
		}
	}
	return nil
}

func (s *Service) applyOutcome(ctx context.Context, providerRef string, outcome Outcome) error {
	p, err := s.payments.GetByProviderRef(ctx, providerRef)
	if err != nil {
		return fmt.Errorf("load payment %q: %w", providerRef, err)
	}

	appt, err := s.appts.GetByID(ctx, p.AppointmentID)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}

	switch outcome {
	case OutcomeSucceeded:
		if p.Status == StatusPaid {
			return nil
		}
		if _, err := s.payments.UpdateStatusByProviderRef(ctx, providerRef, StatusPaid, s.now()); err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}
		if _, err := s.appts.SetPaymentStatus(ctx, appt.ID, appointment.PaymentPaid); err != nil {
			return fmt.Errorf("mirror paid status: %w", err)
		}
		s.notify(ctx, appt.PatientID, notification.KindPaymentSuccess,
			"Payment received, your consultation room is unlocked", appt.ID)
		s.notify(ctx, appt.DoctorID, notification.KindPaymentReceived,
			fmt.Sprintf("Payment received for the appointment on %s", appt.StartTime.Format(time.RFC3339)), appt.ID)

	case OutcomeFailed:
		if p.Status == StatusFailed {
			return nil
		}
		if p.Status == StatusPaid {
			// A failure event after a success is stale provider noise.
			s.logger.Warn("ignoring failure callback for paid charge", "provider_ref", providerRef)
			return nil
		}
		if _, err := s.payments.UpdateStatusByProviderRef(ctx, providerRef, StatusFailed, s.now()); err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
		if _, err := s.appts.SetPaymentStatus(ctx, appt.ID, appointment.PaymentFailed); err != nil {
			return fmt.Errorf("mirror failed status: %w", err)
		}
		s.notify(ctx, appt.PatientID, notification.KindPaymentFailed,
			"Your payment failed, please try again", appt.ID)

	case OutcomePending:
		// Nothing to apply yet.

	default:
		return fmt.Errorf("unknown gateway outcome %q", outcome)
	}

	return nil
}

// Refund reverses a paid charge. It is retriable: a gateway failure leaves the
// charge paid, and refunding an already refunded charge is a no-op.
func (s *Service) Refund(ctx context.Context, actor identity.Principal, appointmentID uuid.UUID) (*Payment, error) {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !actor.IsDoctor() || appt.DoctorID != actor.UserID {
		return nil, fmt.Errorf("%w: only the owning doctor refunds", ErrUnauthorized)
	}

	p, err := s.payments.GetLatestByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if p.Status == StatusRefunded {
		return p, nil
	}
	if p.Status != StatusPaid || p.ProviderRef == nil {
		return nil, ErrNotRefundable
	}

	if err := s.gateway.Refund(ctx, *p.ProviderRef); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	refunded, err := s.payments.UpdateStatusByProviderRef(ctx, *p.ProviderRef, StatusRefunded, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark payment refunded: %w", err)
	}
	if _, err := s.appts.SetPaymentStatus(ctx, appt.ID, appointment.PaymentRefunded); err != nil {
		return nil, fmt.Errorf("mirror refunded status: %w", err)
	}

	s.notify(ctx, appt.PatientID, notification.KindPaymentRefund,
		"Your payment was refunded", appt.ID)

	return refunded, nil
}

// GetStatus returns the authoritative (latest) payment attempt for an
// appointment, scoped to its participants.
func (s *Service) GetStatus(ctx context.Context, actor identity.Principal, appointmentID uuid.UUID) (*Payment, error) {
	appt, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.DoctorID != actor.UserID && appt.PatientID != actor.UserID {
		return nil, fmt.Errorf("%w: not a participant", ErrUnauthorized)
	}
	return s.payments.GetLatestByAppointment(ctx, appointmentID)
}

// ReconcilePending is called periodically by the worker. For every pending
// charge older than the grace period it asks the gateway for the authoritative
// outcome and applies it through the same idempotent path as a callback.
func (s *Service) ReconcilePending(ctx context.Context, grace time.Duration) error {
	stale, err := s.payments.ListStalePending(ctx, s.now().Add(-grace))
	if err != nil {
		return fmt.Errorf("list stale pending payments: %w", err)
	}

	for _, p := range stale {
		if p.ProviderRef == nil {
			continue
		}
		outcome, err := s.gateway.LookupCharge(ctx, *p.ProviderRef)
		if err != nil {
			s.logger.Error("reconcile lookup failed", "provider_ref", *p.ProviderRef, "error", err)
			continue
		}
		if outcome == OutcomePending {
			continue
		}
		if err := s.applyOutcome(ctx, *p.ProviderRef, outcome); err != nil {
			s.logger.Error("reconcile apply failed", "provider_ref", *p.ProviderRef, "outcome", outcome, "error", err)
		}
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

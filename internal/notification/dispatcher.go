package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medilink/telehealth-booking/internal/observability/metrics"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

// Dispatcher writes every notification to the durable inbox first and then
// pushes it to live websocket connections. The insert is the delivery
// guarantee; the push is opportunistic.
type Dispatcher struct {
	repo    Repository
	hub     *Hub
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

func NewDispatcher(repo Repository, hub *Hub, logger *logging.Logger, m *metrics.BookingMetrics) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{repo: repo, hub: hub, logger: logger, metrics: m}
}

func (d *Dispatcher) Dispatch(ctx context.Context, recipientID uuid.UUID, kind Kind, message string, appointmentID *uuid.UUID) error {
	stored, err := d.repo.Insert(ctx, &Notification{
		RecipientID:   recipientID,
		Kind:          kind,
		Message:       message,
		AppointmentID: appointmentID,
	})
	if err != nil {
		d.metrics.ObserveDispatch(string(kind), false)
		return fmt.Errorf("store notification: %w", err)
	}

	live := false
	if d.hub != nil {
		live = d.hub.Push(*stored) > 0
	}
	d.metrics.ObserveDispatch(string(kind), live)

	d.logger.Info("notification dispatched",
		"recipient_id", recipientID, "kind", kind, "live", live)
	return nil
}

// Inbox operations. The recipient id comes from the authenticated principal,
// so the repository's scoping doubles as the authorization check.

func (d *Dispatcher) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return d.repo.ListByRecipient(ctx, recipientID, unreadOnly, limit)
}

func (d *Dispatcher) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return d.repo.CountUnread(ctx, recipientID)
}

func (d *Dispatcher) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	return d.repo.MarkRead(ctx, recipientID, notificationID)
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return d.repo.MarkAllRead(ctx, recipientID)
}

func (d *Dispatcher) Delete(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	return d.repo.Delete(ctx, recipientID, notificationID)
}

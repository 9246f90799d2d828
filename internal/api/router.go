package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/medilink/telehealth-booking/internal/access"
	"github.com/medilink/telehealth-booking/internal/appointment"
	"github.com/medilink/telehealth-booking/internal/availability"
	"github.com/medilink/telehealth-booking/internal/identity"
	"github.com/medilink/telehealth-booking/internal/notification"
	"github.com/medilink/telehealth-booking/internal/payment"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

// The handler funcs depend on these narrow interfaces rather than the
// concrete services so tests can swap in stubs.

type AvailabilityService interface {
	DeclareRule(ctx context.Context, actor identity.Principal, start, end time.Time) (*availability.AvailabilityRule, error)
	RemoveRule(ctx context.Context, actor identity.Principal, ruleID uuid.UUID) error
	ListFreeSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]availability.Slot, error)
}

type AppointmentService interface {
	RequestAppointment(ctx context.Context, actor identity.Principal, doctorID uuid.UUID, start, end time.Time, reason string, notes *string) (*appointment.Appointment, error)
	Confirm(ctx context.Context, actor identity.Principal, id uuid.UUID, amountCents int64) (*appointment.Appointment, error)
	Cancel(ctx context.Context, actor identity.Principal, id uuid.UUID) (*appointment.Appointment, error)
	Complete(ctx context.Context, actor identity.Principal, id uuid.UUID) (*appointment.Appointment, error)
	Get(ctx context.Context, actor identity.Principal, id uuid.UUID) (*appointment.Appointment, error)
	ListMine(ctx context.Context, actor identity.Principal, limit, offset int) ([]appointment.Appointment, error)
}

type PaymentService interface {
	Initiate(ctx context.Context, actor identity.Principal, appointmentID uuid.UUID, method string) (*payment.CheckoutSession, error)
	HandleGatewayCallback(ctx context.Context, providerRef, eventID string, outcome payment.Outcome) error
	Refund(ctx context.Context, actor identity.Principal, appointmentID uuid.UUID) (*payment.Payment, error)
	GetStatus(ctx context.Context, actor identity.Principal, appointmentID uuid.UUID) (*payment.Payment, error)
}

type AccessGate interface {
	Check(ctx context.Context, actor identity.Principal, roomID uuid.UUID) (access.Decision, error)
}

type NotificationInbox interface {
	List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]notification.Notification, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	Delete(ctx context.Context, recipientID, notificationID uuid.UUID) error
}

type SocketHub interface {
	ServeUser(w http.ResponseWriter, r *http.Request, userID uuid.UUID)
}

type RouterConfig struct {
	Availability  AvailabilityService
	Appointments  AppointmentService
	Payments      PaymentService
	Access        AccessGate
	Notifications NotificationInbox
	Hub           SocketHub

	Verifier      *identity.Verifier
	WebhookSecret string

	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *logging.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Signed by the provider, not by a user session.
	r.Post("/payments/webhook", gatewayWebhookHandler(cfg.Payments, cfg.WebhookSecret, logger))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier))

		r.Get("/doctors/{id}/slots", listSlotsHandler(cfg.Availability))
		r.Post("/availability", declareAvailabilityHandler(cfg.Availability))
		r.Delete("/availability/{id}", removeAvailabilityHandler(cfg.Availability))

		r.Post("/appointments", requestAppointmentHandler(cfg.Appointments))
		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments))

		r.Post("/appointments/{id}/payment", initiatePaymentHandler(cfg.Payments))
		r.Get("/appointments/{id}/payment", getPaymentHandler(cfg.Payments))
		r.Post("/appointments/{id}/refund", refundPaymentHandler(cfg.Payments))

		r.Get("/rooms/{id}/access", roomAccessHandler(cfg.Access))

		r.Get("/notifications", listNotificationsHandler(cfg.Notifications))
		r.Get("/notifications/unread-count", unreadCountHandler(cfg.Notifications))
		r.Post("/notifications/{id}/read", markNotificationReadHandler(cfg.Notifications))
		r.Post("/notifications/read-all", markAllNotificationsReadHandler(cfg.Notifications))
		r.Delete("/notifications/{id}", deleteNotificationHandler(cfg.Notifications))

		r.Get("/ws/notifications", notificationSocketHandler(cfg.Hub))
	})

	return r
}

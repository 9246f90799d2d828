package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilink/telehealth-booking/internal/access"
	"github.com/medilink/telehealth-booking/internal/appointment"
	"github.com/medilink/telehealth-booking/internal/availability"
	"github.com/medilink/telehealth-booking/internal/identity"
	"github.com/medilink/telehealth-booking/internal/notification"
	"github.com/medilink/telehealth-booking/internal/payment"
)

const testSecret = "test-secret"
const testWebhookSecret = "webhook-secret"

func signTestToken(t *testing.T, userID uuid.UUID, role identity.Role) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type stubAvailability struct {
	slots []availability.Slot
}

func (s *stubAvailability) DeclareRule(ctx context.Context, actor identity.Principal, start, end time.Time) (*availability.AvailabilityRule, error) {
	return &availability.AvailabilityRule{ID: uuid.New(), DoctorID: actor.UserID, StartTime: start, EndTime: end}, nil
}

func (s *stubAvailability) RemoveRule(ctx context.Context, actor identity.Principal, ruleID uuid.UUID) error {
	return availability.ErrRuleNotFound
}

func (s *stubAvailability) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]availability.Slot, error) {
	return s.slots, nil
}

type stubAppointments struct {
	appt *appointment.Appointment
	err  error
}

func (s *stubAppointments) result() (*appointment.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.appt, nil
}

func (s *stubAppointments) RequestAppointment(ctx context.Context, actor identity.Principal, doctorID uuid.UUID, start, end time.Time, reason string, notes *string) (*appointment.Appointment, error) {
	return s.result()
}

func (s *stubAppointments) Confirm(ctx context.Context, actor identity.Principal, id uuid.UUID, amountCents int64) (*appointment.Appointment, error) {
	return s.result()
}

func (s *stubAppointments) Cancel(ctx context.Context, actor identity.Principal, id uuid.UUID) (*appointment.Appointment, error) {
	return s.result()
}

func (s *stubAppointments) Complete(ctx context.Context, actor identity.Principal, id uuid.UUID) (*appointment.Appointment, error) {
	return s.result()
}

func (s *stubAppointments) Get(ctx context.Context, actor identity.Principal, id uuid.UUID) (*appointment.Appointment, error) {
	return s.result()
}

func (s *stubAppointments) ListMine(ctx context.Context, actor identity.Principal, limit, offset int) ([]appointment.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []appointment.Appointment{*s.appt}, nil
}

type webhookCall struct {
	ProviderRef string
	EventID     string
	Outcome     payment.Outcome
}

type stubPayments struct {
	calls []webhookCall
	err   error
}

func (s *stubPayments) Initiate(ctx context.Context, actor identity.Principal, appointmentID uuid.UUID, method string) (*payment.CheckoutSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &payment.CheckoutSession{URL: "https://pay.example/x", ProviderRef: "ref-1"}, nil
}

func (s *stubPayments) HandleGatewayCallback(ctx context.Context, providerRef, eventID string, outcome payment.Outcome) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, webhookCall{providerRef, eventID, outcome})
	return nil
}

func (s *stubPayments) Refund(ctx context.Context, actor identity.Principal, appointmentID uuid.UUID) (*payment.Payment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &payment.Payment{ID: uuid.New(), AppointmentID: appointmentID, Status: payment.StatusRefunded}, nil
}

func (s *stubPayments) GetStatus(ctx context.Context, actor identity.Principal, appointmentID uuid.UUID) (*payment.Payment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &payment.Payment{ID: uuid.New(), AppointmentID: appointmentID, Status: payment.StatusPending}, nil
}

type stubGate struct {
	decision access.Decision
	err      error
}

func (s *stubGate) Check(ctx context.Context, actor identity.Principal, roomID uuid.UUID) (access.Decision, error) {
	return s.decision, s.err
}

type stubInbox struct {
	items []notification.Notification
}

func (s *stubInbox) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]notification.Notification, error) {
	return s.items, nil
}

func (s *stubInbox) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return int64(len(s.items)), nil
}

func (s *stubInbox) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	return notification.ErrNotificationNotFound
}

func (s *stubInbox) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return int64(len(s.items)), nil
}

func (s *stubInbox) Delete(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	return nil
}

type routerFixture struct {
	handler      http.Handler
	appointments *stubAppointments
	payments     *stubPayments
	gate         *stubGate
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	amount := int64(5500)
	appt := &appointment.Appointment{
		ID:            uuid.New(),
		DoctorID:      uuid.New(),
		PatientID:     uuid.New(),
		StartTime:     time.Now().UTC().Add(time.Hour),
		EndTime:       time.Now().UTC().Add(90 * time.Minute),
		Status:        appointment.StatusRequested,
		PaymentStatus: appointment.PaymentNone,
		AmountCents:   &amount,
		Reason:        "checkup",
	}

	f := &routerFixture{
		appointments: &stubAppointments{appt: appt},
		payments:     &stubPayments{},
		gate:         &stubGate{decision: access.Decision{Allowed: true}},
	}

	f.handler = NewRouter(RouterConfig{
		Availability:  &stubAvailability{},
		Appointments:  f.appointments,
		Payments:      f.payments,
		Access:        f.gate,
		Notifications: &stubInbox{},
		Hub:           nil,
		Verifier:      identity.NewVerifier(testSecret),
		WebhookSecret: testWebhookSecret,
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/appointments", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestAppointmentEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	token := signTestToken(t, uuid.New(), identity.RolePatient)

	body := RequestAppointmentRequest{
		DoctorID: uuid.New().String(),
		Start:    time.Now().UTC().Add(time.Hour),
		End:      time.Now().UTC().Add(90 * time.Minute),
		Reason:   "checkup",
	}

	rec := f.do(t, http.MethodPost, "/appointments", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, f.appointments.appt.ID, resp.ID)
	assert.Equal(t, "requested", resp.Status)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"conflict", appointment.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
		{"contended", appointment.ErrBookingContended, http.StatusConflict, "slot_being_booked"},
		{"forbidden", appointment.ErrUnauthorized, http.StatusForbidden, "forbidden"},
		{"not found", appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
		{"validation", appointment.ErrValidation, http.StatusBadRequest, "invalid_request"},
		{"cancel window", appointment.ErrCancelWindowClosed, http.StatusConflict, "cancel_window_closed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.appointments.err = tc.err
			token := signTestToken(t, uuid.New(), identity.RolePatient)

			body := RequestAppointmentRequest{
				DoctorID: uuid.New().String(),
				Start:    time.Now().UTC().Add(time.Hour),
				End:      time.Now().UTC().Add(90 * time.Minute),
				Reason:   "checkup",
			}

			rec := f.do(t, http.MethodPost, "/appointments", token, body)
			assert.Equal(t, tc.want, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Error)
		})
	}
}

func TestListSlotsEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	token := signTestToken(t, uuid.New(), identity.RolePatient)

	rec := f.do(t, http.MethodGet, "/doctors/"+uuid.NewString()+"/slots?date=2026-02-03", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/doctors/"+uuid.NewString()+"/slots?date=03-02-2026", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomAccessEndpoint(t *testing.T) {
	f := newRouterFixture(t)
	token := signTestToken(t, uuid.New(), identity.RolePatient)

	rec := f.do(t, http.MethodGet, "/rooms/"+uuid.NewString()+"/access", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var d access.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(t, d.Allowed)

	// A locked room is still a 200 with the reason in the body.
	f.gate.decision = access.Decision{Reason: access.ReasonPaymentPending, RequiresPayment: true}
	rec = f.do(t, http.MethodGet, "/rooms/"+uuid.NewString()+"/access", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.False(t, d.Allowed)
	assert.Equal(t, access.ReasonPaymentPending, d.Reason)

	f.gate.decision = access.Decision{}
	f.gate.err = appointment.ErrAppointmentNotFound
	rec = f.do(t, http.MethodGet, "/rooms/"+uuid.NewString()+"/access", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookSignature(t *testing.T) {
	f := newRouterFixture(t)

	payload, _ := json.Marshal(GatewayWebhookPayload{
		EventID:     "evt-1",
		ProviderRef: "ref-1",
		Status:      "succeeded",
	})

	// Missing signature.
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.payments.calls)

	// Tampered body.
	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Gateway-Signature", signWebhook([]byte("something else")))
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid signature.
	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Gateway-Signature", signWebhook(payload))
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.payments.calls, 1)
	assert.Equal(t, "ref-1", f.payments.calls[0].ProviderRef)
	assert.Equal(t, payment.OutcomeSucceeded, f.payments.calls[0].Outcome)
}

func TestWebhookRejectsUnknownStatus(t *testing.T) {
	f := newRouterFixture(t)

	payload, _ := json.Marshal(GatewayWebhookPayload{
		EventID:     "evt-1",
		ProviderRef: "ref-1",
		Status:      "exploded",
	})

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("X-Gateway-Signature", signWebhook(payload))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	f := newRouterFixture(t)
	token := signTestToken(t, uuid.New(), identity.RolePatient)

	rec := f.do(t, http.MethodGet, "/notifications", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/notifications/unread-count", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/notifications/"+uuid.NewString()+"/read", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/notifications/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medilink/telehealth-booking/internal/appointment"
	"github.com/medilink/telehealth-booking/internal/payment"
)

type DeclareAvailabilityRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityRuleResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type RequestAppointmentRequest struct {
	DoctorID string    `json:"doctor_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Reason   string    `json:"reason"`
	Notes    *string   `json:"notes,omitempty"`
}

type ConfirmAppointmentRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	AmountCents   *int64     `json:"amount_cents,omitempty"`
	Reason        string     `json:"reason"`
	Notes         *string    `json:"notes,omitempty"`
	VideoRoomID   *uuid.UUID `json:"video_room_id,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		Start:         a.StartTime,
		End:           a.EndTime,
		Status:        string(a.Status),
		PaymentStatus: string(a.PaymentStatus),
		AmountCents:   a.AmountCents,
		Reason:        a.Reason,
		Notes:         a.Notes,
		VideoRoomID:   a.VideoRoomID,
		ConfirmedAt:   a.ConfirmedAt,
		CreatedAt:     a.CreatedAt,
	}
}

type InitiatePaymentRequest struct {
	Method string `json:"method"`
}

type PaymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	AmountCents   int64      `json:"amount_cents"`
	Status        string     `json:"status"`
	InitiatedAt   time.Time  `json:"initiated_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
}

func toPaymentResponse(p *payment.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		AppointmentID: p.AppointmentID,
		AmountCents:   p.AmountCents,
		Status:        string(p.Status),
		InitiatedAt:   p.InitiatedAt,
		ConfirmedAt:   p.ConfirmedAt,
		FailedAt:      p.FailedAt,
	}
}

// GatewayWebhookPayload is what the payment provider posts to the callback
// endpoint, authenticated by the HMAC signature header.
type GatewayWebhookPayload struct {
	EventID     string `json:"event_id"`
	ProviderRef string `json:"provider_ref"`
	Status      string `json:"status"`
}

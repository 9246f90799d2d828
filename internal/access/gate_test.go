package access

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilink/telehealth-booking/internal/appointment"
	"github.com/medilink/telehealth-booking/internal/identity"
)

type fakeRoomReader struct {
	byRoom map[uuid.UUID]*appointment.Appointment
}

func (f *fakeRoomReader) GetByVideoRoom(ctx context.Context, roomID uuid.UUID) (*appointment.Appointment, error) {
	a, ok := f.byRoom[roomID]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

type gateFixture struct {
	gate      *Gate
	roomID    uuid.UUID
	appt      *appointment.Appointment
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	f := &gateFixture{
		roomID:    uuid.New(),
		doctorID:  uuid.New(),
		patientID: uuid.New(),
	}
	amount := int64(5500)
	start := time.Now().UTC().Add(time.Hour)
	f.appt = &appointment.Appointment{
		ID:            uuid.New(),
		DoctorID:      f.doctorID,
		PatientID:     f.patientID,
		StartTime:     start,
		EndTime:       start.Add(30 * time.Minute),
		Status:        appointment.StatusConfirmed,
		PaymentStatus: appointment.PaymentPaid,
		AmountCents:   &amount,
		VideoRoomID:   &f.roomID,
	}
	f.gate = NewGate(&fakeRoomReader{byRoom: map[uuid.UUID]*appointment.Appointment{f.roomID: f.appt}}, nil)
	return f
}

func (f *gateFixture) patient() identity.Principal {
	return identity.Principal{UserID: f.patientID, Role: identity.RolePatient}
}

func (f *gateFixture) doctor() identity.Principal {
	return identity.Principal{UserID: f.doctorID, Role: identity.RoleDoctor}
}

func TestCheckAllowsPaidParticipants(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	for _, actor := range []identity.Principal{f.patient(), f.doctor()} {
		d, err := f.gate.Check(ctx, actor, f.roomID)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Empty(t, d.Reason)
	}
}

func TestCheckRejectsStrangers(t *testing.T) {
	f := newGateFixture(t)

	stranger := identity.Principal{UserID: uuid.New(), Role: identity.RolePatient}
	d, err := f.gate.Check(context.Background(), stranger, f.roomID)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotParticipant, d.Reason)
}

func TestCheckGatesPatientOnPayment(t *testing.T) {
	for _, ps := range []appointment.PaymentStatus{
		appointment.PaymentPending,
		appointment.PaymentFailed,
		appointment.PaymentRefunded,
	} {
		t.Run(string(ps), func(t *testing.T) {
			f := newGateFixture(t)
			f.appt.PaymentStatus = ps

			d, err := f.gate.Check(context.Background(), f.patient(), f.roomID)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, ReasonPaymentPending, d.Reason)
			assert.True(t, d.RequiresPayment)
			assert.Equal(t, int64(5500), d.AmountCents)
		})
	}
}

func TestCheckDoctorIgnoresPayment(t *testing.T) {
	f := newGateFixture(t)
	f.appt.PaymentStatus = appointment.PaymentPending

	d, err := f.gate.Check(context.Background(), f.doctor(), f.roomID)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheckStatusReasons(t *testing.T) {
	tests := []struct {
		status appointment.Status
		reason string
	}{
		{appointment.StatusRequested, ReasonNotConfirmed},
		{appointment.StatusCancelled, ReasonCancelled},
		{appointment.StatusCompleted, ReasonCompleted},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newGateFixture(t)
			f.appt.Status = tc.status

			d, err := f.gate.Check(context.Background(), f.patient(), f.roomID)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestCheckUnknownRoom(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.Check(context.Background(), f.patient(), uuid.New())
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

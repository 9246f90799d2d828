package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var apptCols = []string{
	"id", "doctor_id", "patient_id", "start_time", "end_time", "status", "payment_status",
	"amount_cents", "reason", "notes", "video_room_id", "confirmed_at", "created_at", "updated_at",
}

func apptRow(a Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(apptCols).AddRow(
		a.ID, a.DoctorID, a.PatientID, a.StartTime, a.EndTime, a.Status, a.PaymentStatus,
		a.AmountCents, a.Reason, a.Notes, a.VideoRoomID, a.ConfirmedAt, a.CreatedAt, a.UpdatedAt,
	)
}

func testAppointment() Appointment {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	return Appointment{
		ID:            uuid.New(),
		DoctorID:      uuid.New(),
		PatientID:     uuid.New(),
		StartTime:     now.Add(48 * time.Hour),
		EndTime:       now.Add(48*time.Hour + 30*time.Minute),
		Status:        StatusRequested,
		PaymentStatus: PaymentNone,
		Reason:        "follow-up",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPgRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := testAppointment()
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(want.ID).
		WillReturnRows(apptRow(want))

	repo := newPgRepositoryWithDB(mock)
	got, err := repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, StatusRequested, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	repo := newPgRepositoryWithDB(mock)
	_, err = repo.GetByID(context.Background(), id)
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestPgRepository_CreateRequested_MapsExclusionToConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	appt := testAppointment()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(appt.ID, appt.DoctorID, appt.PatientID, appt.StartTime, appt.EndTime, appt.Reason, appt.Notes).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})

	repo := newPgRepositoryWithDB(mock)
	_, err = repo.CreateRequested(context.Background(), &appt)
	require.ErrorIs(t, err, ErrSlotConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_UpdateStatus_CASMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Zero rows means the precondition status vanished under the caller.
	id := uuid.New()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StatusConfirmed, StatusRequested, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	repo := newPgRepositoryWithDB(mock)
	_, err = repo.UpdateStatus(context.Background(), id, StatusRequested, StatusConfirmed, StatusMutation{})
	require.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_UpdateStatus_AppliesMutation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := testAppointment()
	amount := int64(6000)
	pending := PaymentPending
	roomID := uuid.New()
	confirmedAt := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	want.Status = StatusConfirmed
	want.PaymentStatus = pending
	want.AmountCents = &amount
	want.VideoRoomID = &roomID
	want.ConfirmedAt = &confirmedAt

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(want.ID, StatusConfirmed, StatusRequested, &amount, &pending, &roomID, &confirmedAt).
		WillReturnRows(apptRow(want))

	repo := newPgRepositoryWithDB(mock)
	got, err := repo.UpdateStatus(context.Background(), want.ID, StatusRequested, StatusConfirmed, StatusMutation{
		AmountCents:   &amount,
		PaymentStatus: &pending,
		VideoRoomID:   &roomID,
		ConfirmedAt:   &confirmedAt,
	})
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, got.Status)
	require.Equal(t, PaymentPending, got.PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_FindUnpaidConfirmedBefore_CoversFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	stale := testAppointment()
	stale.Status = StatusConfirmed
	stale.PaymentStatus = PaymentFailed
	confirmedAt := stale.CreatedAt
	stale.ConfirmedAt = &confirmedAt

	cutoff := confirmedAt.Add(24 * time.Hour)
	mock.ExpectQuery(`payment_status IN \('pending', 'failed'\)`).
		WithArgs(cutoff).
		WillReturnRows(apptRow(stale))

	repo := newPgRepositoryWithDB(mock)
	got, err := repo.FindUnpaidConfirmedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, PaymentFailed, got[0].PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_InsertEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apptID := uuid.New()
	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventAppointmentRequested, &apptID, pgxmock.AnyArg(), []byte(`{}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := newPgRepositoryWithDB(mock)
	err = repo.InsertEvent(context.Background(), EventLog{
		EventType:     EventAppointmentRequested,
		AppointmentID: &apptID,
		Payload:       []byte(`{}`),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

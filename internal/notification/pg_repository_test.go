package notification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var notifCols = []string{
	"id", "recipient_id", "kind", "message", "is_read", "appointment_id", "created_at",
}

func notifRow(n Notification) *pgxmock.Rows {
	return pgxmock.NewRows(notifCols).AddRow(
		n.ID, n.RecipientID, n.Kind, n.Message, n.IsRead, n.AppointmentID, n.CreatedAt,
	)
}

func TestPgRepository_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apptID := uuid.New()
	want := Notification{
		ID:            uuid.New(),
		RecipientID:   uuid.New(),
		Kind:          KindAppointmentConfirmed,
		Message:       "Your appointment is confirmed",
		AppointmentID: &apptID,
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(want.RecipientID, want.Kind, want.Message, want.AppointmentID).
		WillReturnRows(notifRow(want))

	repo := newPgRepositoryWithDB(mock)
	got, err := repo.Insert(context.Background(), &Notification{
		RecipientID:   want.RecipientID,
		Kind:          want.Kind,
		Message:       want.Message,
		AppointmentID: want.AppointmentID,
	})
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.False(t, got.IsRead)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_MarkReadScoped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	recipientID := uuid.New()
	notifID := uuid.New()

	// Wrong recipient touches zero rows.
	mock.ExpectExec("UPDATE notifications SET is_read = true").
		WithArgs(notifID, recipientID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := newPgRepositoryWithDB(mock)
	err = repo.MarkRead(context.Background(), recipientID, notifID)
	require.ErrorIs(t, err, ErrNotificationNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	recipientID := uuid.New()
	notifID := uuid.New()

	mock.ExpectExec("DELETE FROM notifications").
		WithArgs(notifID, recipientID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := newPgRepositoryWithDB(mock)
	require.NoError(t, repo.Delete(context.Background(), recipientID, notifID))
	require.NoError(t, mock.ExpectationsWereMet())
}

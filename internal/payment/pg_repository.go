package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, appointment_id, provider_ref, amount_cents, status, initiated_at, confirmed_at, failed_at, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment

	err := row.Scan(
		&p.ID,
		&p.AppointmentID,
		&p.ProviderRef,
		&p.AmountCents,
		&p.Status,
		&p.InitiatedAt,
		&p.ConfirmedAt,
		&p.FailedAt,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) Create(ctx context.Context, p *Payment) (*Payment, error) {
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO payments (id, appointment_id, provider_ref, amount_cents, status, initiated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+paymentColumns+`
	`, id, p.AppointmentID, p.ProviderRef, p.AmountCents, p.Status)

	return scanPayment(row)
}

func (r *PgRepository) SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE payments
		SET provider_ref = $2
		WHERE id = $1
	`, id, providerRef)
	if err != nil {
		return fmt.Errorf("set provider ref: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *PgRepository) UpdateStatusByProviderRef(ctx context.Context, providerRef string, status Status, at time.Time) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE payments
		SET status = $2,
		    confirmed_at = CASE WHEN $2 = 'paid' THEN $3 ELSE confirmed_at END,
		    failed_at = CASE WHEN $2 = 'failed' THEN $3 ELSE failed_at END
		WHERE provider_ref = $1
		RETURNING `+paymentColumns+`
	`, providerRef, status, at)

	return scanPayment(row)
}

func (r *PgRepository) GetByProviderRef(ctx context.Context, providerRef string) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE provider_ref = $1
	`, providerRef)
	return scanPayment(row)
}

func (r *PgRepository) GetLatestByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, appointmentID)
	return scanPayment(row)
}

func (r *PgRepository) ListStalePending(ctx context.Context, olderThan time.Time) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = 'pending'
		  AND provider_ref IS NOT NULL
		  AND initiated_at < $1
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

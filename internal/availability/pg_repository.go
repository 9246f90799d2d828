package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRule(row pgx.Row) (*AvailabilityRule, error) {
	var r AvailabilityRule

	err := row.Scan(
		&r.ID,
		&r.DoctorID,
		&r.Date,
		&r.StartTime,
		&r.EndTime,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	return &r, nil
}

// CreateRule inserts a rule after verifying, inside one transaction, that it
// does not overlap an existing rule for the same doctor and date.
func (r *PgRepository) CreateRule(ctx context.Context, rule *AvailabilityRule) (*AvailabilityRule, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent rule creation for this doctor-day.
	var overlaps bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM availability_rules
			WHERE doctor_id = $1
			  AND date = $2
			  AND start_time < $4
			  AND end_time > $3
			FOR UPDATE
		)
	`, rule.DoctorID, rule.Date, rule.StartTime, rule.EndTime).Scan(&overlaps)
	if err != nil {
		return nil, fmt.Errorf("check rule overlap: %w", err)
	}
	if overlaps {
		return nil, ErrRuleOverlap
	}

	id := rule.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO availability_rules (id, doctor_id, date, start_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, doctor_id, date, start_time, end_time, created_at
	`, id, rule.DoctorID, rule.Date, rule.StartTime, rule.EndTime)

	created, err := scanRule(row)
	if err != nil {
		return nil, fmt.Errorf("insert availability rule: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return created, nil
}

func (r *PgRepository) DeleteRule(ctx context.Context, doctorID, ruleID uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `
		DELETE FROM availability_rules
		WHERE id = $1 AND doctor_id = $2
	`, ruleID, doctorID)
	if err != nil {
		return fmt.Errorf("delete availability rule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *PgRepository) ListRulesForDay(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, date, start_time, end_time, created_at
		FROM availability_rules
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_time
	`, doctorID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListBusyIntervals(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]Interval, error) {
	dayStart := day
	dayEnd := day.Add(24 * time.Hour)

	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE doctor_id = $1
		  AND status <> 'cancelled'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

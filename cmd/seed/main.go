package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/telehealth-booking/internal/db"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

var logger = logging.Default()

func main() {
	logger.Info("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctors, err := seedDoctors(context.Background(), pool, 100)
	if err != nil {
		logger.Error("seed doctors", "error", err)
		os.Exit(1)
	}
	if err := seedPatients(context.Background(), pool, 9000); err != nil {
		logger.Error("seed patients", "error", err)
		os.Exit(1)
	}
	if err := seedAvailability(context.Background(), pool, doctors, 14); err != nil {
		logger.Error("seed availability", "error", err)
		os.Exit(1)
	}

	logger.Info("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	logger.Info("seeding doctors", "count", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, full_name, email, role, specialty, created_at)
			VALUES ($1, $2, $3, 'doctor', $4, now())
		`, id, name, email, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info("seeding patients", "count", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, full_name, email, role, created_at)
				VALUES ($1, $2, $3, 'patient', now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info("patients seeded", "done", end, "total", count)
	}

	return nil
}

// seedAvailability gives every doctor a 09:00-12:00 and 14:00-17:00 block for
// each of the next `days` weekdays.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, doctors []uuid.UUID, days int) error {
	logger.Info("seeding availability", "doctors", len(doctors), "days", days)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now().UTC().Truncate(24 * time.Hour)

	for _, doctorID := range doctors {
		for d := 1; d <= days; d++ {
			day := today.AddDate(0, 0, d)
			if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}

			blocks := [][2]int{{9, 12}, {14, 17}}
			for _, b := range blocks {
				start := day.Add(time.Duration(b[0]) * time.Hour)
				end := day.Add(time.Duration(b[1]) * time.Hour)

				_, err := tx.Exec(ctx, `
					INSERT INTO availability_rules (id, doctor_id, date, start_time, end_time, created_at)
					VALUES ($1, $2, $3, $4, $5, now())
				`, uuid.New(), doctorID, day, start, end)
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info("availability seeded")
	return nil
}

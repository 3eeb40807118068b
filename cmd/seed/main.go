package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/db"
	"github.com/clinicdesk/appointment-scheduling/internal/directory"
	"github.com/clinicdesk/appointment-scheduling/internal/logging"
)

const (
	doctorCount  = 100
	patientCount = 9000
	batchSize    = 500
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "seed", log)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	if _, err := seedAccounts(ctx, pool, faker, directory.RoleAdmin, 1, log); err != nil {
		log.Fatal("seed admins", zap.Error(err))
	}
	doctors, err := seedAccounts(ctx, pool, faker, directory.RoleDoctor, doctorCount, log)
	if err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	if _, err := seedAccounts(ctx, pool, faker, directory.RolePatient, patientCount, log); err != nil {
		log.Fatal("seed patients", zap.Error(err))
	}
	if err := seedLeaves(ctx, pool, faker, doctors, cfg.ClinicLocation); err != nil {
		log.Fatal("seed leaves", zap.Error(err))
	}

	log.Info("seed complete")
}

func seedAccounts(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, role directory.Role, count int, log *zap.Logger) ([]uuid.UUID, error) {
	log.Info("seeding accounts", zap.String("role", string(role)), zap.Int("count", count))

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				id := uuid.New()
				first, last := faker.FirstName(), faker.LastName()
				fullName := first + " " + last
				if role == directory.RoleDoctor {
					fullName = "Dr. " + fullName
				}
				// The id suffix keeps usernames unique across runs.
				username := fmt.Sprintf("%s.%s.%s", strings.ToLower(first), strings.ToLower(last), id.String()[:6])

				_, err := tx.Exec(ctx, `
					INSERT INTO accounts (id, username, full_name, email, role, is_active)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, id, username, fullName, faker.Email(), role, faker.Number(1, 20) > 1)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		log.Info("accounts seeded", zap.String("role", string(role)), zap.Int("done", end), zap.Int("total", count))
	}
	return ids, nil
}

// seedLeaves gives roughly one doctor in ten a short upcoming leave.
func seedLeaves(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, doctors []uuid.UUID, loc *time.Location) error {
	reasons := []string{"Conference", "Vacation", "Training", "Personal", "Sick leave"}
	y, m, d := time.Now().In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, doctorID := range doctors {
			if faker.Number(1, 10) != 1 {
				continue
			}
			start := today.AddDate(0, 0, faker.Number(1, 30))
			end := start.AddDate(0, 0, faker.Number(0, 4))
			_, err := tx.Exec(ctx, `
				INSERT INTO doctor_leaves (id, doctor_id, start_date, end_date, reason)
				VALUES ($1, $2, $3, $4, $5)
			`, uuid.New(), doctorID, start, end, reasons[faker.Number(0, len(reasons)-1)])
			if err != nil {
				return err
			}
		}
		return nil
	})
}

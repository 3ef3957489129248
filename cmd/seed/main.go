package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/appointment"
	"github.com/hackgods/blood-donation-scheduling/internal/db"
	"github.com/hackgods/blood-donation-scheduling/internal/obs"
)

func main() {
	_ = godotenv.Load()

	var (
		hospitals = flag.Int("hospitals", 8, "hospitals to create")
		agents    = flag.Int("agents", 8, "agents to create, assigned round-robin")
		donors    = flag.Int("donors", 2000, "donors to create")
		history   = flag.Int("history", 1500, "completed past donations to create")
	)
	flag.Parse()

	logger, err := obs.NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	s := &seeder{pool: pool, faker: faker, logger: logger}

	hospitalIDs, err := s.seedHospitals(ctx, *hospitals)
	if err != nil {
		logger.Fatal("seed hospitals", zap.Error(err))
	}
	if _, err := s.seedAdmin(ctx); err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}
	if err := s.seedAgents(ctx, *agents, hospitalIDs); err != nil {
		logger.Fatal("seed agents", zap.Error(err))
	}
	donorIDs, err := s.seedDonors(ctx, *donors)
	if err != nil {
		logger.Fatal("seed donors", zap.Error(err))
	}
	if err := s.seedHistory(ctx, *history, donorIDs, hospitalIDs); err != nil {
		logger.Fatal("seed history", zap.Error(err))
	}

	logger.Info("seed complete")
}

type seeder struct {
	pool   *pgxpool.Pool
	faker  *gofakeit.Faker
	logger *zap.Logger
}

type seededDonor struct {
	id        uuid.UUID
	bloodType string
}

func (s *seeder) seedHospitals(ctx context.Context, count int) ([]uuid.UUID, error) {
	s.logger.Info("seeding hospitals", zap.Int("count", count))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		addr := s.faker.Address()
		_, err := tx.Exec(ctx, `
			INSERT INTO hospitals (id, name, address, phone, email, is_active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
		`, id, fmt.Sprintf("%s %s Hospital", addr.City, s.faker.RandomString([]string{"General", "Referral", "County", "Memorial"})),
			addr.Street+", "+addr.City, s.faker.Phone(), s.faker.Email())
		if err != nil {
			return nil, err
		}

		// Weekday mornings plus one Saturday slot.
		for _, dow := range []int{1, 2, 3, 4, 5, 6} {
			start, end := "08:00", "12:00"
			if dow == 6 {
				start, end = "09:00", "11:00"
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO hospital_time_windows (hospital_id, day_of_week, start_time, end_time)
				VALUES ($1, $2, $3, $4)
			`, id, dow, start, end); err != nil {
				return nil, err
			}
		}

		for _, bt := range appointment.BloodTypes {
			if _, err := tx.Exec(ctx, `
				INSERT INTO blood_inventory (hospital_id, blood_type, current_units, maximum_capacity, minimum_threshold)
				VALUES ($1, $2, $3, 100, 10)
			`, id, bt, s.faker.Number(0, 80)); err != nil {
				return nil, err
			}
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func (s *seeder) insertProfile(ctx context.Context, q db.Querier, role, bloodType string) (uuid.UUID, error) {
	id := uuid.New()
	var bt any
	if bloodType != "" {
		bt = bloodType
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO profiles (id, first_name, last_name, email, phone, blood_type)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, s.faker.FirstName(), s.faker.LastName(), id.String()[:8]+"."+s.faker.Email(), s.faker.Phone(), bt); err != nil {
		return uuid.Nil, err
	}
	if _, err := q.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)`, id, role); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *seeder) seedAdmin(ctx context.Context) (uuid.UUID, error) {
	id, err := s.insertProfile(ctx, s.pool, "admin", "")
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("admin seeded", zap.Stringer("user_id", id))
	return id, nil
}

func (s *seeder) seedAgents(ctx context.Context, count int, hospitalIDs []uuid.UUID) error {
	s.logger.Info("seeding agents", zap.Int("count", count))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := 0; i < count; i++ {
		id, err := s.insertProfile(ctx, tx, "agent", "")
		if err != nil {
			return err
		}
		if len(hospitalIDs) == 0 {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO agent_hospital_assignments (agent_id, hospital_id, is_active)
			VALUES ($1, $2, TRUE)
		`, id, hospitalIDs[i%len(hospitalIDs)]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *seeder) seedDonors(ctx context.Context, count int) ([]seededDonor, error) {
	s.logger.Info("seeding donors", zap.Int("count", count))

	const batchSize = 500
	donors := make([]seededDonor, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return nil, err
		}
		for i := offset; i < end; i++ {
			bt := appointment.BloodTypes[s.faker.Number(0, len(appointment.BloodTypes)-1)]
			id, err := s.insertProfile(ctx, tx, "donor", bt)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			donors = append(donors, seededDonor{id: id, bloodType: bt})
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		s.logger.Info("donors seeded", zap.Int("done", end), zap.Int("total", count))
	}
	return donors, nil
}

// seedHistory writes completed appointments with their donations and bumps
// inventory the same way a live completion does.
func (s *seeder) seedHistory(ctx context.Context, count int, donors []seededDonor, hospitalIDs []uuid.UUID) error {
	if len(donors) == 0 || len(hospitalIDs) == 0 {
		return nil
	}
	s.logger.Info("seeding donation history", zap.Int("count", count))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		d := donors[s.faker.Number(0, len(donors)-1)]
		hospitalID := hospitalIDs[s.faker.Number(0, len(hospitalIDs)-1)]
		at := s.faker.DateRange(now.AddDate(-1, 0, 0), now.AddDate(0, 0, -1))
		units := s.faker.Number(1, 2)

		var apptID uuid.UUID
		if err := tx.QueryRow(ctx, `
			INSERT INTO appointments (donor_id, hospital_id, blood_type, scheduled_at, status, notes)
			VALUES ($1, $2, $3, $4, 'completed', 'Seeded history')
			RETURNING id
		`, d.id, hospitalID, d.bloodType, at).Scan(&apptID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO donations (appointment_id, donor_id, hospital_id, blood_type, units, status, donation_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, apptID, d.id, hospitalID, d.bloodType, units, appointment.DonationCompleted, at); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `SELECT increment_blood_units($1, $2, $3)`, hospitalID, d.bloodType, units); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

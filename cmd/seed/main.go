package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
	"github.com/hackgods/doctor-appointment-scheduling/internal/db"
	"github.com/hackgods/doctor-appointment-scheduling/internal/user"
)

const (
	doctorCount  = 25
	patientCount = 500
	daysAhead    = 7
	seedPassword = "password"
)

var slotChoices = []int{15, 20, 30}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx := context.Background()
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.Connect(connectCtx, db.PoolOptions{DSN: dsn, MaxConns: 4, AppName: "seed"})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if _, err := db.NewMigrator(pool, db.Migrations()).Up(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	gofakeit.Seed(time.Now().UnixNano())

	s := newSeeder(pool, logger)
	doctors, err := s.seedUsers(ctx, auth.RoleDoctor, doctorCount)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if _, err := s.seedUsers(ctx, auth.RolePatient, patientCount); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if err := s.seedWindows(ctx, doctors); err != nil {
		logger.Fatal().Err(err).Msg("seed availability")
	}

	logger.Info().Msg("seed complete")
}

type seeder struct {
	users   *user.Service
	windows *availability.Service
	log     zerolog.Logger
}

func newSeeder(pool *pgxpool.Pool, logger zerolog.Logger) *seeder {
	quiet := logger.Level(zerolog.WarnLevel)
	availSvc := availability.NewService(availability.NewPgRepository(pool), quiet)
	// Seeded users never log in through this process, so the token secret is irrelevant.
	tokens := auth.NewTokens("seed", time.Hour)
	return &seeder{
		users:   user.NewService(user.NewPgRepository(pool), tokens, availSvc, quiet),
		windows: availSvc,
		log:     logger,
	}
}

func (s *seeder) seedUsers(ctx context.Context, role auth.Role, count int) ([]*user.User, error) {
	s.log.Info().Int("count", count).Str("type", string(role)).Msg("seeding users")

	prefix := strings.ToLower(string(role))
	created := make([]*user.User, 0, count)
	for i := 0; i < count; i++ {
		name := gofakeit.Name()
		if role == auth.RoleDoctor {
			name = "Dr. " + name
		}
		u, err := s.users.Register(ctx, user.RegisterInput{
			Name:     name,
			Email:    fmt.Sprintf("%s%d.%s", prefix, i, gofakeit.Email()),
			Password: seedPassword,
			Type:     role,
		})
		if errors.Is(err, user.ErrEmailTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		created = append(created, u)

		if (i+1)%100 == 0 {
			s.log.Info().Int("done", i+1).Int("total", count).Str("type", string(role)).Msg("users seeded")
		}
	}
	return created, nil
}

func (s *seeder) seedWindows(ctx context.Context, doctors []*user.User) error {
	s.log.Info().Int("doctors", len(doctors)).Int("days", daysAhead).Msg("seeding availability")

	today := time.Now().UTC()
	total := 0
	for _, d := range doctors {
		caller := d.Caller()
		for day := 1; day <= daysAhead; day++ {
			date := today.AddDate(0, 0, day).Format(availability.DateLayout)

			windows := []availability.CreateWindowInput{
				{Date: date, StartTime: "08:00", EndTime: "12:00", SlotMinutes: slotChoices[gofakeit.Number(0, len(slotChoices)-1)]},
			}
			if gofakeit.Bool() {
				windows = append(windows, availability.CreateWindowInput{
					Date: date, StartTime: "14:00", EndTime: "17:00", SlotMinutes: 30,
				})
			}

			for _, in := range windows {
				if _, err := s.windows.CreateWindow(ctx, caller, in); err != nil {
					if errors.Is(err, availability.ErrWindowOverlap) {
						continue
					}
					return fmt.Errorf("window for %s on %s: %w", d.ID, date, err)
				}
				total++
			}
		}
	}

	s.log.Info().Int("windows", total).Msg("availability seeded")
	return nil
}

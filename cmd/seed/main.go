package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/booking-platform/internal/booking"
	"github.com/careslot/booking-platform/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedSlots(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specializations := []string{
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
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		email := gofakeit.Email()
		phone := gofakeit.Phone()
		years := gofakeit.Number(1, 35)

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, email, phone, experience_years, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, id, name, spec, email, phone, years)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

// seedSlots generates two weeks of weekday working-hour slots per doctor
// through the catalog service, so seeding goes down the same path the bulk
// API does.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding slots for %d doctors", len(doctorIDs))

	catalog := booking.NewCatalog(booking.NewPgStore(pool), nil)

	today := time.Now().Truncate(24 * time.Hour)
	total := 0

	for _, doctorID := range doctorIDs {
		count, err := catalog.GenerateSlots(ctx, booking.SlotGeneration{
			DoctorID:        doctorID,
			StartDate:       today.AddDate(0, 0, 1),
			EndDate:         today.AddDate(0, 0, 14),
			StartTime:       "09:00",
			EndTime:         "17:00",
			DurationMinutes: 30,
			ExcludeWeekends: true,
		})
		if err != nil {
			return err
		}
		total += count
	}

	log.Printf("slots seeded: %d", total)
	return nil
}

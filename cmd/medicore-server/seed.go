package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/medicore/medicore/internal/domain/doctor"
	"github.com/medicore/medicore/internal/domain/identity"
	"github.com/medicore/medicore/internal/platform/db"
)

var specialties = []string{
	"General Medicine",
	"Cardiology",
	"Pediatrics",
	"Orthopedics",
	"Dermatology",
	"ENT",
	"Neurology",
	"Gynecology",
}

var bloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the directory with fake staff, doctors and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctors, _ := cmd.Flags().GetInt("doctors")
			patients, _ := cmd.Flags().GetInt("patients")
			seed, _ := cmd.Flags().GetUint64("seed")

			ctx := context.Background()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			faker := gofakeit.New(seed)
			err = db.WithTx(ctx, pool, func(ctx context.Context) error {
				return seedDirectory(ctx, pool, faker, doctors, patients)
			})
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Printf("Seeded %d doctor(s) and %d patient(s).\n", doctors, patients)
			return nil
		},
	}
	cmd.Flags().Int("doctors", 8, "Number of doctors to create")
	cmd.Flags().Int("patients", 50, "Number of patients to create")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks a random one)")
	return cmd
}

func seedDirectory(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, doctors, patients int) error {
	conn := db.Conn(ctx, pool)

	insertUser := func(name, role string) (uuid.UUID, error) {
		id := uuid.New()
		_, err := conn.Exec(ctx, `
			INSERT INTO users (id, name, email, role, is_active)
			VALUES ($1, $2, $3, $4, TRUE)`,
			id, name, seedEmail(name, id), role)
		return id, err
	}

	for _, role := range []string{identity.RoleAdmin, identity.RoleReceptionist, identity.RolePharmacist} {
		if _, err := insertUser(faker.Name(), role); err != nil {
			return fmt.Errorf("insert %s: %w", role, err)
		}
	}

	for i := 0; i < doctors; i++ {
		name := "Dr. " + faker.Name()
		userID, err := insertUser(name, identity.RoleDoctor)
		if err != nil {
			return fmt.Errorf("insert doctor user: %w", err)
		}
		_, err = conn.Exec(ctx, `
			INSERT INTO doctors (id, user_id, name, specialty, room_number, status)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), userID, name, specialties[i%len(specialties)],
			fmt.Sprintf("%d%02d", faker.Number(1, 4), i+1), doctor.StatusAvailable)
		if err != nil {
			return fmt.Errorf("insert doctor: %w", err)
		}
	}

	for i := 0; i < patients; i++ {
		first, last := faker.FirstName(), faker.LastName()
		userID, err := insertUser(first+" "+last, identity.RolePatient)
		if err != nil {
			return fmt.Errorf("insert patient user: %w", err)
		}
		var allergies *string
		if faker.Bool() {
			a := faker.RandomString([]string{"Penicillin", "Aspirin", "Peanuts", "Latex", "Sulfa"})
			allergies = &a
		}
		patientID := uuid.New()
		_, err = conn.Exec(ctx, `
			INSERT INTO patients (id, user_id, patient_code, first_name, last_name, phone, blood_group, allergies)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			patientID, userID, patientCode(patientID), first, last, faker.Phone(),
			bloodGroups[faker.Number(0, len(bloodGroups)-1)], allergies)
		if err != nil {
			return fmt.Errorf("insert patient: %w", err)
		}
	}
	return nil
}

// patientCode formats the human-facing registration number, e.g. MC-3F2A9C01.
func patientCode(id uuid.UUID) string {
	return "MC-" + strings.ToUpper(id.String()[:8])
}

// seedEmail derives a unique address from a display name.
func seedEmail(name string, id uuid.UUID) string {
	local := strings.ToLower(strings.Join(strings.Fields(strings.TrimPrefix(name, "Dr. ")), "."))
	return fmt.Sprintf("%s.%s@medicore.local", local, id.String()[:8])
}

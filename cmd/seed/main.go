// seed applies the schema and inserts a test user plus a set of companies into
// the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/layoffproof/layoff-tracker/internal/infrastructure/postgres"
	"github.com/layoffproof/layoff-tracker/migrations"
)

const (
	seedEmail = "seed@test.local"
	seedName  = "Seed User"
)

type companySpec struct {
	name       string
	industry   string
	layoffs    int
	lastLayoff string // YYYY-MM-DD, empty when none
	employees  int
}

var companies = []companySpec{
	{"Acme Corp", "Manufacturing", 3, "2024-11-04", 12000},
	{"Globex", "Energy", 1, "2024-06-18", 48000},
	{"Initech", "Software", 5, "2025-01-22", 900},
	{"Umbrella Health", "Healthcare", 0, "", 30500},
	{"Hooli", "Software", 2, "2025-03-10", 71000},
	{"Stark Logistics", "Logistics", 1, "2023-09-01", 8400},
	{"Wayne Financial", "Finance", 4, "2024-12-12", 23000},
	{"Soylent Foods", "Consumer Goods", 0, "", 5600},
	{"Cyberdyne Systems", "Hardware", 2, "2024-08-30", 15200},
	{"Vandelay Industries", "Import/Export", 1, "2025-02-14", 320},
}

func main() {
	ctx := context.Background()

	_ = godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set (export it or add it to .env)")
	}

	pool, err := postgres.NewPool(ctx, dbURL, postgres.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	scripts, err := migrations.Scripts()
	if err != nil {
		log.Fatalf("migrations: %v", err)
	}
	for i, script := range scripts {
		if err := postgres.ApplySchema(ctx, pool, script); err != nil {
			log.Fatalf("migration %d: %v", i+1, err)
		}
	}

	var inserted int
	var firstCompanyID string
	for _, c := range companies {
		var lastLayoff *time.Time
		if c.lastLayoff != "" {
			t, err := time.Parse(time.DateOnly, c.lastLayoff)
			if err != nil {
				log.Fatalf("company %s: %v", c.name, err)
			}
			lastLayoff = &t
		}

		var id string
		var created bool
		err := pool.QueryRow(ctx, `
			INSERT INTO companies (name, industry, layoff_count, last_layoff_at, employee_count)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (name) DO UPDATE SET
				industry       = EXCLUDED.industry,
				layoff_count   = EXCLUDED.layoff_count,
				last_layoff_at = EXCLUDED.last_layoff_at,
				employee_count = EXCLUDED.employee_count
			RETURNING id, (xmax = 0)`,
			c.name, c.industry, c.layoffs, lastLayoff, c.employees,
		).Scan(&id, &created)
		if err != nil {
			log.Fatalf("upsert company %s: %v", c.name, err)
		}
		if created {
			inserted++
		}
		if firstCompanyID == "" {
			firstCompanyID = id
		}
	}

	// Upsert test user
	var userID string
	err = pool.QueryRow(ctx, `
		INSERT INTO users (email, name, company_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
		seedEmail, seedName, firstCompanyID,
	).Scan(&userID)
	if err != nil {
		log.Fatalf("upsert user: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Migrations:   %d applied\n", len(scripts))
	fmt.Printf("  User:         %s\n", seedEmail)
	fmt.Printf("  User ID:      %s\n", userID)
	fmt.Printf("  Companies:    %d created  (%d total)\n", inserted, len(companies))
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1: request a sign-in link for the seed user:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/auth/magic-link \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\"}'\n", seedEmail)
	fmt.Println()
	fmt.Println("    # With no email transport configured the link is in the server log, then:")
	fmt.Println()
	fmt.Println("    curl -s 'http://localhost:8080/auth/verify?token=TOKEN'")
	fmt.Println("    # → {\"token\":\"eyJ...\"}")
	fmt.Println()
	fmt.Println("  Step 2: start a trial checkout:")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s -X POST http://localhost:8080/billing/trial -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Step 3: search companies:")
	fmt.Println()
	fmt.Println("    curl -s 'http://localhost:8080/companies?q=ini' -H \"Authorization: Bearer $JWT\"")
}

// seed inserts a verified staff user and a regular user into the local dev
// database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/user-management/internal/password"
)

const seedPassword = "Seed1234"

type userSpec struct {
	email string
	name  string
	staff bool
}

var users = []userSpec{
	{"admin@test.local", "Seed Admin", true},
	{"seed@test.local", "Seed User", false},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	hash, err := password.NewArgon2Hasher(password.DefaultParams()).Hash(seedPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	repo := postgres.NewUserRepository(pool)
	var created, skipped int
	for _, spec := range users {
		_, err := repo.Create(ctx, &domain.User{
			Email:         spec.email,
			Name:          spec.name,
			PasswordHash:  hash,
			IsActive:      true,
			IsStaff:       spec.staff,
			EmailVerified: true,
		})
		if errors.Is(err, domain.ErrEmailTaken) {
			skipped++
			continue
		}
		if err != nil {
			log.Fatalf("create %s: %v", spec.email, err)
		}
		created++
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Users created: %d  (skipped %d already existing)\n", created, skipped)
	fmt.Printf("  Password:      %s\n", seedPassword)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1: log in:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/auth \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"username\":\"%s\",\"password\":\"%s\"}'\n", users[0].email, seedPassword)
	fmt.Println("    # → {\"token\":\"...\"}")
	fmt.Println()
	fmt.Println("  Step 2: list users:")
	fmt.Println()
	fmt.Println("    curl -s http://localhost:8080/users -H \"Authorization: Token $TOKEN\"")
	fmt.Println()
	fmt.Println("  Step 3: log out:")
	fmt.Println()
	fmt.Println("    curl -s -X DELETE http://localhost:8080/auth -H \"Authorization: Token $TOKEN\"")
}

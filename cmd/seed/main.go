// seed inserts a test user into the configured store for local development.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ErlanBelekov/magic-auth/config"
	"github.com/ErlanBelekov/magic-auth/internal/domain"
	ctxlog "github.com/ErlanBelekov/magic-auth/internal/log"
	"github.com/ErlanBelekov/magic-auth/internal/store"
)

var seedUser = domain.User{
	FirstName: "Seed",
	LastName:  "User",
	Username:  "seed",
	Email:     "seed@test.local",
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver == store.DriverMemory {
		log.Fatal("STORE_DRIVER=memory has nothing to seed; use mongo or postgres")
	}

	logger := ctxlog.New(os.Stderr, cfg.Env, cfg.SlogLevel())

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	user, err := st.Users.FindByEmail(ctx, seedUser.Email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		u := seedUser
		user, err = st.Users.Create(ctx, &u)
		if err != nil {
			st.Close()
			log.Fatalf("create user: %v", err)
		}
		fmt.Println("Seed user created")
	case err != nil:
		st.Close()
		log.Fatalf("find user: %v", err)
	default:
		fmt.Println("Seed user already exists")
	}

	fmt.Println()
	fmt.Printf("  Email:   %s\n", user.Email)
	fmt.Printf("  User ID: %s\n", user.ID)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1: request a sign-in link")
	fmt.Println()
	fmt.Printf("    curl -s -X POST %s/auth/passwordless/request \\\n", cfg.AppBaseURL)
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\"}'\n", user.Email)
	fmt.Println()
	fmt.Println("    # With ENV=local the link is printed in the server log.")
	fmt.Println()
	fmt.Println("  Step 2: follow it, keeping the session cookies")
	fmt.Println()
	fmt.Println("    curl -s -c jar.txt -o /dev/null -w '%{redirect_url}\\n' 'LINK'")
	fmt.Println()
	fmt.Println("  Step 3: read the session")
	fmt.Println()
	fmt.Printf("    curl -s -b jar.txt %s/me\n", cfg.AppBaseURL)
}

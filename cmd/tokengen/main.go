// Command tokengen prints a bearer token for local testing.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/auth"
	"github.com/bbh1312/sleep-cash-backend/internal/config"
)

func main() {
	cfg := config.Load()

	userID := flag.String("user", cfg.SeedUserID, "user id to put in the token subject")
	name := flag.String("name", "", "display name claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		log.Fatal("tokengen: -user is required when SEED_USER_ID is unset")
	}

	provider := auth.NewLocalAuthProvider(cfg.Secret(), internal.NewNopLogger())
	token, err := provider.IssueToken(*userID, *name, *ttl)
	if err != nil {
		log.Fatalf("tokengen: %v", err)
	}
	fmt.Println(token)
}

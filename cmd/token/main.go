// Command token mints a bearer token for a user id, signed with the server's
// JWT_SECRET. Account management is out of scope, so this is how local
// clients obtain credentials.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"pomodoro/focus/internal/config"
	"pomodoro/focus/internal/service"
)

func main() {
	userID := flag.String("user", "", "user id to place in the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to TOKEN_TTL_HOURS)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lifetime := cfg.TokenTTL()
	if *ttl > 0 {
		lifetime = *ttl
	}

	issued, apiErr := service.NewTokenService(cfg.JWTSecret, lifetime, nil).Issue(*userID)
	if apiErr != nil {
		log.Fatalf("issue token: %v", apiErr)
	}

	fmt.Println(issued.Token)
	log.Printf("token for %s expires at %s", issued.UserID, issued.ExpiresAt.Format(time.RFC3339))
}

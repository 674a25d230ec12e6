// Command token prints a signed access token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/bookstore-orders/internal/auth"
	"github.com/example/bookstore-orders/internal/config"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/infrastructure/store"
	log "github.com/sirupsen/logrus"
)

func main() {
	asAdmin := flag.Bool("admin", false, "issue a token for the demo admin instead of the demo customer")
	userID := flag.String("user", "", "user id (overrides the demo user)")
	email := flag.String("email", "", "email claim")
	role := flag.String("role", "", "role claim: customer or admin")
	flag.Parse()

	cfg, err := config.Load(true)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	u := store.SeedCustomer
	if *asAdmin {
		u = store.SeedAdmin
	}
	if *userID != "" {
		u = user.User{ID: *userID, Email: *email, Role: user.RoleCustomer}
	}
	if *role != "" {
		u.Role = *role
	}

	token, expiresAt, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTAccessTTL).GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		log.WithError(err).Fatal("failed to sign token")
	}

	fmt.Fprintf(os.Stderr, "user=%s role=%s expires=%s\n", u.ID, u.Role, expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}

// Command tokengen issues bearer tokens for local development and smoke tests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/internal/service"
	"github.com/noah-isme/dispatch-api/pkg/config"
)

func main() {
	userID := pflag.StringP("user", "u", "", "user id placed in the token subject")
	role := pflag.StringP("role", "r", string(models.RoleDispatcher), "SUPERADMIN, ADMIN, DISPATCHER or VIEWER")
	email := pflag.String("email", "", "optional email claim")
	name := pflag.String("name", "", "optional full name claim")
	ttl := pflag.Duration("ttl", 0, "token lifetime, defaults to JWT_EXPIRATION")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})
	token, expiresAt, err := tokens.Issue(*userID, models.UserRole(*role), *email, *name, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		pflag.Usage()
		os.Exit(2)
	}

	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Println(token)
}

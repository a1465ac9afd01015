package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/internal/service/auth"
)

// Утилита для разработки: печатает подписанный токен для curl и
// WebSocket-клиентов.
var (
	userID = flag.Int64("user", 1, "user id to embed in the token")
	role   = flag.String("role", "passenger", "role: passenger or driver")
	ttl    = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	secret = flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to JWT_SECRET)")
)

func main() {
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "mktoken: secret is required (flag -secret or env JWT_SECRET)")
		os.Exit(1)
	}

	r := types.UserRole(*role)
	if r != types.PassengerRole && r != types.DriverRole {
		fmt.Fprintf(os.Stderr, "mktoken: unknown role %q\n", *role)
		os.Exit(1)
	}

	tokens := auth.NewTokenService(*secret)
	token, err := tokens.Generate(models.Identity{UserID: *userID, Role: r}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mktoken:", err)
		os.Exit(1)
	}

	fmt.Println(token)
}

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/service"
	"golang.org/x/term"
)

// issue-token mints a bearer token for local testing. Production tokens come
// from the identity service and share only the signing secret.
func main() {
	var (
		userID  int
		role    string
		scopeID int
	)
	flag.IntVar(&userID, "user", 0, "User ID (required)")
	flag.StringVar(&role, "role", string(model.RoleStudent), "Role: student, professor, manager or admin")
	flag.IntVar(&scopeID, "scope", 0, "Scope (class) ID, 0 for none")
	flag.Parse()

	if userID <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()

	// ─── Secret ────────────────────────────────────────────────────────
	// Prompt instead of silently signing with the placeholder.
	if cfg.JWTSecret == config.DefaultJWTSecret && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(os.Stderr, "JWT_SECRET is unset. Enter signing secret (empty keeps the placeholder): ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading secret: %v\n", err)
			os.Exit(1)
		}
		if secret := strings.TrimSpace(string(raw)); secret != "" {
			cfg.JWTSecret = secret
		}
	}

	var scope *int
	if scopeID > 0 {
		scope = &scopeID
	}

	token, err := service.NewAuthService(cfg).GenerateToken(userID, model.Role(strings.ToLower(role)), scope)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
